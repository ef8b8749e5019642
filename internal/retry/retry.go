// Package retry computes how far in the future to schedule the next attempt
// to share. Retries are spaced out in incrementally larger intervals, and the
// failure streak is persisted so backoff survives process restarts.
package retry

import (
	"log/slog"
	"time"

	"github.com/groundupworks/wings/internal/store"
)

// MaxDelay is the ceiling on the computed retry delay. Retries slow down but
// never stop entirely while failures persist.
const MaxDelay = 4 * time.Hour

// Policy schedules retry attempts based on a persisted consecutive failure
// counter.
type Policy struct {
	repo store.PolicyRepo
}

// NewPolicy creates a Policy backed by the given repo.
func NewPolicy(repo store.PolicyRepo) *Policy {
	return &Policy{repo: repo}
}

// NextDelay returns the delay to schedule after n consecutive failed drain
// cycles: the n-th Fibonacci number in minutes, clamped to MaxDelay.
func NextDelay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	a, b := int64(0), int64(1)
	for i := 0; i < n; i++ {
		a, b = b, a+b
		if time.Duration(a)*time.Minute >= MaxDelay {
			return MaxDelay
		}
	}
	delay := time.Duration(a) * time.Minute
	if delay > MaxDelay {
		return MaxDelay
	}
	return delay
}

// Increment bumps the persisted failure counter and returns the delay to
// schedule the next attempt. The delay is computed from the counter value
// before the bump, so the first failed cycle retries immediately.
func (p *Policy) Increment() (time.Duration, error) {
	fails, err := p.repo.ConsecutiveFails()
	if err != nil {
		return 0, err
	}
	if err := p.repo.SetConsecutiveFails(fails + 1); err != nil {
		return 0, err
	}
	delay := NextDelay(fails)
	slog.Debug("Policy.Increment", "consecutiveFails", fails+1, "nextDelay", delay)
	return delay, nil
}

// Reset zeroes the failure counter. Called when a drain cycle ends with no
// unresolved records, and when a new share request is enqueued.
func (p *Policy) Reset() error {
	if err := p.repo.SetConsecutiveFails(0); err != nil {
		return err
	}
	slog.Debug("Policy.Reset")
	return nil
}
