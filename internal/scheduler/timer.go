package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

// TimerWakeup arms a one-shot wake-up that fires a callback after a delay.
// Re-arming replaces the pending timer: only the most recent request is kept,
// which is the behavior the retry policy expects. A stopped TimerWakeup
// refuses new wake-ups.
type TimerWakeup struct {
	mu      sync.Mutex
	fire    func()
	timer   *time.Timer
	stopped bool
}

// NewTimerWakeup creates a TimerWakeup that invokes fire when a scheduled
// wake-up elapses.
func NewTimerWakeup(fire func()) *TimerWakeup {
	return &TimerWakeup{fire: fire}
}

// ScheduleWakeup arms the wake-up to fire at-or-after the given delay,
// replacing any pending wake-up.
func (t *TimerWakeup) ScheduleWakeup(delay time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(delay, t.fire)
	slog.Debug("TimerWakeup.ScheduleWakeup: wake-up armed", "delay", delay)
	return nil
}

// Stop cancels any pending wake-up and refuses further scheduling.
func (t *TimerWakeup) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
