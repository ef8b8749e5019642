// Package worker implements the drain worker for the share outbox.
//
// A single goroutine processes all drain cycles serially: duplicate wake-ups
// coalesce into one pending kick, and no two cycles ever run concurrently.
// Each cycle recovers stuck records, lets every linked endpoint process its
// share requests, purges terminal records, and either schedules a retry or
// resets the backoff policy.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/groundupworks/wings/internal/endpoint"
	"github.com/groundupworks/wings/internal/models"
	"github.com/groundupworks/wings/internal/retry"
	"github.com/groundupworks/wings/internal/store"
	"github.com/groundupworks/wings/internal/util"
)

// fallbackRetryDelay is used when the retry policy itself cannot be read,
// so a cycle failure still produces a future wake-up.
const fallbackRetryDelay = time.Minute

// WakeupScheduler arms an external wake-up that fires at-or-after the
// requested delay, at least once. The worker only requests the wake-up; the
// delivery guarantee belongs to the scheduler.
type WakeupScheduler interface {
	ScheduleWakeup(delay time.Duration) error
}

// Notifier receives drain-cycle result summaries for user-facing display.
type Notifier interface {
	Notify(n models.Notification)
}

// LogNotifier is a Notifier that writes notifications to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(n models.Notification) {
	slog.Info("share results", "endpoint", n.EndpointID, "title", n.Title, "message", n.Message, "shareURL", n.ShareURL, "shared", n.Shared)
}

// Worker drains the share outbox.
type Worker struct {
	repo      store.ShareRepo
	registry  *endpoint.Registry
	policy    *retry.Policy
	scheduler WakeupScheduler
	notifier  Notifier
	kicks     chan struct{}
}

// New creates a Worker. The notifier may be nil, in which case notifications
// are logged.
func New(repo store.ShareRepo, registry *endpoint.Registry, policy *retry.Policy, scheduler WakeupScheduler, notifier Notifier) *Worker {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Worker{
		repo:      repo,
		registry:  registry,
		policy:    policy,
		scheduler: scheduler,
		notifier:  notifier,
		kicks:     make(chan struct{}, 1),
	}
}

// Drain requests a drain cycle. It never blocks: a kick while a cycle is
// already pending coalesces into that cycle, and an extra cycle with nothing
// pending is a cheap no-op anyway.
func (w *Worker) Drain() {
	select {
	case w.kicks <- struct{}{}:
	default:
	}
}

// Run processes drain kicks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("Worker.Run: starting drain worker")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Worker.Run: stopping")
			return
		case <-w.kicks:
			w.cycle(ctx)
		}
	}
}

// cycle executes one full drain pass. All errors are absorbed: anything that
// goes wrong counts as a failed cycle and schedules a retry instead of
// propagating.
func (w *Worker) cycle(ctx context.Context) {
	cycleID := util.GenerateRandomID("cycle_", 8)
	slog.Debug("Worker.cycle: starting", "cycle", cycleID)

	failed := false

	// Recover records orphaned by a crash mid-previous-cycle.
	reset, err := w.repo.ResetProcessingShareRequests()
	if err != nil {
		slog.Error("Worker.cycle: reset of stuck records failed", "cycle", cycleID, "error", err)
		failed = true
	} else if reset > 0 {
		slog.Info("Worker.cycle: recovered stuck records", "cycle", cycleID, "count", reset)
	}

	for _, ep := range w.registry.Endpoints() {
		if !ep.IsLinked() {
			continue
		}
		notifications, err := ep.ProcessShareRequests(ctx)
		if err != nil {
			slog.Error("Worker.cycle: endpoint processing failed", "cycle", cycleID, "endpoint", ep.EndpointID(), "error", err)
			failed = true
		}
		for _, n := range notifications {
			w.notifier.Notify(n)
		}
	}

	remaining, err := w.repo.Purge()
	if err != nil {
		slog.Error("Worker.cycle: purge failed", "cycle", cycleID, "error", err)
		failed = true
	}

	if failed || remaining > 0 {
		w.scheduleRetry(cycleID, remaining)
		return
	}

	if err := w.policy.Reset(); err != nil {
		slog.Error("Worker.cycle: retry policy reset failed", "cycle", cycleID, "error", err)
	}
	slog.Debug("Worker.cycle: complete, nothing remaining", "cycle", cycleID)
}

// scheduleRetry asks the policy for the next delay and arms the wake-up.
// Failure to arm the wake-up is the one error class worth alerting on:
// silent loss here means retries stop happening.
func (w *Worker) scheduleRetry(cycleID string, remaining int) {
	delay, err := w.policy.Increment()
	if err != nil {
		slog.Error("Worker.cycle: retry policy increment failed", "cycle", cycleID, "error", err)
		delay = fallbackRetryDelay
	}
	if err := w.scheduler.ScheduleWakeup(delay); err != nil {
		slog.Error("Worker.cycle: failed to schedule retry wake-up, retries may stop", "cycle", cycleID, "delay", delay, "error", err)
		return
	}
	slog.Info("Worker.cycle: retry scheduled", "cycle", cycleID, "remaining", remaining, "delay", delay)
}
