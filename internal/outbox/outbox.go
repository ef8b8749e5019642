// Package outbox provides the queue API over the share request store.
//
// It is the vocabulary the drain worker and endpoints speak: enqueue new
// requests, check out a destination's pending batch, and reconcile per-record
// upload outcomes back into the store.
package outbox

import (
	"errors"
	"log/slog"

	"github.com/groundupworks/wings/internal/models"
	"github.com/groundupworks/wings/internal/retry"
	"github.com/groundupworks/wings/internal/store"
)

// Trigger kicks the drain worker. It must not block.
type Trigger func()

// Queue orchestrates share request persistence for producers and endpoints.
type Queue struct {
	repo    store.ShareRepo
	policy  *retry.Policy
	trigger Trigger
}

// NewQueue creates a Queue. The trigger may be nil until SetTrigger is called.
func NewQueue(repo store.ShareRepo, policy *retry.Policy) *Queue {
	return &Queue{repo: repo, policy: policy}
}

// SetTrigger registers the function used to kick the drain worker after an
// enqueue. Called once during wiring, before any Enqueue.
func (q *Queue) SetTrigger(trigger Trigger) {
	q.trigger = trigger
}

// Enqueue validates and durably persists a new share request, resets the
// retry policy (a fresh request should be attempted promptly regardless of
// the previous failure streak), and kicks the drain worker.
func (q *Queue) Enqueue(filePath string, dest models.Destination) (int64, error) {
	id, err := q.repo.CreateShareRequest(filePath, dest)
	if err != nil {
		return 0, err
	}
	slog.Info("Queue.Enqueue: share request persisted", "id", id, "filePath", filePath, "endpoint", dest.EndpointID, "destination", dest.ID)

	if err := q.policy.Reset(); err != nil {
		slog.Error("Queue.Enqueue: retry policy reset failed", "error", err)
	}
	if q.trigger != nil {
		q.trigger()
	}
	return id, nil
}

// Checkout claims the destination's pending records for processing.
func (q *Queue) Checkout(dest models.Destination) ([]models.ShareRequest, error) {
	return q.repo.CheckoutShareRequests(dest)
}

// MarkSuccessful records a per-item upload success.
func (q *Queue) MarkSuccessful(id int64) error {
	return q.repo.MarkSuccessful(id)
}

// MarkFailed records a per-item upload failure.
func (q *Queue) MarkFailed(id int64) error {
	return q.repo.MarkFailed(id)
}

// DeleteForDestination removes all records for a destination. Used when an
// endpoint unlinks so stale requests do not persist forever.
func (q *Queue) DeleteForDestination(dest models.Destination) error {
	return q.repo.DeleteShareRequests(dest)
}

// Pending lists all non-terminal records for the status API.
func (q *Queue) Pending() ([]models.ShareRequest, error) {
	return q.repo.PendingShareRequests()
}

// Result is the per-record outcome of an upload attempt.
type Result struct {
	ID  int64
	Err error
}

// Reconcile applies a batch of upload outcomes to the store and returns the
// number of successful records. Individual mark errors are absorbed: a record
// that cannot be marked stays processing and is recovered by the next cycle's
// reset sweep.
func (q *Queue) Reconcile(results []Result) int {
	shared := 0
	for _, r := range results {
		if r.Err == nil {
			if err := q.repo.MarkSuccessful(r.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
				slog.Error("Queue.Reconcile: mark successful failed", "id", r.ID, "error", err)
				continue
			}
			shared++
		} else {
			slog.Warn("Queue.Reconcile: share request failed", "id", r.ID, "error", r.Err)
			if err := q.repo.MarkFailed(r.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
				slog.Error("Queue.Reconcile: mark failed failed", "id", r.ID, "error", err)
			}
		}
	}
	return shared
}
