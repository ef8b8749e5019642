package outbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/groundupworks/wings/internal/models"
	"github.com/groundupworks/wings/internal/retry"
	"github.com/groundupworks/wings/internal/store"
)

func newTestQueue(t *testing.T) (*Queue, store.Store) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "outbox_test_")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	s, err := store.NewSQLiteStore(store.WithSQLiteDSN(filepath.Join(tempDir, "test.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return NewQueue(s, retry.NewPolicy(s)), s
}

func TestQueue_EnqueueKicksWorkerAndResetsPolicy(t *testing.T) {
	q, s := newTestQueue(t)

	kicked := 0
	q.SetTrigger(func() { kicked++ })

	// A pre-existing failure streak is cleared by a fresh request.
	if err := s.SetConsecutiveFails(4); err != nil {
		t.Fatalf("SetConsecutiveFails failed: %v", err)
	}

	id, err := q.Enqueue("/tmp/a.jpg", models.Destination{ID: 0, EndpointID: 1})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Enqueue returned zero id")
	}
	if kicked != 1 {
		t.Errorf("Expected 1 worker kick, got %d", kicked)
	}

	fails, err := s.ConsecutiveFails()
	if err != nil {
		t.Fatalf("ConsecutiveFails failed: %v", err)
	}
	if fails != 0 {
		t.Errorf("Expected failure streak reset on enqueue, got %d", fails)
	}
}

func TestQueue_EnqueueValidation(t *testing.T) {
	q, _ := newTestQueue(t)

	kicked := false
	q.SetTrigger(func() { kicked = true })

	_, err := q.Enqueue("", models.Destination{ID: 0, EndpointID: 1})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
	if kicked {
		t.Error("Worker must not be kicked for a rejected enqueue")
	}
}

func TestQueue_Reconcile(t *testing.T) {
	q, s := newTestQueue(t)
	dest := models.Destination{ID: 0, EndpointID: 1}

	var ids []int64
	for _, path := range []string{"/tmp/a.jpg", "/tmp/b.jpg", "/tmp/c.jpg"} {
		id, err := q.Enqueue(path, dest)
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, id)
	}

	requests, err := q.Checkout(dest)
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	if len(requests) != 3 {
		t.Fatalf("Expected 3 checked-out requests, got %d", len(requests))
	}

	// Two succeed, one fails.
	shared := q.Reconcile([]Result{
		{ID: ids[0], Err: nil},
		{ID: ids[1], Err: errors.New("network down")},
		{ID: ids[2], Err: nil},
	})
	if shared != 2 {
		t.Errorf("Expected 2 shared, got %d", shared)
	}

	// All three are terminal; purge leaves nothing behind.
	remaining, err := s.Purge()
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", remaining)
	}
}
