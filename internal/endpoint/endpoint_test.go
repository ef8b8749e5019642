package endpoint

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/groundupworks/wings/internal/models"
	"github.com/groundupworks/wings/internal/outbox"
	"github.com/groundupworks/wings/internal/retry"
	"github.com/groundupworks/wings/internal/store"
)

func newTestQueue(t *testing.T) (*outbox.Queue, store.Store) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "endpoint_test_")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	s, err := store.NewSQLiteStore(store.WithSQLiteDSN(filepath.Join(tempDir, "test.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return outbox.NewQueue(s, retry.NewPolicy(s)), s
}

func writeTestFile(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func linkDropbox(t *testing.T, d *Dropbox) {
	t.Helper()
	err := d.Link(map[string]string{
		"account_name": "alice",
		"share_url":    "https://db.example/share/alice",
		"access_token": "tok-1",
	})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
}

func TestRegistry_RejectsDuplicateEndpointIDs(t *testing.T) {
	q, s := newTestQueue(t)

	_, err := NewRegistry(
		NewDropbox(q, s, "http://example.invalid"),
		NewDropbox(q, s, "http://example.invalid"),
	)
	if !errors.Is(err, models.ErrDuplicateEndpoint) {
		t.Errorf("Expected ErrDuplicateEndpoint, got %v", err)
	}
}

func TestRegistry_FixedOrder(t *testing.T) {
	q, s := newTestQueue(t)

	r, err := NewRegistry(
		NewAlbum(q, s),
		NewDropbox(q, s, "http://example.invalid"),
		NewCloudPrint(q, s, "http://example.invalid"),
	)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	endpoints := r.Endpoints()
	if len(endpoints) != 3 {
		t.Fatalf("Expected 3 endpoints, got %d", len(endpoints))
	}
	wantIDs := []int{AlbumEndpointID, DropboxEndpointID, CloudPrintEndpointID}
	for i, ep := range endpoints {
		if ep.EndpointID() != wantIDs[i] {
			t.Errorf("Position %d: expected endpoint %d, got %d", i, wantIDs[i], ep.EndpointID())
		}
	}
}

func TestDropbox_LinkValidationAndIsLinked(t *testing.T) {
	q, s := newTestQueue(t)
	d := NewDropbox(q, s, "http://example.invalid")

	if d.IsLinked() {
		t.Error("Expected unlinked endpoint before Link")
	}

	err := d.Link(map[string]string{"account_name": "alice"})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation for incomplete params, got %v", err)
	}

	linkDropbox(t, d)
	if !d.IsLinked() {
		t.Error("Expected linked endpoint after Link")
	}
}

func TestDropbox_ProcessShareRequests(t *testing.T) {
	q, s := newTestQueue(t)

	uploads := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		uploads++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	d := NewDropbox(q, s, server.URL)
	linkDropbox(t, d)

	dest := models.Destination{ID: DropboxDestinationAppFolder, EndpointID: DropboxEndpointID}
	for _, name := range []string{"a.jpg", "b.jpg"} {
		if _, err := q.Enqueue(writeTestFile(t, name), dest); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	notifications, err := d.ProcessShareRequests(context.Background())
	if err != nil {
		t.Fatalf("ProcessShareRequests failed: %v", err)
	}
	if uploads != 2 {
		t.Errorf("Expected 2 uploads, got %d", uploads)
	}
	if len(notifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].Shared != 2 {
		t.Errorf("Expected 2 shared in notification, got %d", notifications[0].Shared)
	}

	remaining, err := s.Purge()
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected 0 remaining after purge, got %d", remaining)
	}
}

func TestDropbox_OneFailureDoesNotAbortBatch(t *testing.T) {
	q, s := newTestQueue(t)

	badFile := "b.jpg"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, header, err := r.FormFile("file")
		if err != nil || header.Filename == badFile {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	d := NewDropbox(q, s, server.URL)
	linkDropbox(t, d)

	dest := models.Destination{ID: DropboxDestinationAppFolder, EndpointID: DropboxEndpointID}
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		if _, err := q.Enqueue(writeTestFile(t, name), dest); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	notifications, err := d.ProcessShareRequests(context.Background())
	if err != nil {
		t.Fatalf("ProcessShareRequests failed: %v", err)
	}
	if len(notifications) != 1 || notifications[0].Shared != 2 {
		t.Fatalf("Expected 2 shared despite one failure, got %v", notifications)
	}

	// All records are terminal either way; nothing is re-tried in place.
	remaining, err := s.Purge()
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", remaining)
	}
}

func TestDropbox_MissingFileIsPermanentFailure(t *testing.T) {
	q, s := newTestQueue(t)

	uploads := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	d := NewDropbox(q, s, server.URL)
	linkDropbox(t, d)

	dest := models.Destination{ID: DropboxDestinationAppFolder, EndpointID: DropboxEndpointID}
	if _, err := q.Enqueue("/nonexistent/gone.jpg", dest); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	notifications, err := d.ProcessShareRequests(context.Background())
	if err != nil {
		t.Fatalf("ProcessShareRequests failed: %v", err)
	}
	if uploads != 0 {
		t.Errorf("Expected no upload attempt for missing file, got %d", uploads)
	}
	if len(notifications) != 0 {
		t.Errorf("Expected no notification, got %v", notifications)
	}

	// The record is terminal, not re-checked-out forever.
	remaining, err := s.Purge()
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", remaining)
	}
}

func TestDropbox_AuthRevokedUnlinks(t *testing.T) {
	q, s := newTestQueue(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	d := NewDropbox(q, s, server.URL)
	linkDropbox(t, d)

	dest := models.Destination{ID: DropboxDestinationAppFolder, EndpointID: DropboxEndpointID}
	if _, err := q.Enqueue(writeTestFile(t, "a.jpg"), dest); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := q.Enqueue(writeTestFile(t, "b.jpg"), dest); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if _, err := d.ProcessShareRequests(context.Background()); err != nil {
		t.Fatalf("ProcessShareRequests failed: %v", err)
	}

	if d.IsLinked() {
		t.Error("Expected endpoint unlinked after credentials revoked")
	}
	token, _ := s.Setting("dropbox.access_token")
	if token != "" {
		t.Errorf("Expected stored token cleared, got %q", token)
	}

	// The endpoint's queued records are discarded; they cannot succeed
	// without re-linking.
	requests, err := s.PendingShareRequests()
	if err != nil {
		t.Fatalf("PendingShareRequests failed: %v", err)
	}
	if len(requests) != 0 {
		t.Errorf("Expected no surviving records, got %v", requests)
	}
}

func TestCloudPrint_MultiplePrinters(t *testing.T) {
	q, s := newTestQueue(t)

	printed := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		printed[r.FormValue("printerid")]++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	c := NewCloudPrint(q, s, server.URL)
	for destID, printer := range map[string]string{"0": "printer-lobby", "1": "printer-booth"} {
		err := c.Link(map[string]string{
			"account_name":   "studio",
			"access_token":   "tok-p",
			"printer_id":     printer,
			"destination_id": destID,
		})
		if err != nil {
			t.Fatalf("Link failed: %v", err)
		}
	}

	if len(c.Destinations()) != 2 {
		t.Fatalf("Expected 2 printer destinations, got %d", len(c.Destinations()))
	}

	if _, err := q.Enqueue(writeTestFile(t, "a.jpg"), models.Destination{ID: 0, EndpointID: CloudPrintEndpointID}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := q.Enqueue(writeTestFile(t, "b.jpg"), models.Destination{ID: 1, EndpointID: CloudPrintEndpointID}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	notifications, err := c.ProcessShareRequests(context.Background())
	if err != nil {
		t.Fatalf("ProcessShareRequests failed: %v", err)
	}
	if printed["printer-lobby"] != 1 || printed["printer-booth"] != 1 {
		t.Errorf("Expected one job per printer, got %v", printed)
	}
	if len(notifications) != 2 {
		t.Errorf("Expected one notification per printer, got %d", len(notifications))
	}
}

func TestAlbum_ProcessUsesStoredUploadURL(t *testing.T) {
	q, s := newTestQueue(t)

	uploads := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/albums/42/photos" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		uploads++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	a := NewAlbum(q, s)
	err := a.Link(map[string]string{
		"account_name": "alice",
		"album_name":   "Party Photos",
		"upload_url":   server.URL + "/albums/42/photos",
		"share_url":    server.URL + "/albums/42",
		"access_token": "tok-a",
	})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	dest := models.Destination{ID: AlbumDestinationDefault, EndpointID: AlbumEndpointID}
	if _, err := q.Enqueue(writeTestFile(t, "a.jpg"), dest); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	notifications, err := a.ProcessShareRequests(context.Background())
	if err != nil {
		t.Fatalf("ProcessShareRequests failed: %v", err)
	}
	if uploads != 1 {
		t.Errorf("Expected 1 upload, got %d", uploads)
	}
	if len(notifications) != 1 || notifications[0].Title != "Party Photos" {
		t.Fatalf("Expected album notification, got %v", notifications)
	}
}

func TestUnlinkedEndpointProcessesNothing(t *testing.T) {
	q, s := newTestQueue(t)
	d := NewDropbox(q, s, "http://example.invalid")

	dest := models.Destination{ID: DropboxDestinationAppFolder, EndpointID: DropboxEndpointID}
	if _, err := q.Enqueue("/tmp/a.jpg", dest); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	notifications, err := d.ProcessShareRequests(context.Background())
	if err != nil {
		t.Fatalf("ProcessShareRequests failed: %v", err)
	}
	if notifications != nil {
		t.Errorf("Expected no notifications, got %v", notifications)
	}

	// The pending record is untouched for when the account links.
	requests, err := s.PendingShareRequests()
	if err != nil {
		t.Fatalf("PendingShareRequests failed: %v", err)
	}
	if len(requests) != 1 || requests[0].State != models.StatePending {
		t.Fatalf("Expected 1 pending record, got %v", requests)
	}
}
