package endpoint

import (
	"context"
	"errors"
	"log/slog"

	"github.com/groundupworks/wings/internal/models"
	"github.com/groundupworks/wings/internal/outbox"
)

// uploadFunc attempts to upload one checked-out share request.
type uploadFunc func(ctx context.Context, req models.ShareRequest) error

// drainDestination checks out one destination's pending records and uploads
// them one at a time. Each record succeeds or fails independently. Once the
// remote signals revoked credentials, remaining records are failed without
// further network calls. Returns the number shared and whether credentials
// were revoked.
func drainDestination(ctx context.Context, queue *outbox.Queue, dest models.Destination, upload uploadFunc) (int, bool, error) {
	requests, err := queue.Checkout(dest)
	if err != nil {
		return 0, false, err
	}
	if len(requests) == 0 {
		return 0, false, nil
	}
	slog.Debug("drainDestination: processing share requests", "endpoint", dest.EndpointID, "destination", dest.ID, "count", len(requests))

	revoked := false
	results := make([]outbox.Result, 0, len(requests))
	for _, req := range requests {
		if revoked {
			results = append(results, outbox.Result{ID: req.ID, Err: models.ErrAuthRevoked})
			continue
		}
		uploadErr := upload(ctx, req)
		if errors.Is(uploadErr, models.ErrAuthRevoked) {
			revoked = true
		}
		results = append(results, outbox.Result{ID: req.ID, Err: uploadErr})
	}

	shared := queue.Reconcile(results)
	return shared, revoked, nil
}
