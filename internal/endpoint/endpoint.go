// Package endpoint defines the share destination capability and its
// implementations.
//
// Each endpoint owns the account settings for one remote service and knows
// how to drain its own share requests from the outbox queue. The set of
// endpoints is fixed at startup; the drain worker iterates the registry in
// registration order.
package endpoint

import (
	"context"
	"fmt"

	"github.com/groundupworks/wings/internal/models"
)

// Endpoint is the capability set each share destination implements. The core
// treats an endpoint as an opaque unit of work and never sees upload protocol
// details.
type Endpoint interface {
	// EndpointID returns the stable id identifying this implementation.
	EndpointID() int

	// Destinations returns the configured share targets within this
	// endpoint, in a stable order.
	Destinations() []models.Destination

	// IsLinked reports whether credentials exist to attempt processing.
	IsLinked() bool

	// Link validates and stores account params produced by an external
	// account-linking flow.
	Link(params map[string]string) error

	// Unlink clears stored credentials and deletes this endpoint's
	// outstanding share requests.
	Unlink() error

	// ProcessShareRequests checks out this endpoint's pending records,
	// uploads each file, and reconciles per-item outcomes into the store.
	// One item's failure must not fail its siblings.
	ProcessShareRequests(ctx context.Context) ([]models.Notification, error)
}

// Registry holds the fixed-order list of endpoints assembled once at startup.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a Registry, rejecting duplicate endpoint ids.
func NewRegistry(endpoints ...Endpoint) (*Registry, error) {
	seen := make(map[int]bool, len(endpoints))
	for _, e := range endpoints {
		if seen[e.EndpointID()] {
			return nil, fmt.Errorf("endpoint id %d registered twice: %w", e.EndpointID(), models.ErrDuplicateEndpoint)
		}
		seen[e.EndpointID()] = true
	}
	return &Registry{endpoints: endpoints}, nil
}

// Endpoints returns the registered endpoints in registration order.
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// ByID returns the endpoint with the given id.
func (r *Registry) ByID(id int) (Endpoint, bool) {
	for _, e := range r.endpoints {
		if e.EndpointID() == id {
			return e, true
		}
	}
	return nil, false
}
