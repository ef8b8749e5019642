// Package models defines the core data structures for Wings.
//
// It includes the durable share request record, destination addressing, and
// the error taxonomy shared across modules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// State represents the lifecycle state of a share request. The numeric values
// are fixed by the persisted schema and must not be reordered.
type State int

const (
	// StatePending marks a record waiting to be processed.
	StatePending State = 0
	// StateProcessing marks a record claimed by the current drain cycle.
	StateProcessing State = 1
	// StateProcessed marks a terminal record awaiting purge.
	StateProcessed State = 2
)

// String returns a human-readable name for logging.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateProcessing:
		return "processing"
	case StateProcessed:
		return "processed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Error variables for better error handling and testability
var (
	// ErrValidation indicates malformed enqueue input. Never persisted.
	ErrValidation = errors.New("invalid share request")
	// ErrNotFound indicates the referenced record is absent or not in the
	// state the operation requires.
	ErrNotFound = errors.New("share request not found")
	// ErrAuthRevoked indicates the remote service rejected the stored
	// credentials. The endpoint must unlink in response.
	ErrAuthRevoked = errors.New("endpoint credentials revoked")
	// ErrDuplicateEndpoint indicates two registered endpoints share an id.
	ErrDuplicateEndpoint = errors.New("duplicate endpoint id")
)

// StoreError wraps a persistence I/O failure. The worker treats any StoreError
// during a drain cycle as a cycle failure rather than crashing.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err as a StoreError for operation op.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// Destination identifies a specific share target within an endpoint. The
// endpoint id selects the implementation; the destination id disambiguates
// multiple configured targets within one endpoint (e.g. printers).
type Destination struct {
	ID         int `json:"destination_id"`
	EndpointID int `json:"endpoint_id"`
}

// destinationMask limits each component of a destination hash to 16 bits.
const destinationMask = 0xffff

// Hash packs the destination into a single integer suitable for storage in
// one column. Both components must fit in 16 bits.
func (d Destination) Hash() int {
	return (d.ID&destinationMask)<<16 | (d.EndpointID & destinationMask)
}

// DestinationFromHash unpacks a destination hash produced by Hash.
func DestinationFromHash(hash int) Destination {
	return Destination{
		ID:         (hash >> 16) & destinationMask,
		EndpointID: hash & destinationMask,
	}
}

// ShareRequest represents one durable pending upload.
type ShareRequest struct {
	ID          int64       `json:"id"`
	FilePath    string      `json:"file_path"`
	Destination Destination `json:"destination"`
	State       State       `json:"state"`
	Fails       int         `json:"fails"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Notification summarizes the results of processing one endpoint's share
// requests during a drain cycle. It is handed to an external notifier
// collaborator for user-facing display.
type Notification struct {
	EndpointID int    `json:"endpoint_id"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	ShareURL   string `json:"share_url,omitempty"`
	Shared     int    `json:"shared"`
}
