// Package store provides storage backends for Wings.
//
// It persists share requests, the retry policy counter, and linked-account
// settings behind repo interfaces, with SQLite and PostgreSQL implementations.
package store

import (
	"time"

	"github.com/groundupworks/wings/internal/models"
)

// RecordExpiry is how long a share request may stay in the table before a
// purge removes it regardless of state.
const RecordExpiry = 48 * time.Hour

// ShareRepo defines durable share request persistence. Only this interface
// may transition record state.
type ShareRepo interface {
	// CreateShareRequest inserts a new pending record and returns its id.
	// An empty file path is rejected with models.ErrValidation.
	CreateShareRequest(filePath string, dest models.Destination) (int64, error)

	// CheckoutShareRequests atomically claims all pending records for the
	// destination, transitioning them to processing, ordered oldest first.
	CheckoutShareRequests(dest models.Destination) ([]models.ShareRequest, error)

	// MarkSuccessful transitions a processing record to processed.
	// Returns models.ErrNotFound if the record is absent or not processing.
	MarkSuccessful(id int64) error

	// MarkFailed transitions a processing record to processed and bumps its
	// fail counter. Returns models.ErrNotFound like MarkSuccessful.
	MarkFailed(id int64) error

	// ResetProcessingShareRequests reverts every processing record to
	// pending and returns the number reset. Run once at the start of each
	// drain cycle to recover records orphaned by a crash.
	ResetProcessingShareRequests() (int, error)

	// Purge deletes processed records and records older than RecordExpiry,
	// returning the number of pending and processing records that remain.
	Purge() (int, error)

	// DeleteShareRequests removes all records for a destination in any
	// state. Used when an account is unlinked.
	DeleteShareRequests(dest models.Destination) error

	// PendingShareRequests lists all non-terminal records, oldest first.
	PendingShareRequests() ([]models.ShareRequest, error)
}

// PolicyRepo persists the retry policy's consecutive failure counter so that
// backoff survives process restarts.
type PolicyRepo interface {
	ConsecutiveFails() (int, error)
	SetConsecutiveFails(n int) error
}

// SettingsRepo persists linked-account settings for endpoints as key/value
// pairs (account name, share URL, access token, printer id).
type SettingsRepo interface {
	// Setting returns the value for key, or "" if the key is absent.
	Setting(key string) (string, error)
	PutSetting(key, value string) error
	// DeleteSettings removes every setting whose key starts with prefix.
	DeleteSettings(prefix string) error
}

// Store is the full persistence surface required by the daemon.
type Store interface {
	ShareRepo
	PolicyRepo
	SettingsRepo
	Close() error
}

// Opts holds configuration for store constructors.
type Opts struct {
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}
