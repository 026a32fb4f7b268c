package store

import (
	"context"
	"errors"
	"time"

	"ghost.drop/internal/models"
)

var (
	// ErrNotFound deliberately covers both "never existed" and
	// "expired" so callers cannot probe for prior existence.
	ErrNotFound = errors.New("drop not found")

	// ErrExists signals an identifier collision on create.
	ErrExists = errors.New("drop id already exists")

	// ErrDestroyed signals deletion under the failed-attempt policy.
	ErrDestroyed = errors.New("drop destroyed by policy")
)

// Store is TTL-bounded storage for drops. Consume and RecordFailure
// are compound read-modify-write transitions; implementations must run
// them with per-record serializable isolation so that two concurrent
// retrievals of a single-view drop can never both succeed.
type Store interface {
	// Create stores a new drop with the given TTL. It is atomic
	// creation: an existing id yields ErrExists, never an overwrite.
	Create(ctx context.Context, id string, drop *models.Drop, ttl time.Duration) error

	// Get returns the drop without mutating it.
	Get(ctx context.Context, id string) (*models.Drop, error)

	// Replace updates a drop's contents while preserving its
	// remaining TTL. It never extends or resets the expiry.
	Replace(ctx context.Context, id string, drop *models.Drop) error

	// Delete is idempotent; deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Consume applies the retrieval transition atomically: drops at
	// the failed-attempt threshold are deleted and reported as
	// ErrDestroyed before any view accounting; otherwise the view
	// counter is decremented, the record is deleted once it reaches
	// zero, and the payload is returned, including for the final
	// view.
	Consume(ctx context.Context, id string) (*models.Drop, error)

	// RecordFailure increments the failed-attempt counter atomically
	// and deletes the drop once the threshold is reached. An absent
	// id is treated as already gone: (0, true, nil).
	RecordFailure(ctx context.Context, id string) (attempts int, destroyed bool, err error)

	Close() error
}
