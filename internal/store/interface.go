package store

import (
	"context"
	"time"

	"github.com/ledgerline/ledgersync/internal/schema"
)

// Adapter is the uniform CRUD surface over one store.
//
// Both the embedded local store and the remote backend implement it, so the
// reconciler and the duplicate sweep never know which side they talk to.
// Records are returned as schema.Record; use the kind's concrete type via a
// type assertion when fields are needed.
type Adapter interface {
	// Get returns one record. Unknown ids return apperr.ErrNotFound.
	Get(ctx context.Context, kind schema.Kind, id string) (schema.Record, error)

	// GetAll returns every record of kind whose scope id equals scope,
	// ordered by id. An empty scope returns every record of the kind.
	GetAll(ctx context.Context, kind schema.Kind, scope string) ([]schema.Record, error)

	// Add inserts a new record. A colliding id returns
	// apperr.ErrAlreadyExists locally and apperr.ErrConflict remotely.
	Add(ctx context.Context, rec schema.Record) error

	// Update replaces an existing record. Unknown ids return
	// apperr.ErrNotFound.
	Update(ctx context.Context, rec schema.Record) error

	// Delete removes a record. Unknown ids return apperr.ErrNotFound.
	Delete(ctx context.Context, kind schema.Kind, id string) error
}

// RemoteAdapter is the remote side of replication.
type RemoteAdapter interface {
	Adapter

	// CreateOrUpdate adds rec, falling back to an update when the id is
	// already taken.
	CreateOrUpdate(ctx context.Context, rec schema.Record) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// CheckpointStore records when each kind was last reconciled.
type CheckpointStore interface {
	// Checkpoint returns the last reconcile time of kind. The bool is false
	// when the kind has never been reconciled.
	Checkpoint(ctx context.Context, kind schema.Kind) (time.Time, bool, error)

	// SetCheckpoint records a completed reconcile of kind.
	SetCheckpoint(ctx context.Context, kind schema.Kind, at time.Time) error

	// Checkpoints returns every recorded checkpoint.
	Checkpoints(ctx context.Context) (map[schema.Kind]time.Time, error)
}

// LocalAdapter is the local side of replication: records plus checkpoints.
type LocalAdapter interface {
	Adapter
	CheckpointStore
}

// Compile-time interface checks.
var (
	_ LocalAdapter  = (*Local)(nil)
	_ RemoteAdapter = (*Remote)(nil)
)
