package ingest

import (
	"context"

	"github.com/google/uuid"
	"thirdcoast.systems/inflow/internal/provider"
)

// WriteSet is the full set of rows one ingested item produces. Canonical is
// nil when the shared row already exists. Every row is written with
// insert-if-absent semantics keyed on its table's unique constraint.
type WriteSet struct {
	Canonical        *CanonicalItem
	UserItem         UserItem
	SubscriptionItem SubscriptionItem
	Seen             SeenRecord
}

// Store is the storage boundary the pipeline depends on. The contract it
// assumes from the engine: unique-constrained tables, an atomic
// insert-no-op-on-conflict per statement, and all-or-nothing execution of a
// group of such statements (ExecWriteSets). No multi-statement transaction
// beyond that is required.
type Store interface {
	// FindCanonicalItem returns the shared item row, or nil when absent.
	FindCanonicalItem(ctx context.Context, p provider.Provider, providerItemID string) (*CanonicalItem, error)

	// AttachCreator backfills the creator reference on a canonical item that
	// is missing one. It must not overwrite an existing reference.
	AttachCreator(ctx context.Context, itemID, creatorID uuid.UUID) error

	// HasSeen reports whether the idempotency ledger holds an entry for
	// (userID, provider, providerItemID).
	HasSeen(ctx context.Context, userID uuid.UUID, p provider.Provider, providerItemID string) (bool, error)

	// UpsertCreator inserts the creator if absent and returns the id of the
	// persisted row, which may belong to a concurrent winner.
	UpsertCreator(ctx context.Context, c Creator) (uuid.UUID, error)

	// InsertDeadLetter appends a failure record.
	InsertDeadLetter(ctx context.Context, d DeadLetter) error

	// ExecWriteSets applies every statement of every set atomically: all rows
	// land or none do. Individual inserts silently no-op on unique-key
	// conflict.
	ExecWriteSets(ctx context.Context, sets []WriteSet) error
}
