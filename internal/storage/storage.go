package storage

import (
	"context"

	"tokenSync/internal/model"
)

// Store is the persistence collaborator holding ownership, balances and the sync cursor.
type Store interface {
	// Begin opens a unit of work. Callers must Commit or Rollback it.
	Begin(ctx context.Context) (UnitOfWork, error)
	// LastSyncedBlock returns the cursor; ok is false when it was never written.
	LastSyncedBlock(ctx context.Context) (block uint64, ok bool, err error)
	// Reset deletes all domain rows in one transaction. The schema and the
	// sync_data row are kept.
	Reset(ctx context.Context) error
	Migrate(ctx context.Context) (int, error)
	Close()
}

// UnitOfWork groups the state mutations of one block with its cursor advance.
// Rollback after a successful Commit is a no-op.
type UnitOfWork interface {
	Owner(ctx context.Context, contract model.Felt, tokenID *model.WideUint) (model.Felt, bool, error)
	SetOwner(ctx context.Context, contract model.Felt, tokenID *model.WideUint, owner model.Felt, blockNumber uint64) error

	// Balance returns zero when no record exists.
	Balance(ctx context.Context, contract model.Felt, tokenID *model.WideUint, owner model.Felt) (*model.WideUint, error)
	// SetBalance deletes the record when amount is zero.
	SetBalance(ctx context.Context, contract model.Felt, tokenID *model.WideUint, owner model.Felt, amount *model.WideUint, blockNumber uint64) error

	TouchContract(ctx context.Context, contract model.Felt, standard string, blockNumber uint64) error
	TouchToken(ctx context.Context, contract model.Felt, tokenID *model.WideUint, blockNumber uint64) error

	SetLastSyncedBlock(ctx context.Context, blockNumber uint64) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
