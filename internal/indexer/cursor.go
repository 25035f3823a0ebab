package indexer

import (
	"context"
	"fmt"

	"tokenSync/internal/model"
	"tokenSync/internal/storage"
)

// SyncCursor tracks the last block whose state has been committed.
type SyncCursor struct {
	store storage.Store
}

func NewSyncCursor(store storage.Store) *SyncCursor {
	return &SyncCursor{store: store}
}

// Read returns the last synced block, or model.ErrSyncNotInitialized when it was never seeded.
func (c *SyncCursor) Read(ctx context.Context) (uint64, error) {
	block, ok, err := c.store.LastSyncedBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("read last synced block: %w", err)
	}
	if !ok {
		return 0, model.ErrSyncNotInitialized
	}
	return block, nil
}

// Advance records blockNumber inside uow so it commits together with the
// block's state mutations. Callers pass the next sequential block.
func (c *SyncCursor) Advance(ctx context.Context, uow storage.UnitOfWork, blockNumber uint64) error {
	if err := uow.SetLastSyncedBlock(ctx, blockNumber); err != nil {
		return fmt.Errorf("advance cursor to %d: %w", blockNumber, err)
	}
	return nil
}

// Seed sets the cursor in its own unit of work. Used for bootstrap.
func (c *SyncCursor) Seed(ctx context.Context, blockNumber uint64) error {
	uow, err := c.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback(ctx)

	if err := c.Advance(ctx, uow, blockNumber); err != nil {
		return err
	}
	return uow.Commit(ctx)
}
