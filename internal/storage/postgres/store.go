package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"

	"tokenSync/internal/model"
	"tokenSync/internal/storage"
	"tokenSync/internal/storage/postgres/migrations"
)

// Store provides Postgres persistence for token state.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies pending schema migrations and returns how many ran.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	return migrate.Exec(db, "postgres", migrations.Source, migrate.Up)
}

func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &unitOfWork{tx: tx}, nil
}

func (s *Store) LastSyncedBlock(ctx context.Context) (uint64, bool, error) {
	var block *int64
	row := s.pool.QueryRow(ctx, `SELECT last_synced_block FROM sync_data`)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if block == nil {
		return 0, false, nil
	}
	return uint64(*block), true, nil
}

func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	tables := []string{"contract_metadata", "token_metadata", "erc721_owners", "erc1155_balances"}
	for _, table := range tables {
		batch.Queue("DELETE FROM " + table)
	}
	br := tx.SendBatch(ctx, batch)
	for _, table := range tables {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) Owner(ctx context.Context, contract model.Felt, tokenID *model.WideUint) (model.Felt, bool, error) {
	var owner string
	row := u.tx.QueryRow(ctx,
		`SELECT owner FROM erc721_owners WHERE contract = $1 AND token_id = $2::text::numeric`,
		contract.Hex(), model.FormatWideUint(tokenID),
	)
	if err := row.Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Felt{}, false, nil
		}
		return model.Felt{}, false, err
	}
	felt, err := model.ParseFelt(owner)
	if err != nil {
		return model.Felt{}, false, fmt.Errorf("stored owner: %w", err)
	}
	return felt, true, nil
}

func (u *unitOfWork) SetOwner(ctx context.Context, contract model.Felt, tokenID *model.WideUint, owner model.Felt, blockNumber uint64) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO erc721_owners (contract, token_id, owner, updated_block, updated_at)
		VALUES ($1, $2::text::numeric, $3, $4, now())
		ON CONFLICT (contract, token_id)
		DO UPDATE SET
			owner = EXCLUDED.owner,
			updated_block = EXCLUDED.updated_block,
			updated_at = now()
	`, contract.Hex(), model.FormatWideUint(tokenID), owner.Hex(), int64(blockNumber))
	return err
}

func (u *unitOfWork) Balance(ctx context.Context, contract model.Felt, tokenID *model.WideUint, owner model.Felt) (*model.WideUint, error) {
	var amount string
	row := u.tx.QueryRow(ctx,
		`SELECT amount::text FROM erc1155_balances WHERE contract = $1 AND token_id = $2::text::numeric AND owner = $3`,
		contract.Hex(), model.FormatWideUint(tokenID), owner.Hex(),
	)
	if err := row.Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(model.WideUint), nil
		}
		return nil, err
	}
	return model.ParseWideUint(amount)
}

func (u *unitOfWork) SetBalance(ctx context.Context, contract model.Felt, tokenID *model.WideUint, owner model.Felt, amount *model.WideUint, blockNumber uint64) error {
	if amount == nil || amount.IsZero() {
		_, err := u.tx.Exec(ctx,
			`DELETE FROM erc1155_balances WHERE contract = $1 AND token_id = $2::text::numeric AND owner = $3`,
			contract.Hex(), model.FormatWideUint(tokenID), owner.Hex(),
		)
		return err
	}
	_, err := u.tx.Exec(ctx, `
		INSERT INTO erc1155_balances (contract, token_id, owner, amount, updated_block, updated_at)
		VALUES ($1, $2::text::numeric, $3, $4::text::numeric, $5, now())
		ON CONFLICT (contract, token_id, owner)
		DO UPDATE SET
			amount = EXCLUDED.amount,
			updated_block = EXCLUDED.updated_block,
			updated_at = now()
	`, contract.Hex(), model.FormatWideUint(tokenID), owner.Hex(), model.FormatWideUint(amount), int64(blockNumber))
	return err
}

func (u *unitOfWork) TouchContract(ctx context.Context, contract model.Felt, standard string, blockNumber uint64) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO contract_metadata (contract, standard, first_seen_block, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (contract) DO NOTHING
	`, contract.Hex(), standard, int64(blockNumber))
	return err
}

func (u *unitOfWork) TouchToken(ctx context.Context, contract model.Felt, tokenID *model.WideUint, blockNumber uint64) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO token_metadata (contract, token_id, first_seen_block, created_at)
		VALUES ($1, $2::text::numeric, $3, now())
		ON CONFLICT (contract, token_id) DO NOTHING
	`, contract.Hex(), model.FormatWideUint(tokenID), int64(blockNumber))
	return err
}

func (u *unitOfWork) SetLastSyncedBlock(ctx context.Context, blockNumber uint64) error {
	tag, err := u.tx.Exec(ctx, `UPDATE sync_data SET last_synced_block = $1`, int64(blockNumber))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sync_data row missing")
	}
	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
