package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"

	"tokenSync/internal/model"
	"tokenSync/internal/storage"
	"tokenSync/internal/storage/sqlite/migrations"
)

// Store provides SQLite persistence for token state.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		pragma journal_mode = WAL;
		pragma synchronous = normal;
		pragma journal_size_limit  = 6144000;
		pragma busy_timeout = 5000;
	`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Migrate applies pending schema migrations and returns how many ran.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	return migrate.Exec(s.db, "sqlite3", migrations.Source, migrate.Up)
}

func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &unitOfWork{tx: tx}, nil
}

func (s *Store) LastSyncedBlock(ctx context.Context) (uint64, bool, error) {
	var block sql.NullInt64
	row := s.db.QueryRowContext(ctx, `SELECT last_synced_block FROM sync_data WHERE id = 1`)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if !block.Valid {
		return 0, false, nil
	}
	return uint64(block.Int64), true, nil
}

func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"contract_metadata", "token_metadata", "erc721_owners", "erc1155_balances"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return tx.Commit()
}

type unitOfWork struct {
	tx   *sql.Tx
	done bool
}

func (u *unitOfWork) Owner(ctx context.Context, contract model.Felt, tokenID *model.WideUint) (model.Felt, bool, error) {
	var owner string
	row := u.tx.QueryRowContext(ctx,
		`SELECT owner FROM erc721_owners WHERE contract = ? AND token_id = ?`,
		contract.Hex(), model.FormatWideUint(tokenID),
	)
	if err := row.Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO erc721_owners (contract, token_id, owner, updated_block)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (contract, token_id)
		DO UPDATE SET owner = excluded.owner, updated_block = excluded.updated_block
	`, contract.Hex(), model.FormatWideUint(tokenID), owner.Hex(), int64(blockNumber))
	return err
}

func (u *unitOfWork) Balance(ctx context.Context, contract model.Felt, tokenID *model.WideUint, owner model.Felt) (*model.WideUint, error) {
	var amount string
	row := u.tx.QueryRowContext(ctx,
		`SELECT amount FROM erc1155_balances WHERE contract = ? AND token_id = ? AND owner = ?`,
		contract.Hex(), model.FormatWideUint(tokenID), owner.Hex(),
	)
	if err := row.Scan(&amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return new(model.WideUint), nil
		}
		return nil, err
	}
	return model.ParseWideUint(amount)
}

func (u *unitOfWork) SetBalance(ctx context.Context, contract model.Felt, tokenID *model.WideUint, owner model.Felt, amount *model.WideUint, blockNumber uint64) error {
	if amount == nil || amount.IsZero() {
		_, err := u.tx.ExecContext(ctx,
			`DELETE FROM erc1155_balances WHERE contract = ? AND token_id = ? AND owner = ?`,
			contract.Hex(), model.FormatWideUint(tokenID), owner.Hex(),
		)
		return err
	}
	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO erc1155_balances (contract, token_id, owner, amount, updated_block)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (contract, token_id, owner)
		DO UPDATE SET amount = excluded.amount, updated_block = excluded.updated_block
	`, contract.Hex(), model.FormatWideUint(tokenID), owner.Hex(), model.FormatWideUint(amount), int64(blockNumber))
	return err
}

func (u *unitOfWork) TouchContract(ctx context.Context, contract model.Felt, standard string, blockNumber uint64) error {
	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO contract_metadata (contract, standard, first_seen_block)
		VALUES (?, ?, ?)
		ON CONFLICT (contract) DO NOTHING
	`, contract.Hex(), standard, int64(blockNumber))
	return err
}

func (u *unitOfWork) TouchToken(ctx context.Context, contract model.Felt, tokenID *model.WideUint, blockNumber uint64) error {
	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO token_metadata (contract, token_id, first_seen_block)
		VALUES (?, ?, ?)
		ON CONFLICT (contract, token_id) DO NOTHING
	`, contract.Hex(), model.FormatWideUint(tokenID), int64(blockNumber))
	return err
}

func (u *unitOfWork) SetLastSyncedBlock(ctx context.Context, blockNumber uint64) error {
	res, err := u.tx.ExecContext(ctx, `UPDATE sync_data SET last_synced_block = ? WHERE id = 1`, int64(blockNumber))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sync_data row missing")
	}
	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(); err != nil {
		return err
	}
	u.done = true
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
