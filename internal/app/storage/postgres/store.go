package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/storage"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.PaymentListStore = (*Store)(nil)
var _ storage.StorageCreditStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Bootstrap creates the required tables when they do not exist.
func (s *Store) Bootstrap(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS payment_lists (
			id          TEXT PRIMARY KEY,
			token_id    TEXT NOT NULL,
			submitter   TEXT NOT NULL,
			status      TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS payment_records (
			list_id        TEXT NOT NULL REFERENCES payment_lists(id) ON DELETE CASCADE,
			idx            INT NOT NULL,
			recipient      TEXT NOT NULL,
			amount         NUMERIC(39,0) NOT NULL,
			status         TEXT NOT NULL,
			execution_ref  TEXT NOT NULL DEFAULT '',
			failure_reason TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (list_id, idx)
		);
		CREATE TABLE IF NOT EXISTS storage_credits (
			account    TEXT PRIMARY KEY,
			balance    NUMERIC(39,0) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

// --- PaymentListStore -------------------------------------------------------

func (s *Store) CreateList(ctx context.Context, list payment.List) (payment.List, error) {
	now := time.Now().UTC()
	list.CreatedAt = now
	list.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return payment.List{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_lists (id, token_id, submitter, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, list.ID, list.TokenID, list.Submitter, list.Status, list.CreatedAt, list.UpdatedAt)
	if err != nil {
		return payment.List{}, err
	}

	if err := insertRecords(ctx, tx, list.ID, list.Payments); err != nil {
		return payment.List{}, err
	}

	if err := tx.Commit(); err != nil {
		return payment.List{}, err
	}
	return list, nil
}

func (s *Store) UpdateList(ctx context.Context, list payment.List) (payment.List, error) {
	list.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return payment.List{}, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE payment_lists
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, list.ID, list.Status, list.UpdatedAt)
	if err != nil {
		return payment.List{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return payment.List{}, fmt.Errorf("list %s: %w", list.ID, payment.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_records WHERE list_id = $1`, list.ID); err != nil {
		return payment.List{}, err
	}
	if err := insertRecords(ctx, tx, list.ID, list.Payments); err != nil {
		return payment.List{}, err
	}

	if err := tx.Commit(); err != nil {
		return payment.List{}, err
	}
	return list, nil
}

func (s *Store) GetList(ctx context.Context, id string) (payment.List, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, token_id, submitter, status, created_at, updated_at
		FROM payment_lists
		WHERE id = $1
	`, id)

	var list payment.List
	if err := row.Scan(&list.ID, &list.TokenID, &list.Submitter, &list.Status, &list.CreatedAt, &list.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payment.List{}, fmt.Errorf("list %s: %w", id, payment.ErrNotFound)
		}
		return payment.List{}, err
	}

	records, err := s.listRecords(ctx, id)
	if err != nil {
		return payment.List{}, err
	}
	list.Payments = records
	return list, nil
}

func (s *Store) ListLists(ctx context.Context) ([]payment.List, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token_id, submitter, status, created_at, updated_at
		FROM payment_lists
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payment.List
	for rows.Next() {
		var list payment.List
		if err := rows.Scan(&list.ID, &list.TokenID, &list.Submitter, &list.Status, &list.CreatedAt, &list.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, list)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		records, err := s.listRecords(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Payments = records
	}
	return result, nil
}

func (s *Store) listRecords(ctx context.Context, listID string) ([]payment.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recipient, amount, status, execution_ref, failure_reason
		FROM payment_records
		WHERE list_id = $1
		ORDER BY idx
	`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []payment.Record
	for rows.Next() {
		var rec payment.Record
		if err := rows.Scan(&rec.Recipient, &rec.Amount, &rec.Status, &rec.ExecutionRef, &rec.FailureReason); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func insertRecords(ctx context.Context, tx *sql.Tx, listID string, records []payment.Record) error {
	for i, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO payment_records (list_id, idx, recipient, amount, status, execution_ref, failure_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, listID, i, rec.Recipient, rec.Amount, rec.Status, rec.ExecutionRef, rec.FailureReason)
		if err != nil {
			return err
		}
	}
	return nil
}

// --- StorageCreditStore -----------------------------------------------------

func (s *Store) GetCredit(ctx context.Context, account string) (amount.Amount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT balance FROM storage_credits WHERE account = $1
	`, account)

	var balance amount.Amount
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return amount.Zero(), nil
		}
		return amount.Amount{}, err
	}
	return balance, nil
}

func (s *Store) PutCredit(ctx context.Context, account string, balance amount.Amount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storage_credits (account, balance, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account) DO UPDATE SET balance = $2, updated_at = $3
	`, account, balance, time.Now().UTC())
	return err
}

func (s *Store) ListCredits(ctx context.Context) (map[string]amount.Amount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account, balance FROM storage_credits
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]amount.Amount)
	for rows.Next() {
		var (
			account string
			balance amount.Amount
		)
		if err := rows.Scan(&account, &balance); err != nil {
			return nil, err
		}
		result[account] = balance
	}
	return result, rows.Err()
}
