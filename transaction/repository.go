package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound signals the requested transaction does not exist.
var ErrNotFound = errors.New("transaction: not found")

// Repository provides access to ledger transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByID fetches a transaction by its primary key.
func (r *Repository) FindByID(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, ErrNotFound
	}

	const query = `
		SELECT id::text, user_id, transaction_type, amount::text, currency, created_at
		FROM transactions
		WHERE id = $1
	`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("transaction: query by id: %w", err)
	}
	return rec, nil
}

// ListByUser fetches a user's transactions, newest first. A positive limit
// bounds the result; zero or less returns every row.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	// LIMIT NULL is no limit in Postgres.
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	const query = `
		SELECT id::text, user_id, transaction_type, amount::text, currency, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2::bigint
	`

	rows, err := r.pool.Query(ctx, query, userID, limitArg)
	if err != nil {
		return nil, fmt.Errorf("transaction: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 16)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("transaction: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transaction: iterate: %w", err)
	}
	return out, nil
}

// Insert stores a new transaction. Used by demo data generation only.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	const query = `
		INSERT INTO transactions (id, user_id, transaction_type, amount, currency, created_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6)
		RETURNING id::text, user_id, transaction_type, amount::text, currency, created_at
	`
	out, err := scanRecord(r.pool.QueryRow(ctx, query,
		rec.ID, rec.UserID, rec.Type, rec.Amount.StringFixed(2), rec.Currency, rec.CreatedAt))
	if err != nil {
		return Record{}, fmt.Errorf("transaction: insert: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		amount string
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Type, &amount, &rec.Currency, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Record{}, fmt.Errorf("transaction: parse amount %q: %w", amount, err)
	}
	rec.Amount = d
	return rec, nil
}
