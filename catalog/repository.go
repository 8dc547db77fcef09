package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the read/write surface over the reference tables.
type Store interface {
	Find(ctx context.Context, kind Kind, code string) (Entry, error)
	List(ctx context.Context, kind Kind) ([]Entry, error)
}

// Repository reads and seeds the reference tables in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Find(ctx context.Context, kind Kind, code string) (Entry, error) {
	table, ok := kind.table()
	if !ok {
		return Entry{}, fmt.Errorf("catalog: unknown kind %q", kind)
	}

	var e Entry
	err := r.pool.QueryRow(ctx, `SELECT code, description FROM `+table+` WHERE code = $1`, code).
		Scan(&e.Code, &e.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("catalog: find %s: %w", kind, err)
	}
	return e, nil
}

func (r *Repository) List(ctx context.Context, kind Kind) ([]Entry, error) {
	table, ok := kind.table()
	if !ok {
		return nil, fmt.Errorf("catalog: unknown kind %q", kind)
	}

	rows, err := r.pool.Query(ctx, `SELECT code, description FROM `+table+` ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list %s: %w", kind, err)
	}
	defer rows.Close()

	out := make([]Entry, 0, 8)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Code, &e.Description); err != nil {
			return nil, fmt.Errorf("catalog: scan %s: %w", kind, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate %s: %w", kind, err)
	}
	return out, nil
}

// Upsert writes entries for one kind in a single transaction. Existing
// descriptions are overwritten; codes are never removed.
func (r *Repository) Upsert(ctx context.Context, kind Kind, entries []Entry) (int, error) {
	table, ok := kind.table()
	if !ok {
		return 0, fmt.Errorf("catalog: unknown kind %q", kind)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog: begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	n := 0
	for _, e := range entries {
		tag, err := tx.Exec(ctx, `
			INSERT INTO `+table+` (code, description) VALUES ($1, $2)
			ON CONFLICT (code) DO UPDATE SET description = EXCLUDED.description
		`, e.Code, e.Description)
		if err != nil {
			return 0, fmt.Errorf("catalog: upsert %s %s: %w", kind, e.Code, err)
		}
		n += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("catalog: commit upsert: %w", err)
	}
	return n, nil
}
