package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the persistence surface of the lifecycle service. Methods
// taking a pgx.Tx run inside the caller's unit of work.
type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, d Dispute) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Dispute, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, d Dispute, prevVersion int) error
	AppendEvent(ctx context.Context, tx pgx.Tx, e Event) error

	GetByID(ctx context.Context, id string) (Dispute, error)
	ListByUser(ctx context.Context, userID string) ([]Dispute, error)
	List(ctx context.Context, f ListFilters) ([]Dispute, int, error)
	ListEvents(ctx context.Context, disputeID string) ([]Event, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const disputeColumns = `id::text, transaction_id::text, user_id, reason_code, status_code, version, created_at, updated_at`

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, d Dispute) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO disputes (id, transaction_id, user_id, reason_code, status_code, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.TransactionRef, d.UserID, d.ReasonCode, d.StatusCode, d.Version, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("dispute: insert: %w", mapConstraint(err))
	}
	return nil
}

// GetForUpdate reads the dispute and holds its row lock until tx ends, so
// concurrent status changes to one dispute apply one after another.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Dispute, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Dispute{}, ErrNotFound
	}
	d, err := scanDispute(tx.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispute{}, ErrNotFound
		}
		return Dispute{}, fmt.Errorf("dispute: lock: %w", err)
	}
	return d, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, d Dispute, prevVersion int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE disputes
		SET status_code = $2, updated_at = $3, version = $4
		WHERE id = $1 AND version = $5
	`, d.ID, d.StatusCode, d.UpdatedAt, d.Version, prevVersion)
	if err != nil {
		return fmt.Errorf("dispute: update status: %w", mapConstraint(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *PGRepository) AppendEvent(ctx context.Context, tx pgx.Tx, e Event) error {
	raw, err := EncodePayload(e.Payload)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO dispute_events (id, dispute_id, event_type_code, event_data, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`, e.ID, e.DisputeID, e.EventTypeCode, string(raw), e.CreatedAt); err != nil {
		return fmt.Errorf("dispute: append event: %w", mapConstraint(err))
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Dispute, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Dispute{}, ErrNotFound
	}
	d, err := scanDispute(r.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispute{}, ErrNotFound
		}
		return Dispute{}, fmt.Errorf("dispute: get: %w", err)
	}
	return d, nil
}

func (r *PGRepository) ListByUser(ctx context.Context, userID string) ([]Dispute, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+`
		FROM disputes
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list by user: %w", err)
	}
	return collectDisputes(rows)
}

func (r *PGRepository) List(ctx context.Context, f ListFilters) ([]Dispute, int, error) {
	f = f.normalize()

	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM disputes WHERE ($1 = '' OR status_code = $1)
	`, f.StatusCode).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("dispute: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+`
		FROM disputes
		WHERE ($1 = '' OR status_code = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, f.StatusCode, f.PageSize, f.offset())
	if err != nil {
		return nil, 0, fmt.Errorf("dispute: list: %w", err)
	}
	items, err := collectDisputes(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PGRepository) ListEvents(ctx context.Context, disputeID string) ([]Event, error) {
	if _, err := uuid.Parse(disputeID); err != nil {
		return nil, ErrNotFound
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, dispute_id::text, event_type_code, event_data, created_at
		FROM dispute_events
		WHERE dispute_id = $1
		ORDER BY seq
	`, disputeID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0, 4)
	for rows.Next() {
		var (
			e   Event
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.DisputeID, &e.EventTypeCode, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan event: %w", err)
		}
		payload, err := DecodePayload(e.EventTypeCode, raw)
		if err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate events: %w", err)
	}
	return out, nil
}

func scanDispute(row pgx.Row) (Dispute, error) {
	var d Dispute
	err := row.Scan(&d.ID, &d.TransactionRef, &d.UserID, &d.ReasonCode, &d.StatusCode, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Dispute{}, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}

func collectDisputes(rows pgx.Rows) ([]Dispute, error) {
	defer rows.Close()
	out := make([]Dispute, 0, 8)
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

// mapConstraint turns foreign key violations into domain errors. They only
// surface when reference data changes between validation and write.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23503":
		if pgErr.ConstraintName == "disputes_transaction_id_fkey" {
			return fmt.Errorf("%w: transaction (%s)", ErrNotFound, pgErr.ConstraintName)
		}
		return fmt.Errorf("%w: %s", ErrInvalidArgument, pgErr.ConstraintName)
	case "23505":
		return fmt.Errorf("%w: duplicate key (%s)", ErrConflict, pgErr.ConstraintName)
	default:
		return err
	}
}
