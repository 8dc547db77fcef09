package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Enqueue inserts msg inside the caller's transaction.
func (r *Repository) Enqueue(ctx context.Context, tx pgx.Tx, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	var eventID *string
	if msg.EventID != "" {
		eventID = &msg.EventID
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO outbox (id, topic, partition_key, event_id, payload)
		VALUES ($1, $2, $3, $4::uuid, $5::jsonb)
	`, msg.ID, msg.Topic, msg.PartitionKey, eventID, string(msg.Payload)); err != nil {
		return fmt.Errorf("outbox: enqueue %s: %w", msg.Topic, err)
	}
	return nil
}

// ClaimBatch locks up to limit pending rows. Only the oldest pending row of
// each partition key is eligible, so a key is never published out of order.
// Rows attempted after retryBefore are skipped until their delay elapses.
func (r *Repository) ClaimBatch(ctx context.Context, tx pgx.Tx, limit int, retryBefore time.Time) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT o.id::text, o.seq, o.topic, o.partition_key, COALESCE(o.event_id::text, ''),
		       o.payload, o.attempts, o.created_at
		FROM outbox o
		WHERE o.status = 'pending'
		  AND (o.last_attempt_at IS NULL OR o.last_attempt_at <= $2)
		  AND NOT EXISTS (
		      SELECT 1 FROM outbox p
		      WHERE p.partition_key = o.partition_key
		        AND p.status = 'pending'
		        AND p.seq < o.seq)
		ORDER BY o.seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit, retryBefore)
	if err != nil {
		return nil, fmt.Errorf("outbox: claim: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Topic, &rec.PartitionKey, &rec.EventID,
			&rec.Payload, &rec.Attempts, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate: %w", err)
	}
	return out, nil
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, id string, at time.Time) error {
	if _, err := tx.Exec(ctx, `
		UPDATE outbox
		SET status = 'published', published_at = $2, last_attempt_at = $2, attempts = attempts + 1, last_error = NULL
		WHERE id = $1
	`, id, at); err != nil {
		return fmt.Errorf("outbox: mark published: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt and returns the row's new status;
// rows reaching maxAttempts become dead.
func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id, reason string, at time.Time, maxAttempts int) (Status, error) {
	var status Status
	if err := tx.QueryRow(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    last_attempt_at = $3,
		    status = CASE WHEN $4 > 0 AND attempts + 1 >= $4 THEN 'dead' ELSE 'pending' END
		WHERE id = $1
		RETURNING status
	`, id, reason, at, maxAttempts).Scan(&status); err != nil {
		return "", fmt.Errorf("outbox: mark failed: %w", err)
	}
	return status, nil
}

// Counts returns the number of rows per status.
func (r *Repository) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("outbox: counts: %w", err)
	}
	defer rows.Close()

	out := map[Status]int{StatusPending: 0, StatusPublished: 0, StatusDead: 0}
	for rows.Next() {
		var (
			s Status
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("outbox: scan counts: %w", err)
		}
		out[s] = n
	}
	return out, rows.Err()
}
