package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"disputeflow/events"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the transactional surface the dispatcher drains.
type Store interface {
	ClaimBatch(ctx context.Context, tx pgx.Tx, limit int, retryBefore time.Time) ([]Record, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, id string, at time.Time) error
	MarkFailed(ctx context.Context, tx pgx.Tx, id, reason string, at time.Time, maxAttempts int) (Status, error)
}

type DispatcherConfig struct {
	PollInterval time.Duration
	RetryDelay   time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Result summarises one dispatch pass.
type Result struct {
	Claimed   int
	Published int
	Failed    int
	Dead      int
}

// Dispatcher drains the outbox to the event bus at-least-once.
type Dispatcher struct {
	pool      TxBeginner
	store     Store
	publisher events.Publisher
	logger    *slog.Logger
	cfg       DispatcherConfig
	wake      chan struct{}
	now       func() time.Time
}

func NewDispatcher(pool TxBeginner, store Store, publisher events.Publisher, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pool:      pool,
		store:     store,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		wake:      make(chan struct{}, 1),
		now:       time.Now,
	}
}

func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Notify asks a running dispatcher to poll now. It never blocks.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done, draining full batches back to back.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		for {
			res, err := d.DispatchOnce(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return ctx.Err()
				}
				d.logger.ErrorContext(ctx, "outbox iteration failed",
					"module", "outbox.dispatcher",
					"operation", "dispatch_once",
					"outcome", "failure",
					"error", err,
				)
				break
			}
			if res.Claimed < d.cfg.BatchSize || res.Published == 0 {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DispatchOnce claims one batch, publishes it and records each outcome in the
// transaction that holds the claim. The pass ends at the first failed publish;
// unattempted rows are released on commit and picked up by the next pass.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (Result, error) {
	var res Result

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("outbox: begin dispatch: %w", err)
	}
	defer tx.Rollback(ctx)

	now := d.now().UTC()
	records, err := d.store.ClaimBatch(ctx, tx, d.cfg.BatchSize, now.Add(-d.cfg.RetryDelay))
	if err != nil {
		return res, err
	}
	res.Claimed = len(records)
	if len(records) == 0 {
		return res, nil
	}

	for _, rec := range records {
		msg := events.Message{
			Topic:   rec.Topic,
			Key:     rec.PartitionKey,
			Payload: rec.Payload,
			Headers: map[string]string{events.HeaderEventID: rec.EventID},
		}
		pubErr := d.publisher.Publish(ctx, msg)
		at := d.now().UTC()
		if pubErr == nil {
			if err := d.store.MarkPublished(ctx, tx, rec.ID, at); err != nil {
				return res, err
			}
			res.Published++
			continue
		}

		status, err := d.store.MarkFailed(ctx, tx, rec.ID, pubErr.Error(), at, d.cfg.MaxAttempts)
		if err != nil {
			return res, err
		}
		res.Failed++
		fields := []any{
			"module", "outbox.dispatcher",
			"operation", "publish",
			"outcome", "failure",
			"outbox_id", rec.ID,
			"topic", rec.Topic,
			"partition_key", rec.PartitionKey,
			"attempt", rec.Attempts + 1,
			"error", pubErr,
		}
		if status == StatusDead {
			res.Dead++
			d.logger.ErrorContext(ctx, "outbox message dead-lettered", fields...)
		} else {
			d.logger.ErrorContext(ctx, "publish failed", fields...)
		}
		// A failing bus fails the rest of the batch too; release the claim
		// so the pass does not hold the transaction across every timeout.
		break
	}

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("outbox: commit dispatch: %w", err)
	}
	return res, nil
}
