package dispute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"disputeflow/catalog"
	"disputeflow/outbox"
	"disputeflow/transaction"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Catalog resolves the reference codes a dispute refers to.
type Catalog interface {
	FindReason(ctx context.Context, code string) (catalog.Entry, error)
	FindStatus(ctx context.Context, code string) (catalog.Entry, error)
	FindEventType(ctx context.Context, code string) (catalog.Entry, error)
}

type TransactionFinder interface {
	FindTransaction(ctx context.Context, id string) (transaction.Record, error)
}

type OutboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, msg outbox.Message) error
}

// Notifier is told after a commit that new outbox rows are waiting.
type Notifier interface {
	Notify()
}

type Topics struct {
	Created string
	Updated string
}

// Service is the dispute lifecycle manager. Each state change writes the
// dispute row, its audit event and an outbox message in one transaction.
type Service struct {
	pool         TxBeginner
	repo         Repository
	catalog      Catalog
	transactions TransactionFinder
	outbox       OutboxWriter
	notifier     Notifier
	policy       TransitionPolicy
	topics       Topics
	logger       *slog.Logger
	idGenerator  func() string
	now          func() time.Time
}

func NewService(pool TxBeginner, repo Repository, cat Catalog, transactions TransactionFinder, ob OutboxWriter) *Service {
	return &Service{
		pool:         pool,
		repo:         repo,
		catalog:      cat,
		transactions: transactions,
		outbox:       ob,
		policy:       AllowAll{},
		topics:       Topics{Created: TopicCreated, Updated: TopicUpdated},
		logger:       slog.Default(),
		idGenerator:  func() string { return uuid.NewString() },
		now:          time.Now,
	}
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) WithPolicy(p TransitionPolicy) *Service {
	if p == nil {
		p = AllowAll{}
	}
	s.policy = p
	return s
}

func (s *Service) WithTopics(t Topics) *Service {
	if t.Created != "" {
		s.topics.Created = t.Created
	}
	if t.Updated != "" {
		s.topics.Updated = t.Updated
	}
	return s
}

func (s *Service) WithLogger(l *slog.Logger) *Service {
	s.logger = l
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// clock matches PostgreSQL timestamptz precision so values round-trip unchanged.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// CreateDispute opens a PENDING dispute against an existing transaction.
func (s *Service) CreateDispute(ctx context.Context, params CreateParams) (Dispute, error) {
	params.TransactionRef = strings.TrimSpace(params.TransactionRef)
	params.UserID = strings.TrimSpace(params.UserID)
	params.ReasonCode = strings.TrimSpace(params.ReasonCode)
	if params.UserID == "" {
		return Dispute{}, fmt.Errorf("%w: missing user id", ErrInvalidArgument)
	}
	if params.TransactionRef == "" {
		return Dispute{}, fmt.Errorf("%w: missing transaction id", ErrInvalidArgument)
	}
	if params.ReasonCode == "" {
		return Dispute{}, fmt.Errorf("%w: missing reason code", ErrInvalidArgument)
	}

	if _, err := s.transactions.FindTransaction(ctx, params.TransactionRef); err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			return Dispute{}, fmt.Errorf("%w: transaction %s", ErrNotFound, params.TransactionRef)
		}
		return Dispute{}, fmt.Errorf("dispute: find transaction: %w", err)
	}
	if err := s.requireCode(ctx, s.catalog.FindReason, params.ReasonCode, ErrInvalidArgument, "reason"); err != nil {
		return Dispute{}, err
	}
	if err := s.requireCode(ctx, s.catalog.FindStatus, StatusPending, ErrInvariantViolation, "status"); err != nil {
		return Dispute{}, err
	}
	if err := s.requireCode(ctx, s.catalog.FindEventType, EventCreated, ErrInvariantViolation, "event type"); err != nil {
		return Dispute{}, err
	}

	now := s.clock()
	d := Dispute{
		ID:             s.idGenerator(),
		TransactionRef: params.TransactionRef,
		UserID:         params.UserID,
		ReasonCode:     params.ReasonCode,
		StatusCode:     StatusPending,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	evt := Event{
		ID:            s.idGenerator(),
		DisputeID:     d.ID,
		EventTypeCode: EventCreated,
		Payload: CreatedPayload{
			ReasonCode:     d.ReasonCode,
			StatusCode:     d.StatusCode,
			TransactionRef: d.TransactionRef,
			UserID:         d.UserID,
		},
		CreatedAt: now,
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.Insert(ctx, tx, d); err != nil {
			return err
		}
		if err := s.repo.AppendEvent(ctx, tx, evt); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, s.topics.Created, d, evt.ID)
	})
	if err != nil {
		return Dispute{}, err
	}

	s.afterCommit(ctx, "create_dispute", d, evt)
	return d, nil
}

// UpdateDisputeStatus moves a dispute to another catalog status. The row is
// locked for the duration of the transaction so the audit event always
// records the status it actually replaced.
func (s *Service) UpdateDisputeStatus(ctx context.Context, params UpdateStatusParams) (Dispute, error) {
	params.DisputeID = strings.TrimSpace(params.DisputeID)
	params.StatusCode = strings.TrimSpace(params.StatusCode)
	if params.DisputeID == "" {
		return Dispute{}, fmt.Errorf("%w: missing dispute id", ErrNotFound)
	}
	if params.StatusCode == "" {
		return Dispute{}, fmt.Errorf("%w: missing status code", ErrInvalidArgument)
	}

	if err := s.requireCode(ctx, s.catalog.FindStatus, params.StatusCode, ErrInvalidArgument, "status"); err != nil {
		return Dispute{}, err
	}
	if err := s.requireCode(ctx, s.catalog.FindEventType, EventStatusUpdated, ErrInvariantViolation, "event type"); err != nil {
		return Dispute{}, err
	}

	var (
		next Dispute
		evt  Event
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		prev, err := s.repo.GetForUpdate(ctx, tx, params.DisputeID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: dispute %s", ErrNotFound, params.DisputeID)
			}
			return err
		}
		if params.ExpectedVersion != nil && *params.ExpectedVersion != prev.Version {
			return fmt.Errorf("%w: expected version %d, current %d", ErrConflict, *params.ExpectedVersion, prev.Version)
		}
		if !s.policy.Allow(prev.StatusCode, params.StatusCode) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.StatusCode, params.StatusCode)
		}

		now := s.clock()
		if !now.After(prev.UpdatedAt) {
			now = prev.UpdatedAt.Add(time.Microsecond)
		}
		next = prev
		next.StatusCode = params.StatusCode
		next.UpdatedAt = now
		next.Version = prev.Version + 1

		evt = Event{
			ID:            s.idGenerator(),
			DisputeID:     next.ID,
			EventTypeCode: EventStatusUpdated,
			Payload: StatusUpdatedPayload{
				OldStatus: prev.StatusCode,
				NewStatus: next.StatusCode,
				UpdatedAt: now,
			},
			CreatedAt: now,
		}

		if err := s.repo.UpdateStatus(ctx, tx, next, prev.Version); err != nil {
			return err
		}
		if err := s.repo.AppendEvent(ctx, tx, evt); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, s.topics.Updated, next, evt.ID)
	})
	if err != nil {
		return Dispute{}, err
	}

	s.afterCommit(ctx, "update_dispute_status", next, evt)
	return next, nil
}

// GetDisputesByUser returns the user's disputes, newest first.
func (s *Service) GetDisputesByUser(ctx context.Context, userID string) ([]Dispute, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidArgument)
	}
	return s.repo.ListByUser(ctx, userID)
}

// GetDisputeByID reports found=false for an unknown id instead of an error.
func (s *Service) GetDisputeByID(ctx context.Context, id string) (Dispute, bool, error) {
	d, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Dispute{}, false, nil
		}
		return Dispute{}, false, err
	}
	return d, true, nil
}

// ListDisputeEvents returns the audit trail in commit order.
func (s *Service) ListDisputeEvents(ctx context.Context, disputeID string) ([]Event, error) {
	if _, found, err := s.GetDisputeByID(ctx, disputeID); err != nil {
		return nil, err
	} else if !found {
		return nil, fmt.Errorf("%w: dispute %s", ErrNotFound, disputeID)
	}
	return s.repo.ListEvents(ctx, strings.TrimSpace(disputeID))
}

// ListDisputes pages through all disputes, optionally filtered by status.
func (s *Service) ListDisputes(ctx context.Context, f ListFilters) (Page, error) {
	f.StatusCode = strings.TrimSpace(f.StatusCode)
	if f.StatusCode != "" {
		if err := s.requireCode(ctx, s.catalog.FindStatus, f.StatusCode, ErrInvalidArgument, "status"); err != nil {
			return Page{}, err
		}
	}
	f = f.normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

func (s *Service) requireCode(ctx context.Context, find func(context.Context, string) (catalog.Entry, error), code string, missing error, label string) error {
	if _, err := find(ctx, code); err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("dispute: lookup %s %s: %w", label, code, err)
		}
		if errors.Is(missing, ErrInvariantViolation) {
			s.logger.ErrorContext(ctx, "reference data missing",
				"module", "dispute.service",
				"operation", "validate_catalog",
				"outcome", "invariant_violation",
				"kind", label,
				"code", code,
			)
		}
		return fmt.Errorf("%w: unknown %s %q", missing, label, code)
	}
	return nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dispute: commit tx: %w", err)
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, tx pgx.Tx, topic string, d Dispute, eventID string) error {
	payload, err := json.Marshal(d.Snapshot())
	if err != nil {
		return fmt.Errorf("dispute: encode snapshot: %w", err)
	}
	return s.outbox.Enqueue(ctx, tx, outbox.Message{
		ID:           s.idGenerator(),
		Topic:        topic,
		PartitionKey: d.ID,
		EventID:      eventID,
		Payload:      payload,
	})
}

func (s *Service) afterCommit(ctx context.Context, op string, d Dispute, evt Event) {
	if s.notifier != nil {
		s.notifier.Notify()
	}
	s.logger.InfoContext(ctx, "dispute transition committed",
		"module", "dispute.service",
		"operation", op,
		"outcome", "success",
		"dispute_id", d.ID,
		"event_id", evt.ID,
		"status", d.StatusCode,
		"version", d.Version,
	)
}
