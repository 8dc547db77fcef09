package transaction

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"disputeflow/catalog"
)

// Reader abstracts repository operations for the service.
type Reader interface {
	FindByID(ctx context.Context, id string) (Record, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)
}

// Writer stores generated transactions.
type Writer interface {
	Insert(ctx context.Context, rec Record) (Record, error)
}

// TypeLister lists the configured transaction types.
type TypeLister interface {
	List(ctx context.Context, kind catalog.Kind) ([]catalog.Entry, error)
}

// Service exposes business-level transaction operations.
type Service struct {
	repo   Reader
	writer Writer
	types  TypeLister
	now    func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService builds a Service using the provided repository. writer and
// types may be nil when demo generation is not needed.
func NewService(repo Reader, writer Writer, types TypeLister) *Service {
	return &Service{
		repo:   repo,
		writer: writer,
		types:  types,
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithRand(rng *rand.Rand) *Service {
	s.rng = rng
	return s
}

// FindTransaction returns the transaction for the given identifier.
func (s *Service) FindTransaction(ctx context.Context, id string) (Record, error) {
	return s.repo.FindByID(ctx, id)
}

// ListByUser returns all of a user's transactions, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("transaction: missing user id")
	}
	return s.repo.ListByUser(ctx, userID, 0)
}

// Generate books a random transaction for userID: a random configured type,
// an amount between 10.00 and 1000.00 and a timestamp within the last 30 days.
func (s *Service) Generate(ctx context.Context, userID string) (Record, error) {
	if s.writer == nil || s.types == nil {
		return Record{}, errors.New("transaction: generation not configured")
	}
	if userID == "" {
		return Record{}, fmt.Errorf("transaction: missing user id")
	}

	types, err := s.types.List(ctx, catalog.KindTransactionType)
	if err != nil {
		return Record{}, fmt.Errorf("transaction: list types: %w", err)
	}
	if len(types) == 0 {
		return Record{}, errors.New("transaction: no transaction types defined")
	}

	window := int64(30 * 24 * time.Hour / time.Second)
	s.mu.Lock()
	cents := 1000 + s.rng.Int64N(99000+1)
	ago := s.rng.Int64N(window)
	pick := s.rng.IntN(len(types))
	s.mu.Unlock()

	now := s.now().UTC()
	createdAt := now.Add(-time.Duration(ago) * time.Second).Truncate(time.Second)

	return s.writer.Insert(ctx, Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      types[pick].Code,
		Amount:    decimal.New(cents, -2),
		Currency:  DefaultCurrency,
		CreatedAt: createdAt,
	})
}
