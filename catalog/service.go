package catalog

import "context"

// Service exposes the lookups the dispute lifecycle validates against.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) FindReason(ctx context.Context, code string) (Entry, error) {
	return s.store.Find(ctx, KindReason, code)
}

func (s *Service) FindStatus(ctx context.Context, code string) (Entry, error) {
	return s.store.Find(ctx, KindStatus, code)
}

func (s *Service) FindEventType(ctx context.Context, code string) (Entry, error) {
	return s.store.Find(ctx, KindEventType, code)
}

func (s *Service) Reasons(ctx context.Context) ([]Entry, error) {
	return s.store.List(ctx, KindReason)
}

func (s *Service) Statuses(ctx context.Context) ([]Entry, error) {
	return s.store.List(ctx, KindStatus)
}

func (s *Service) EventTypes(ctx context.Context) ([]Entry, error) {
	return s.store.List(ctx, KindEventType)
}
