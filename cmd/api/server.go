package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"disputeflow/auth"
	"disputeflow/catalog"
	"disputeflow/dispute"
	"disputeflow/transaction"
)

type disputeService interface {
	CreateDispute(ctx context.Context, params dispute.CreateParams) (dispute.Dispute, error)
	UpdateDisputeStatus(ctx context.Context, params dispute.UpdateStatusParams) (dispute.Dispute, error)
	GetDisputesByUser(ctx context.Context, userID string) ([]dispute.Dispute, error)
	GetDisputeByID(ctx context.Context, id string) (dispute.Dispute, bool, error)
	ListDisputeEvents(ctx context.Context, disputeID string) ([]dispute.Event, error)
	ListDisputes(ctx context.Context, f dispute.ListFilters) (dispute.Page, error)
}

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (auth.Identity, error)
}

type catalogService interface {
	Reasons(ctx context.Context) ([]catalog.Entry, error)
	Statuses(ctx context.Context) ([]catalog.Entry, error)
}

type transactionService interface {
	FindTransaction(ctx context.Context, id string) (transaction.Record, error)
	ListByUser(ctx context.Context, userID string) ([]transaction.Record, error)
	Generate(ctx context.Context, userID string) (transaction.Record, error)
}

// Server is the HTTP adapter over the dispute, auth, catalog and
// transaction services.
type Server struct {
	disputes     disputeService
	auth         authService
	catalog      catalogService
	transactions transactionService
	limiter      *ipLimiter
	logger       *slog.Logger
}

func (s *Server) routes() http.Handler {
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/catalog/reasons", s.handleReasons)
			r.Get("/catalog/statuses", s.handleStatuses)

			r.Get("/transactions", s.handleListTransactions)
			r.Post("/transactions/generate", s.handleGenerateTransaction)

			r.Post("/disputes", s.handleCreateDispute)
			r.Get("/disputes", s.handleListMyDisputes)
			r.Get("/disputes/{id}", s.handleGetDispute)
			r.Get("/disputes/{id}/events", s.handleDisputeEvents)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Put("/disputes/{id}/status", s.handleUpdateStatus)
				r.Get("/admin/disputes", s.handleAdminListDisputes)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"state": "ok"})
}
