package main

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"disputeflow/catalog"
	"disputeflow/transaction"
)

type transactionResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Type      string          `json:"transactionType"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"createdAt"`
}

func toTransactionResponse(rec transaction.Record) transactionResponse {
	return transactionResponse{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Type:      rec.Type,
		Amount:    rec.Amount,
		Currency:  rec.Currency,
		CreatedAt: rec.CreatedAt,
	}
}

func (s *Server) handleReasons(w http.ResponseWriter, r *http.Request) {
	s.writeEntries(w, r, "list_reasons", s.catalog.Reasons)
}

func (s *Server) handleStatuses(w http.ResponseWriter, r *http.Request) {
	s.writeEntries(w, r, "list_statuses", s.catalog.Statuses)
}

func (s *Server) writeEntries(w http.ResponseWriter, r *http.Request, op string, list func(ctx context.Context) ([]catalog.Entry, error)) {
	entries, err := list(r.Context())
	if err != nil {
		s.fail(r.Context(), w, op, err)
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := identityFromContext(ctx)
	recs, err := s.transactions.ListByUser(ctx, id.UserID)
	if err != nil {
		s.fail(ctx, w, "list_transactions", err)
		return
	}
	out := make([]transactionResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toTransactionResponse(rec))
	}
	writeSuccess(w, http.StatusOK, out)
}

// handleGenerateTransaction books a random demo transaction for the caller.
func (s *Server) handleGenerateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := identityFromContext(ctx)
	rec, err := s.transactions.Generate(ctx, id.UserID)
	if err != nil {
		s.fail(ctx, w, "generate_transaction", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toTransactionResponse(rec))
}
