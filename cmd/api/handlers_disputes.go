package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"disputeflow/dispute"
	"disputeflow/transaction"
)

type createDisputeRequest struct {
	TransactionID string `json:"transactionId"`
	ReasonCode    string `json:"reasonCode"`
}

type updateStatusRequest struct {
	StatusCode string `json:"statusCode"`
}

type disputeResponse struct {
	ID             string    `json:"id"`
	TransactionRef string    `json:"transactionRef"`
	UserID         string    `json:"userId"`
	ReasonCode     string    `json:"reasonCode"`
	StatusCode     string    `json:"statusCode"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type eventResponse struct {
	ID            string               `json:"id"`
	EventTypeCode string               `json:"eventType"`
	Payload       dispute.EventPayload `json:"payload"`
	CreatedAt     time.Time            `json:"createdAt"`
}

type pageResponse struct {
	Items    []disputeResponse `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

func toDisputeResponse(d dispute.Dispute) disputeResponse {
	return disputeResponse{
		ID:             d.ID,
		TransactionRef: d.TransactionRef,
		UserID:         d.UserID,
		ReasonCode:     d.ReasonCode,
		StatusCode:     d.StatusCode,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func toDisputeResponses(in []dispute.Dispute) []disputeResponse {
	out := make([]disputeResponse, 0, len(in))
	for _, d := range in {
		out = append(out, toDisputeResponse(d))
	}
	return out
}

func etag(version int) string {
	return strconv.Quote(strconv.Itoa(version))
}

// parseIfMatch accepts `"3"`, `W/"3"` and a bare `3`.
func parseIfMatch(header string) (*int, error) {
	header = strings.TrimSpace(header)
	if header == "" || header == "*" {
		return nil, nil
	}
	header = strings.TrimPrefix(header, "W/")
	v, err := strconv.Atoi(strings.Trim(header, `"`))
	if err != nil || v <= 0 {
		return nil, fmt.Errorf("%w: malformed If-Match %q", errInvalidBody, header)
	}
	return &v, nil
}

func (s *Server) handleCreateDispute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := identityFromContext(ctx)

	var req createDisputeRequest
	if err := decodeBody(w, r, createDisputeSchema, &req); err != nil {
		s.fail(ctx, w, "create_dispute", err)
		return
	}

	// Customers may only dispute their own transactions.
	tx, err := s.transactions.FindTransaction(ctx, strings.TrimSpace(req.TransactionID))
	switch {
	case err == nil && tx.UserID != id.UserID && !id.IsAdmin():
		s.fail(ctx, w, "create_dispute", errForbidden)
		return
	case err != nil && !errors.Is(err, transaction.ErrNotFound):
		s.fail(ctx, w, "create_dispute", err)
		return
	}

	d, err := s.disputes.CreateDispute(ctx, dispute.CreateParams{
		TransactionRef: req.TransactionID,
		UserID:         id.UserID,
		ReasonCode:     req.ReasonCode,
	})
	if err != nil {
		s.fail(ctx, w, "create_dispute", err)
		return
	}
	w.Header().Set("ETag", etag(d.Version))
	w.Header().Set("Location", "/api/disputes/"+d.ID)
	writeSuccess(w, http.StatusCreated, toDisputeResponse(d))
}

func (s *Server) handleListMyDisputes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := identityFromContext(ctx)

	items, err := s.disputes.GetDisputesByUser(ctx, id.UserID)
	if err != nil {
		s.fail(ctx, w, "list_my_disputes", err)
		return
	}
	writeSuccess(w, http.StatusOK, toDisputeResponses(items))
}

// visibleDispute loads a dispute the caller owns, or any dispute for admins.
func (s *Server) visibleDispute(r *http.Request) (dispute.Dispute, error) {
	ctx := r.Context()
	id, _ := identityFromContext(ctx)
	disputeID := chi.URLParam(r, "id")

	d, found, err := s.disputes.GetDisputeByID(ctx, disputeID)
	if err != nil {
		return dispute.Dispute{}, err
	}
	if !found {
		return dispute.Dispute{}, fmt.Errorf("%w: dispute %s", dispute.ErrNotFound, disputeID)
	}
	if d.UserID != id.UserID && !id.IsAdmin() {
		return dispute.Dispute{}, errForbidden
	}
	return d, nil
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	d, err := s.visibleDispute(r)
	if err != nil {
		s.fail(r.Context(), w, "get_dispute", err)
		return
	}
	w.Header().Set("ETag", etag(d.Version))
	writeSuccess(w, http.StatusOK, toDisputeResponse(d))
}

func (s *Server) handleDisputeEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.visibleDispute(r)
	if err != nil {
		s.fail(ctx, w, "list_dispute_events", err)
		return
	}
	evts, err := s.disputes.ListDisputeEvents(ctx, d.ID)
	if err != nil {
		s.fail(ctx, w, "list_dispute_events", err)
		return
	}
	out := make([]eventResponse, 0, len(evts))
	for _, e := range evts {
		out = append(out, eventResponse{ID: e.ID, EventTypeCode: e.EventTypeCode, Payload: e.Payload, CreatedAt: e.CreatedAt})
	}
	writeSuccess(w, http.StatusOK, out)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateStatusRequest
	if err := decodeBody(w, r, updateStatusSchema, &req); err != nil {
		s.fail(ctx, w, "update_dispute_status", err)
		return
	}
	expected, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		s.fail(ctx, w, "update_dispute_status", err)
		return
	}

	d, err := s.disputes.UpdateDisputeStatus(ctx, dispute.UpdateStatusParams{
		DisputeID:       chi.URLParam(r, "id"),
		StatusCode:      req.StatusCode,
		ExpectedVersion: expected,
	})
	if err != nil {
		s.fail(ctx, w, "update_dispute_status", err)
		return
	}
	w.Header().Set("ETag", etag(d.Version))
	writeSuccess(w, http.StatusOK, toDisputeResponse(d))
}

func (s *Server) handleAdminListDisputes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	f := dispute.ListFilters{StatusCode: q.Get("status")}
	var err error
	if f.Page, err = queryInt(q.Get("page")); err != nil {
		s.fail(ctx, w, "list_disputes", err)
		return
	}
	if f.PageSize, err = queryInt(q.Get("size")); err != nil {
		s.fail(ctx, w, "list_disputes", err)
		return
	}

	page, err := s.disputes.ListDisputes(ctx, f)
	if err != nil {
		s.fail(ctx, w, "list_disputes", err)
		return
	}
	writeSuccess(w, http.StatusOK, pageResponse{
		Items:    toDisputeResponses(page.Items),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errInvalidBody, raw)
	}
	return v, nil
}
