package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"disputeflow/auth"
	"disputeflow/dispute"
	"disputeflow/transaction"
)

var errForbidden = errors.New("api: forbidden")

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// mapError translates domain errors into an HTTP status, error code and
// client-safe message.
func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, dispute.ErrNotFound), errors.Is(err, transaction.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, dispute.ErrInvalidArgument), errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, dispute.ErrInvalidTransition):
		return http.StatusBadRequest, "INVALID_TRANSITION", err.Error()
	case errors.Is(err, dispute.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, dispute.ErrInvariantViolation):
		return http.StatusInternalServerError, "INVARIANT_VIOLATION", "service misconfigured"
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict, "CONFLICT", "email already registered"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, auth.ErrRoleNotAllowed), errors.Is(err, errForbidden):
		return http.StatusForbidden, "FORBIDDEN", "forbidden"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

// fail writes the mapped error and logs it; server-side failures at error level.
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, message := mapError(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "http operation failed",
		"module", "http",
		"operation", operation,
		"outcome", "failure",
		"status_code", status,
		"error_code", code,
		"request_id", requestIDFromContext(ctx),
		"error", err.Error(),
	)
	writeError(w, status, code, message)
}
