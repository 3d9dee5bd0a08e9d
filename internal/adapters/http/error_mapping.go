package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
