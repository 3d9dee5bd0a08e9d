package tavily

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/adaptive-rag/internal/infrastructure/resilience"
)

type statusError struct {
	status string
	code   int
	body   string
}

func (e *statusError) Error() string {
	if strings.TrimSpace(e.body) == "" {
		return fmt.Sprintf("tavily search status: %s", e.status)
	}
	return fmt.Sprintf("tavily search status: %s: %s", e.status, e.body)
}

func classifySearchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		switch statusErr.code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
