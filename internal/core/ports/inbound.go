package ports

import (
	"context"
	"io"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, sessionID, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// ChatService is the inbound contract for running one chat turn through the
// adaptive workflow.
type ChatService interface {
	Chat(ctx context.Context, sessionID, question string) (*domain.TurnResult, error)
}
