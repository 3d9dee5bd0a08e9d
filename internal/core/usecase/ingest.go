package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
	"github.com/kirillkom/adaptive-rag/internal/core/ports"
)

type IngestDocumentUseCase struct {
	storage   ports.TempStorage
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	store     ports.SessionStore
}

func NewIngestDocumentUseCase(
	storage ports.TempStorage,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.SessionStore,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
	}
}

// Upload runs the full synchronous ingestion pipeline: stage the file on
// disk, extract text, chunk, embed, and append the chunks to the session
// index in one atomic store call. The staged artifact is removed before
// returning, success or not.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	sessionID, filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("session_id is required"))
	}
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("filename is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))

	path, err := uc.storage.Save(ctx, storageKey, body)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	defer func() {
		if removeErr := uc.storage.Remove(storageKey); removeErr != nil {
			slog.Warn("remove staged upload", "key", storageKey, "error", removeErr)
		}
	}()

	text, err := uc.extractor.Extract(ctx, path, filename, mimeType)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	chunkTexts := uc.chunker.Split(text)
	if len(chunkTexts) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	vectors, err := uc.embedder.Embed(ctx, chunkTexts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunkTexts) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunkTexts)),
		)
	}

	chunks := make([]domain.DocumentChunk, 0, len(chunkTexts))
	for i, chunkText := range chunkTexts {
		chunks = append(chunks, domain.DocumentChunk{
			ID:         fmt.Sprintf("%s:%d", id, i),
			DocumentID: id,
			Filename:   filename,
			Text:       chunkText,
		})
	}

	if err := uc.store.IngestChunks(ctx, sessionID, chunks, vectors); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}

	doc := &domain.Document{
		ID:        id,
		SessionID: sessionID,
		Filename:  filename,
		MimeType:  mimeType,
		Chunks:    len(chunks),
		CreatedAt: time.Now().UTC(),
	}
	slog.Info("document_ingested", "session_id", sessionID, "document_id", id, "chunks", len(chunks))
	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
