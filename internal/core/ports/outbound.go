package ports

import (
	"context"
	"io"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
)

// SessionStore owns per-session document indexes and conversation history.
// All mutation is append-only and serialized per session. AppendExchange
// commits all turns of a completed exchange in one atomic write so an abort
// can never leave a user turn without its assistant turn.
type SessionStore interface {
	IngestChunks(ctx context.Context, sessionID string, chunks []domain.DocumentChunk, vectors [][]float32) error
	Search(ctx context.Context, sessionID string, queryVector []float32, k int) ([]domain.ScoredChunk, error)
	Exists(sessionID string) bool
	History(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error)
	AppendExchange(ctx context.Context, sessionID string, turns ...domain.ConversationTurn) error
}

// IntentRouter classifies a question into one of the workflow routes,
// using recent conversation history as context.
type IntentRouter interface {
	RouteQuestion(ctx context.Context, question string, history []domain.ConversationTurn) (domain.Route, error)
}

// QueryExpander produces alternative phrasings of a question for
// multi-query retrieval fan-out.
type QueryExpander interface {
	ExpandQuery(ctx context.Context, question string) ([]string, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RelevanceGrader decides whether a single document is useful for
// answering the question. Pure per-document classification.
type RelevanceGrader interface {
	GradeRelevance(ctx context.Context, question, document string) (bool, error)
}

// GroundednessChecker decides whether an answer is supported by the
// context it was generated from. Conversation history is never consulted.
type GroundednessChecker interface {
	CheckGrounding(ctx context.Context, answer string, facts []string) (bool, error)
}

// WebSearcher retrieves external-knowledge snippets for a query.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, history []domain.ConversationTurn, contextDocs []string) (string, error)
}

// TextExtractor extracts plain text from an uploaded file on disk.
type TextExtractor interface {
	Extract(ctx context.Context, path, filename, mimeType string) (string, error)
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// WorkflowObserver receives workflow events that do not surface in the
// turn result. Implementations must be safe for concurrent use.
type WorkflowObserver interface {
	WebFallback(trigger string)
	RetrievalSizes(fused, kept int)
}

// TempStorage holds uploaded files only for the duration of ingestion.
// Save returns the on-disk path of the stored artifact.
type TempStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
	Remove(key string) error
}
