package memstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
)

// Store is the process-wide session registry. Each session owns one
// append-only chunk index and one conversation history; neither is visible
// to any other session and nothing survives process termination.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu      sync.Mutex
	chunks  []indexedChunk
	history []domain.ConversationTurn
	nextSeq int
}

type indexedChunk struct {
	chunk  domain.DocumentChunk
	vector []float32
}

func New() *Store {
	return &Store{sessions: make(map[string]*session)}
}

// IngestChunks appends chunks and their vectors to the session index,
// creating the session if absent. The whole batch is inserted under the
// session lock so a cancelled request can never leave a partial write.
func (s *Store) IngestChunks(ctx context.Context, sessionID string, chunks []domain.DocumentChunk, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "ingest chunks",
			fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "ingest chunks", errors.New("empty chunk batch"))
	}

	sess := s.getOrCreate(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	for i, chunk := range chunks {
		chunk.Seq = sess.nextSeq
		sess.nextSeq++
		vector := make([]float32, len(vectors[i]))
		copy(vector, vectors[i])
		sess.chunks = append(sess.chunks, indexedChunk{chunk: chunk, vector: vector})
	}
	return nil
}

// Search returns the k most similar chunks by cosine similarity, ties
// broken by insertion order for determinism.
func (s *Store) Search(ctx context.Context, sessionID string, queryVector []float32, k int) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess := s.get(sessionID)
	if sess == nil {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "search",
			fmt.Errorf("session %q has no index", sessionID))
	}
	if k <= 0 {
		k = 5
	}

	sess.mu.Lock()
	scored := make([]domain.ScoredChunk, 0, len(sess.chunks))
	for _, ic := range sess.chunks {
		scored = append(scored, domain.ScoredChunk{
			Chunk: ic.chunk,
			Score: cosineSimilarity(queryVector, ic.vector),
		})
	}
	sess.mu.Unlock()

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.Seq < scored[j].Chunk.Seq
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Exists reports whether the session has been created by a prior upload or
// chat turn.
func (s *Store) Exists(sessionID string) bool {
	return s.get(sessionID) != nil
}

func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess := s.get(sessionID)
	if sess == nil {
		return nil, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	turns := sess.history
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]domain.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

// AppendExchange appends all turns of one exchange under the session lock.
// The context is checked once up front; after that the whole batch commits,
// so history never holds a user turn without its assistant reply.
func (s *Store) AppendExchange(ctx context.Context, sessionID string, turns ...domain.ConversationTurn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	sess := s.getOrCreate(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	now := time.Now().UTC()
	for _, turn := range turns {
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		sess.history = append(sess.history, turn)
	}
	return nil
}

func (s *Store) get(sessionID string) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

func (s *Store) getOrCreate(sessionID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess
	}
	sess := &session{}
	s.sessions[sessionID] = sess
	return sess
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
