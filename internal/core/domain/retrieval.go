package domain

// ScoredChunk is a chunk paired with a retrieval score. Before fusion the
// score is raw cosine similarity for a single query variant; after fusion it
// is the accumulated reciprocal-rank score. BestRank is the smallest 1-based
// rank the chunk held in any variant list and is only set by fusion.
type ScoredChunk struct {
	Chunk    DocumentChunk `json:"chunk"`
	Score    float64       `json:"score"`
	BestRank int           `json:"best_rank,omitempty"`
}
