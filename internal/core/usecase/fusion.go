package usecase

import (
	"sort"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
)

type fusedCandidate struct {
	chunk    domain.DocumentChunk
	score    float64
	bestRank int
}

// fuseReciprocalRank merges one ranked list per query variant into a single
// ordering. A chunk at 1-based rank r in a variant list contributes
// 1/(k+r); lists it is absent from contribute nothing. Ties are broken by
// the smallest rank the chunk held in any single variant, then by session
// insertion order, so the result is fully deterministic for identical
// inputs.
func fuseReciprocalRank(lists [][]domain.ScoredChunk, k int) []domain.ScoredChunk {
	if k <= 0 {
		k = 60
	}

	acc := make(map[string]*fusedCandidate)
	for _, list := range lists {
		for idx, scored := range list {
			rank := idx + 1
			candidate, ok := acc[scored.Chunk.ID]
			if !ok {
				candidate = &fusedCandidate{
					chunk:    scored.Chunk,
					bestRank: rank,
				}
				acc[scored.Chunk.ID] = candidate
			}
			candidate.score += 1.0 / float64(k+rank)
			if rank < candidate.bestRank {
				candidate.bestRank = rank
			}
		}
	}

	out := make([]domain.ScoredChunk, 0, len(acc))
	for _, c := range acc {
		out = append(out, domain.ScoredChunk{
			Chunk:    c.chunk,
			Score:    c.score,
			BestRank: c.bestRank,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].BestRank != out[j].BestRank {
			return out[i].BestRank < out[j].BestRank
		}
		return out[i].Chunk.Seq < out[j].Chunk.Seq
	})

	return out
}

func trimCandidates(chunks []domain.ScoredChunk, limit int) []domain.ScoredChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}
