package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
)

// retrieveFused runs multi-query fan-out against the session index: the
// original question plus up to maxQueryVariants generated phrasings each
// get their own similarity search, and the per-variant rankings are merged
// with reciprocal rank fusion.
func (w *ChatWorkflow) retrieveFused(ctx context.Context, sessionID, question string) ([]domain.ScoredChunk, error) {
	variants, err := w.expander.ExpandQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("expand query: %w", err)
	}

	queries := make([]string, 0, w.limits.QueryVariants+1)
	queries = append(queries, question)
	for _, v := range variants {
		v = strings.TrimSpace(v)
		if v == "" || len(queries) > w.limits.QueryVariants {
			continue
		}
		queries = append(queries, v)
	}

	lists := make([][]domain.ScoredChunk, 0, len(queries))
	for _, q := range queries {
		vector, err := w.embedder.EmbedQuery(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("embed query variant: %w", err)
		}
		chunks, err := w.store.Search(ctx, sessionID, vector, w.limits.VariantTopK)
		if err != nil {
			return nil, fmt.Errorf("search session index: %w", err)
		}
		lists = append(lists, chunks)
	}

	fused := fuseReciprocalRank(lists, w.limits.FusionRRFK)
	fused = trimCandidates(fused, w.limits.FusedTopK)

	slog.Debug("retrieval_fused",
		"session_id", sessionID,
		"variants", len(queries),
		"candidates", len(fused),
	)
	return fused, nil
}
