package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/lgreg1908/papa-rag/internal/domain"
	"github.com/lgreg1908/papa-rag/internal/logger"
	"github.com/lgreg1908/papa-rag/internal/port"
)

// SearchUseCase embeds a query, runs nearest-neighbor search, converts
// distances to bounded relevance scores, and optionally fills the tail of
// the result list from the keyword retriever.
type SearchUseCase struct {
	embedder    port.Embedder
	index       port.VectorIndex
	meta        port.MetadataStore
	keyword     port.Retriever
	maxDistance float64
	fallback    bool
}

// NewSearchUseCase creates a search use case. keyword may be nil to disable
// the fallback.
func NewSearchUseCase(
	embedder port.Embedder,
	index port.VectorIndex,
	meta port.MetadataStore,
	keyword port.Retriever,
	maxDistance float64,
	fallback bool,
) *SearchUseCase {
	if maxDistance <= 0 {
		maxDistance = 2.0
	}
	return &SearchUseCase{
		embedder:    embedder,
		index:       index,
		meta:        meta,
		keyword:     keyword,
		maxDistance: maxDistance,
		fallback:    fallback,
	}
}

// Search returns up to topK chunks ranked by descending relevance score.
// Scores lie in [0, 100]; ties are broken by chunk id for determinism.
func (u *SearchUseCase) Search(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}

	embeddings, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: embedding returned empty result", domain.ErrEmbeddingFailure)
	}

	neighbors, err := u.index.Search(embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]domain.ScoredChunk, 0, len(neighbors))
	for _, n := range neighbors {
		chunk, err := u.meta.GetChunk(n.ID)
		if err != nil {
			logger.Warn("search hit %s has no metadata, skipping", n.ID)
			continue
		}
		results = append(results, domain.ScoredChunk{
			Chunk: chunk,
			Score: DistanceToScore(n.Distance, u.maxDistance),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if u.fallback && u.keyword != nil && len(results) < topK {
		filled, err := u.fillFromKeyword(ctx, query, topK, results)
		if err != nil {
			logger.Warn("keyword fallback failed: %v", err)
		} else {
			results = filled
		}
	}

	return results, nil
}

// fillFromKeyword appends keyword hits not already present, rescaled to sit
// strictly below the weakest semantic score so semantic ordering is never
// disturbed.
func (u *SearchUseCase) fillFromKeyword(ctx context.Context, query string, topK int, results []domain.ScoredChunk) ([]domain.ScoredChunk, error) {
	hits, err := u.keyword.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		seen[r.Chunk.ID] = struct{}{}
	}

	ceiling := 100.0
	if len(results) > 0 {
		ceiling = results[len(results)-1].Score
	}

	for _, hit := range hits {
		if len(results) >= topK {
			break
		}
		if _, dup := seen[hit.Chunk.ID]; dup {
			continue
		}
		// BM25 scores are unbounded; squash into (0, ceiling).
		score := ceiling * hit.Score / (hit.Score + 1)
		results = append(results, domain.ScoredChunk{Chunk: hit.Chunk, Score: round2(score)})
		seen[hit.Chunk.ID] = struct{}{}
	}

	return results, nil
}
