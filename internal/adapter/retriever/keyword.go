package retriever

import (
	"context"
	"math"
	"sort"

	"github.com/lgreg1908/papa-rag/internal/adapter/analyzer"
	"github.com/lgreg1908/papa-rag/internal/domain"
	"github.com/lgreg1908/papa-rag/internal/port"
)

// KeywordRetriever scores chunks with BM25 over the term postings kept in
// the metadata store. It backs the keyword fallback when semantic search
// comes up short.
type KeywordRetriever struct {
	store     port.MetadataStore
	tokenizer *analyzer.Tokenizer
	k1        float64
	b         float64
}

func NewKeywordRetriever(store port.MetadataStore, tokenizer *analyzer.Tokenizer, k1, b float64) *KeywordRetriever {
	return &KeywordRetriever{
		store:     store,
		tokenizer: tokenizer,
		k1:        k1,
		b:         b,
	}
}

func (r *KeywordRetriever) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	queryTokens := r.tokenizer.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	stats, err := r.store.GetStats()
	if err != nil {
		return nil, err
	}
	if stats.TotalChunks == 0 || stats.AvgChunkLen == 0 {
		return nil, nil
	}

	chunkScores := make(map[string]float64)
	chunkLengths := make(map[string]int)
	chunkCache := make(map[string]domain.Chunk)

	for _, term := range queryTokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		postings, err := r.store.GetPostings(term)
		if err != nil {
			continue
		}

		n := float64(len(postings))
		N := float64(stats.TotalChunks)
		idf := math.Log((N-n+0.5)/(n+0.5) + 1)

		for _, posting := range postings {
			if _, exists := chunkLengths[posting.ChunkID]; !exists {
				chunk, err := r.store.GetChunk(posting.ChunkID)
				if err != nil {
					continue
				}
				chunkCache[posting.ChunkID] = chunk
				chunkLengths[posting.ChunkID] = len(r.tokenizer.Tokenize(chunk.Text))
			}

			dl := float64(chunkLengths[posting.ChunkID])
			tf := float64(posting.TF)

			score := idf * (tf * (r.k1 + 1)) / (tf + r.k1*(1-r.b+r.b*dl/stats.AvgChunkLen))
			chunkScores[posting.ChunkID] += score
		}
	}

	results := make([]domain.ScoredChunk, 0, len(chunkScores))
	for chunkID, score := range chunkScores {
		results = append(results, domain.ScoredChunk{
			Chunk: chunkCache[chunkID],
			Score: score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}
