package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/lgreg1908/papa-rag/internal/port"
)

// EmbedCache memoizes text-to-vector lookups in front of an Embedder so
// repeated texts (unchanged chunks, repeated queries) skip the provider.
// Entries live for the process lifetime; failures are never cached.
// Concurrent misses for the same key may call the provider more than once,
// which is acceptable; the map itself is never corrupted.
type EmbedCache struct {
	embedder port.Embedder
	mu       sync.RWMutex
	entries  map[string][]float32
}

// NewEmbedCache wraps an Embedder with a process-lifetime cache.
func NewEmbedCache(embedder port.Embedder) *EmbedCache {
	return &EmbedCache{
		embedder: embedder,
		entries:  make(map[string][]float32),
	}
}

// cacheKey hashes the text together with the model identifier so switching
// models never serves stale vectors.
func (c *EmbedCache) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.embedder.ModelName()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Embed returns vectors for the given texts, serving hits from the cache
// and delegating the remaining texts to the wrapped embedder in one batch.
func (c *EmbedCache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missIdx []int
	var missTexts []string

	c.mu.RLock()
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
		if vec, ok := c.entries[keys[i]]; ok {
			vectors[i] = vec
		} else {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
		}
	}
	c.mu.RUnlock()

	if len(missTexts) == 0 {
		return vectors, nil
	}

	computed, err := c.embedder.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for j, i := range missIdx {
		vectors[i] = computed[j]
		c.entries[keys[i]] = computed[j]
	}
	c.mu.Unlock()

	return vectors, nil
}

// Size returns the number of cached vectors.
func (c *EmbedCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *EmbedCache) Dimension() int {
	return c.embedder.Dimension()
}

func (c *EmbedCache) ModelName() string {
	return c.embedder.ModelName()
}
