package cli

import (
	"fmt"

	"github.com/lgreg1908/papa-rag/config"
	"github.com/lgreg1908/papa-rag/internal/adapter/cache"
	"github.com/lgreg1908/papa-rag/internal/adapter/embedding"
	"github.com/lgreg1908/papa-rag/internal/adapter/store"
	"github.com/lgreg1908/papa-rag/internal/port"
)

// openStores opens both persisted artifacts for the corpus dir and
// reconciles them so they describe the same chunk ids.
func openStores(cfg *config.Config, dir string) (port.VectorIndex, port.MetadataStore, error) {
	if err := config.EnsureStateDir(dir); err != nil {
		return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	index, err := store.NewBoltVectorIndex(cfg.VectorDBPath(dir), cfg.Embedding.Dimension)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	meta, err := store.NewBoltMetaStore(cfg.MetaDBPath(dir))
	if err != nil {
		index.Close()
		return nil, nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	if err := store.Reconcile(index, meta); err != nil {
		index.Close()
		meta.Close()
		return nil, nil, fmt.Errorf("failed to reconcile stores: %w", err)
	}

	return index, meta, nil
}

// buildEmbedder constructs the configured provider wrapped in the
// process-lifetime embedding cache.
func buildEmbedder(cfg *config.Config) (port.Embedder, error) {
	opts := embedding.Options{
		Dimension:      cfg.Embedding.Dimension,
		BatchSize:      cfg.Embedding.BatchSize,
		RequestTimeout: cfg.Embedding.RequestTimeout,
		MaxRetries:     cfg.Embedding.MaxRetries,
		RequestsPerSec: cfg.Embedding.RequestsPerSec,
	}

	var (
		provider port.Embedder
		err      error
	)
	switch cfg.Embedding.Provider {
	case "openai":
		provider, err = embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, opts)
	case "ollama":
		provider, err = embedding.NewOllamaEmbedder(cfg.Embedding.Model, "", opts)
	case "mock":
		provider = embedding.NewMockEmbedder(cfg.Embedding.Dimension)
	default:
		err = fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, err
	}

	return cache.NewEmbedCache(provider), nil
}
