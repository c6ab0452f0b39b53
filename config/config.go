package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lgreg1908/papa-rag/internal/domain"
)

// Config holds all configuration for papa-rag.
type Config struct {
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Storage   StorageConfig   `yaml:"storage"`
	Watch     WatchConfig     `yaml:"watch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IngestConfig holds ingestion configuration.
type IngestConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Concurrency  int      `yaml:"concurrency"`
}

// SearchConfig holds retrieval configuration.
type SearchConfig struct {
	TopK        int     `yaml:"top_k"`
	MaxDistance float64 `yaml:"max_distance"` // distance at which the score bottoms out
	Fallback    bool    `yaml:"fallback"`     // keyword fallback when semantic results run short
	K1          float64 `yaml:"k1"`
	B           float64 `yaml:"b"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider       string        `yaml:"provider"` // "openai", "ollama", "mock"
	Model          string        `yaml:"model"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	Dimension      int           `yaml:"dimension"`
	BatchSize      int           `yaml:"batch_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestsPerSec float64       `yaml:"requests_per_sec"` // 0 disables rate limiting
}

// StorageConfig locates the two persisted artifacts.
type StorageConfig struct {
	VectorPath string `yaml:"vector_path"`
	MetaPath   string `yaml:"meta_path"`
}

// WatchConfig holds folder watching configuration.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Includes:     []string{"**/*.txt", "**/*.md"},
			Excludes:     []string{"**/.git/**", "**/.papa-rag/**", "**/node_modules/**"},
			ChunkSize:    250,
			ChunkOverlap: 50,
			Concurrency:  4,
		},
		Search: SearchConfig{
			TopK:        5,
			MaxDistance: 2.0,
			Fallback:    true,
			K1:          1.2,
			B:           0.75,
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-3-small",
			APIKeyEnv:      "OPENAI_API_KEY",
			Dimension:      1536,
			BatchSize:      16,
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
			RequestsPerSec: 0,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks values the pipeline depends on. Violations fail fast with
// domain.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", domain.ErrInvalidConfiguration, c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", domain.ErrInvalidConfiguration, c.Ingest.ChunkOverlap)
	}
	if c.Ingest.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", domain.ErrInvalidConfiguration, c.Ingest.Concurrency)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", domain.ErrInvalidConfiguration, c.Embedding.Dimension)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("%w: debounce must be positive, got %s", domain.ErrInvalidConfiguration, c.Watch.Debounce)
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for papa-rag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "papa-rag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".papa-rag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// VectorDBPath returns the path to the vector index file for a corpus dir,
// honoring an explicit override from the storage config.
func (c *Config) VectorDBPath(dir string) string {
	if c.Storage.VectorPath != "" {
		return c.Storage.VectorPath
	}
	return filepath.Join(dir, ".papa-rag", "vectors.db")
}

// MetaDBPath returns the path to the metadata file for a corpus dir.
func (c *Config) MetaDBPath(dir string) string {
	if c.Storage.MetaPath != "" {
		return c.Storage.MetaPath
	}
	return filepath.Join(dir, ".papa-rag", "metadata.db")
}

// EnsureStateDir ensures the .papa-rag directory exists.
func EnsureStateDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".papa-rag"), 0755)
}
