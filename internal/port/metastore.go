package port

import "github.com/lgreg1908/papa-rag/internal/domain"

// MetadataStore persists chunk metadata, chunk text, term postings and
// corpus stats. It is joined to the VectorIndex only by chunk id.
type MetadataStore interface {
	PutChunks(chunks []domain.Chunk) error

	GetChunk(id string) (domain.Chunk, error)

	GetChunksByPath(path string) ([]domain.Chunk, error)

	// ChunkIDsByPath lists the ids of all live chunks for a path.
	ChunkIDsByPath(path string) ([]string, error)

	// DeleteChunksByPath removes all chunks for a path and returns the ids
	// that were removed.
	DeleteChunksByPath(path string) ([]string, error)

	// ChunkIDs lists every chunk id currently stored.
	ChunkIDs() ([]string, error)

	DeleteChunks(ids []string) error

	PutPostings(chunkID string, tf map[string]int) error

	GetPostings(term string) ([]domain.Posting, error)

	DeletePostings(chunkID string, terms []string) error

	GetStats() (domain.Stats, error)

	UpdateStats(stats domain.Stats) error

	Close() error
}
