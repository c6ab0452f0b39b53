package domain

import "time"

// Document is a loaded source file. Documents are immutable once loaded;
// re-ingesting the same path supersedes the previous document rather than
// mutating it.
type Document struct {
	Path     string
	Text     string
	LoadedAt time.Time
}

// Chunk is a bounded text segment derived from a document, the unit of
// embedding and retrieval. Start and End are rune offsets into the
// normalized document text. Chunks from one ingestion of a path form an
// ordered sequence keyed by Seq.
type Chunk struct {
	ID     string
	Path   string
	Text   string
	Start  int
	End    int
	Seq    int
	Tokens []string
}

// ScoredChunk pairs a chunk with its relevance score in [0, 100].
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Posting records a term occurrence inside a chunk.
type Posting struct {
	ChunkID string
	TF      int
}

// Stats describes the indexed corpus.
type Stats struct {
	TotalDocs   int
	TotalChunks int
	AvgChunkLen float64
}
