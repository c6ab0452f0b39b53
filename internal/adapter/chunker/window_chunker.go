package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/lgreg1908/papa-rag/internal/adapter/analyzer"
	"github.com/lgreg1908/papa-rag/internal/domain"
)

// WindowChunker splits document text into overlapping character windows.
// Each window starts chunkSize-overlap runes after the previous window's
// start; the final window may be shorter. Chunking is pure and
// deterministic: identical text and parameters always yield identical
// chunks and ids.
type WindowChunker struct {
	chunkSize int
	overlap   int
	tokenizer *analyzer.Tokenizer
}

// NewWindowChunker creates a WindowChunker. chunkSize and overlap must be
// positive with overlap < chunkSize.
func NewWindowChunker(chunkSize, overlap int, tokenizer *analyzer.Tokenizer) (*WindowChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, chunk size), got %d", domain.ErrInvalidConfiguration, overlap)
	}
	return &WindowChunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		tokenizer: tokenizer,
	}, nil
}

// Chunk splits the document text into an ordered chunk sequence. Empty text
// yields no chunks.
func (c *WindowChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	runes := []rune(doc.Text)
	if len(runes) == 0 {
		return nil, nil
	}

	stride := c.chunkSize - c.overlap

	var chunks []domain.Chunk
	for start, seq := 0, 0; start < len(runes); start, seq = start+stride, seq+1 {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		text := string(runes[start:end])
		chunks = append(chunks, domain.Chunk{
			ID:     ChunkID(doc.Path, seq),
			Path:   doc.Path,
			Text:   text,
			Start:  start,
			End:    end,
			Seq:    seq,
			Tokens: c.tokenizer.Tokenize(text),
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// ChunkID derives the id for the seq-th chunk of a path. Ids are
// reproducible so re-ingesting identical content replaces entries in place.
func ChunkID(path string, seq int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", path, seq)))
	return hex.EncodeToString(hash[:8])
}
