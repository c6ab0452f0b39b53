package port

import "github.com/lgreg1908/papa-rag/internal/domain"

type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}
