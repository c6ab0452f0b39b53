package port

import "github.com/lgreg1908/papa-rag/internal/domain"

// Loader turns a file path into a plain-text document. Format-specific
// extraction lives behind this boundary.
type Loader interface {
	// Load reads the file at path. Unsupported extensions fail with
	// domain.ErrUnsupportedFormat, unreadable files with domain.ErrReadError.
	Load(path string) (domain.Document, error)

	// Supported reports whether the loader handles the file's extension.
	Supported(path string) bool
}

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}
