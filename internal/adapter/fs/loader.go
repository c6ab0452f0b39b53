package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lgreg1908/papa-rag/internal/domain"
)

// TextLoader loads plain-text documents. Anything needing format-specific
// extraction (PDF, DOCX, images) sits outside this boundary and is expected
// to hand over plain text.
type TextLoader struct {
	extensions map[string]struct{}
}

// DefaultExtensions are the file types the loader handles out of the box.
var DefaultExtensions = []string{".txt", ".md"}

func NewTextLoader(extensions []string) *TextLoader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return &TextLoader{extensions: set}
}

// Supported reports whether the loader handles the file's extension.
func (l *TextLoader) Supported(path string) bool {
	_, ok := l.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load reads the file at path into a Document.
func (l *TextLoader) Load(path string) (domain.Document, error) {
	if !l.Supported(path) {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %s: %v", domain.ErrReadError, path, err)
	}

	return domain.Document{
		Path:     path,
		Text:     string(data),
		LoadedAt: time.Now(),
	}, nil
}
