package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lgreg1908/papa-rag/internal/adapter/analyzer"
	"github.com/lgreg1908/papa-rag/internal/domain"
	"github.com/lgreg1908/papa-rag/internal/logger"
	"github.com/lgreg1908/papa-rag/internal/port"
)

// IngestUseCase orchestrates the load → normalize → chunk → embed → index
// pipeline. Ingestion of one path is serialized by a per-path lock;
// re-ingesting a path atomically replaces all prior chunks for that path.
type IngestUseCase struct {
	loader      port.Loader
	walker      port.FileWalker
	chunker     port.Chunker
	embedder    port.Embedder
	index       port.VectorIndex
	meta        port.MetadataStore
	tokenizer   *analyzer.Tokenizer
	concurrency int

	pathMu sync.Mutex
	paths  map[string]*sync.Mutex

	statsMu sync.Mutex
}

// NewIngestUseCase creates an ingest use case.
func NewIngestUseCase(
	loader port.Loader,
	walker port.FileWalker,
	chunker port.Chunker,
	embedder port.Embedder,
	index port.VectorIndex,
	meta port.MetadataStore,
	tokenizer *analyzer.Tokenizer,
	concurrency int,
) *IngestUseCase {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &IngestUseCase{
		loader:      loader,
		walker:      walker,
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		meta:        meta,
		tokenizer:   tokenizer,
		concurrency: concurrency,
		paths:       make(map[string]*sync.Mutex),
	}
}

// IngestResult reports the outcome of ingesting a single path.
type IngestResult struct {
	Path          string
	ChunksAdded   int
	ChunksRemoved int
}

// BatchResult aggregates a folder ingestion. Per-file errors are contained
// here rather than aborting the batch.
type BatchResult struct {
	FilesIngested int
	FilesSkipped  int
	ChunksAdded   int
	ChunksRemoved int
	Errors        []string
}

// ProgressFunc receives batch progress updates.
type ProgressFunc func(done, total int, path string)

// Ingest runs the pipeline for one file. An unreadable file yields zero
// chunks and no error: the failure is logged and existing index entries for
// the path are left untouched. An empty document replaces prior chunks with
// nothing.
func (u *IngestUseCase) Ingest(ctx context.Context, path string) (IngestResult, error) {
	lock := u.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	result := IngestResult{Path: path}

	doc, err := u.loader.Load(path)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedFormat) || errors.Is(err, domain.ErrReadError) {
			logger.Warn("skipping %s: %v", path, err)
			return result, nil
		}
		return result, err
	}

	doc.Text = Normalize(doc.Text)

	chunks, err := u.chunker.Chunk(doc)
	if err != nil {
		return result, err
	}

	var vectors [][]float32
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err = u.embedder.Embed(ctx, texts)
		if err != nil {
			return result, fmt.Errorf("embedding %s: %w", path, err)
		}
	}

	removed, err := u.replace(path, chunks, vectors)
	if err != nil {
		return result, err
	}

	result.ChunksAdded = len(chunks)
	result.ChunksRemoved = removed

	if err := u.adjustStats(removed, chunks); err != nil {
		return result, err
	}

	logger.Debug("ingested %s: %d chunks added, %d removed", path, result.ChunksAdded, result.ChunksRemoved)
	return result, nil
}

// replace swaps all prior entries for path with the new chunk set. The
// vector index and metadata store are written back to back; a crash in
// between leaves orphans that load-time reconciliation removes.
func (u *IngestUseCase) replace(path string, chunks []domain.Chunk, vectors [][]float32) (int, error) {
	old, err := u.meta.GetChunksByPath(path)
	if err != nil {
		return 0, err
	}

	for _, chunk := range old {
		terms := uniqueTerms(u.tokenizer.Tokenize(chunk.Text))
		if err := u.meta.DeletePostings(chunk.ID, terms); err != nil {
			return 0, err
		}
	}

	removedIDs, err := u.meta.DeleteChunksByPath(path)
	if err != nil {
		return 0, err
	}
	if err := u.index.Remove(removedIDs...); err != nil {
		return 0, err
	}

	for i, chunk := range chunks {
		if err := u.index.Add(chunk.ID, vectors[i]); err != nil {
			return 0, err
		}
	}
	if err := u.meta.PutChunks(chunks); err != nil {
		return 0, err
	}

	for _, chunk := range chunks {
		tf := make(map[string]int, len(chunk.Tokens))
		for _, token := range chunk.Tokens {
			tf[token]++
		}
		if err := u.meta.PutPostings(chunk.ID, tf); err != nil {
			return 0, err
		}
	}

	return len(removedIDs), nil
}

// RemovePath deletes every chunk previously ingested for path from both
// stores. Used for watcher delete events; removing an unknown path is a
// no-op.
func (u *IngestUseCase) RemovePath(path string) (int, error) {
	lock := u.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	removed, err := u.replace(path, nil, nil)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		if err := u.adjustStats(removed, nil); err != nil {
			return removed, err
		}
	}
	logger.Debug("removed %s: %d chunks", path, removed)
	return removed, nil
}

// IngestFolder recursively ingests every supported file under root with
// bounded concurrency. Per-file failures are collected in the result; only
// infrastructure failures (walking, context cancellation) abort the batch.
func (u *IngestUseCase) IngestFolder(ctx context.Context, root string, progress ProgressFunc) (*BatchResult, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	result := &BatchResult{}
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := u.Ingest(gctx, file.Path)

			mu.Lock()
			defer mu.Unlock()
			done++
			if progress != nil {
				progress(done, len(files), file.Path)
			}
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.Path, err))
				return nil
			}
			if res.ChunksAdded == 0 && res.ChunksRemoved == 0 {
				result.FilesSkipped++
			} else {
				result.FilesIngested++
			}
			result.ChunksAdded += res.ChunksAdded
			result.ChunksRemoved += res.ChunksRemoved
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// pathLock returns the mutex serializing ingestion for a path, creating it
// on first use.
func (u *IngestUseCase) pathLock(path string) *sync.Mutex {
	u.pathMu.Lock()
	defer u.pathMu.Unlock()
	lock, ok := u.paths[path]
	if !ok {
		lock = &sync.Mutex{}
		u.paths[path] = lock
	}
	return lock
}

// adjustStats folds one replacement into the corpus stats, keeping the
// running average chunk length consistent.
func (u *IngestUseCase) adjustStats(removed int, added []domain.Chunk) error {
	u.statsMu.Lock()
	defer u.statsMu.Unlock()

	stats, err := u.meta.GetStats()
	if err != nil {
		return err
	}

	totalLen := stats.AvgChunkLen * float64(stats.TotalChunks)

	// Removed chunks are approximated at the running average; their exact
	// token counts are gone once deleted.
	totalLen -= stats.AvgChunkLen * float64(removed)
	stats.TotalChunks -= removed

	for _, chunk := range added {
		totalLen += float64(len(chunk.Tokens))
	}
	stats.TotalChunks += len(added)

	if stats.TotalChunks <= 0 {
		stats.TotalChunks = 0
		stats.AvgChunkLen = 0
	} else {
		stats.AvgChunkLen = totalLen / float64(stats.TotalChunks)
	}

	switch {
	case removed == 0 && len(added) > 0:
		stats.TotalDocs++
	case removed > 0 && len(added) == 0:
		if stats.TotalDocs > 0 {
			stats.TotalDocs--
		}
	}

	return u.meta.UpdateStats(stats)
}

var (
	nonPrintable = regexp.MustCompile(`[^\x20-\x7E\n]`)
	spaceRuns    = regexp.MustCompile(`[ \t]+`)
)

// Normalize cleans raw document text: line endings become \n, runs of
// spaces and tabs collapse, non-printable characters are stripped, and the
// result is trimmed.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = nonPrintable.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// uniqueTerms returns the distinct terms in a token list.
func uniqueTerms(tokens []string) []string {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	terms := make([]string, 0, len(set))
	for t := range set {
		terms = append(terms, t)
	}
	return terms
}
