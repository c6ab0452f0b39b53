package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lgreg1908/papa-rag/config"
	"github.com/lgreg1908/papa-rag/internal/adapter/analyzer"
	"github.com/lgreg1908/papa-rag/internal/adapter/chunker"
	"github.com/lgreg1908/papa-rag/internal/adapter/fs"
	"github.com/lgreg1908/papa-rag/internal/port"
	"github.com/lgreg1908/papa-rag/internal/usecase"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <folder>",
	Short: "Ingest all supported files in a folder",
	Long: `Recursively ingest every supported file under the given folder:
load, normalize, chunk, embed, and index.

Examples:
  papa-rag ingest ./docs
  papa-rag ingest /path/to/corpus --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	folder, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(folder)
	if err != nil {
		return fmt.Errorf("folder does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folder)
	}

	cfg := GetConfig()

	index, meta, err := openStores(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer index.Close()
	defer meta.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	ingestUC, err := buildIngestUseCase(cfg, embedder, index, meta)
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %s...\n", folder)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex

	progress := func(done, total int, path string) {
		barMu.Lock()
		defer barMu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	result, err := ingestUC.IngestFolder(cmd.Context(), folder, progress)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Files ingested: %d\n", result.FilesIngested)
	fmt.Printf("  Files skipped:  %d\n", result.FilesSkipped)
	fmt.Printf("  Chunks added:   %d\n", result.ChunksAdded)
	fmt.Printf("  Chunks removed: %d\n", result.ChunksRemoved)
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors:         %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}

	return nil
}

// buildIngestUseCase wires the full pipeline from config.
func buildIngestUseCase(cfg *config.Config, embedder port.Embedder, index port.VectorIndex, meta port.MetadataStore) (*usecase.IngestUseCase, error) {
	tokenizer := analyzer.NewTokenizer()

	chk, err := chunker.NewWindowChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, tokenizer)
	if err != nil {
		return nil, err
	}

	loader := fs.NewTextLoader(nil)
	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)

	return usecase.NewIngestUseCase(loader, walker, chk, embedder, index, meta, tokenizer, cfg.Ingest.Concurrency), nil
}
