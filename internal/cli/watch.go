package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lgreg1908/papa-rag/internal/adapter/fs"
	"github.com/lgreg1908/papa-rag/internal/adapter/watcher"
	"github.com/lgreg1908/papa-rag/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch <folder>",
	Short: "Watch a folder and keep the index fresh",
	Long: `Watch the given folder for file changes. New and modified files are
re-ingested after changes settle; deleted files have their chunks removed
from the index. Runs until interrupted.

Example:
  papa-rag watch ./docs`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	loader := fs.NewTextLoader(nil)

	handler := func(ctx context.Context, ev watcher.Event) error {
		switch ev.Kind {
		case watcher.EventUpsert:
			res, err := ingestUC.Ingest(ctx, ev.Path)
			if err != nil {
				return err
			}
			logger.Info("updated %s: %d chunks added, %d removed", ev.Path, res.ChunksAdded, res.ChunksRemoved)
		case watcher.EventRemove:
			removed, err := ingestUC.RemovePath(ev.Path)
			if err != nil {
				return err
			}
			if removed > 0 {
				logger.Info("removed %s: %d chunks", ev.Path, removed)
			}
		}
		return nil
	}

	w, err := watcher.New(cfg.Watch.Debounce, loader.Supported, handler)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s (debounce %s). Press Ctrl+C to stop.\n", folder, cfg.Watch.Debounce)

	if err := w.Watch(ctx, folder); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	fmt.Println("Watcher stopped.")
	return nil
}
