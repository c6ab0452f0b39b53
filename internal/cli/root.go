package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lgreg1908/papa-rag/config"
	"github.com/lgreg1908/papa-rag/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "papa-rag",
	Short: "Semantic search over a folder of documents",
	Long: `papa-rag ingests a folder of documents, keeps the index fresh as files
change, and answers semantic nearest-neighbor queries with a keyword
fallback.

Example usage:
  papa-rag ingest ./docs              # One-shot ingest of a folder
  papa-rag watch ./docs               # Keep the index fresh
  papa-rag search "invoice total"     # Query the corpus`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if verbose {
			logger.SetLevel(logger.LevelDebug)
		} else {
			logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./papa-rag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "corpus directory (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
