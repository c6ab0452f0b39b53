package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lgreg1908/papa-rag/internal/adapter/analyzer"
	"github.com/lgreg1908/papa-rag/internal/adapter/retriever"
	"github.com/lgreg1908/papa-rag/internal/usecase"
)

var (
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed corpus",
	Long: `Run a semantic nearest-neighbor search over the indexed corpus,
with keyword fallback when semantic results run short.

Examples:
  papa-rag search "termination clause"
  papa-rag search "quarterly revenue" --top-k 10 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}

// searchResult is the machine-readable output shape.
type searchResult struct {
	Source  string  `json:"source"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	query := args[0]

	topK := cfg.Search.TopK
	if cmd.Flags().Changed("top-k") {
		topK = searchTopK
	}

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

	keyword := retriever.NewKeywordRetriever(meta, analyzer.NewTokenizer(), cfg.Search.K1, cfg.Search.B)
	searchUC := usecase.NewSearchUseCase(embedder, index, meta, keyword, cfg.Search.MaxDistance, cfg.Search.Fallback)

	chunks, err := searchUC.Search(cmd.Context(), query, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]searchResult, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, searchResult{
			Source:  c.Chunk.Path,
			Snippet: snippet(c.Chunk.Text, 200),
			Score:   c.Score,
		})
	}

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), query)
	for i, r := range results {
		fmt.Printf("%d. %s (score: %.2f)\n   %s\n\n", i+1, r.Source, r.Score, r.Snippet)
	}

	return nil
}

func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return text
}
