package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rizal/memdex/pkg/memory"
	"github.com/rizal/memdex/pkg/search"
)

var (
	searchStrategy string
	searchLimit    int
	searchSource   string
	searchType     string
	searchTags     []string
	searchMinScore float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search memories",
	Long: `Search stored memories. The default hybrid strategy fuses vector
similarity with keyword relevance; vector, keyword, and rankfusion are also
available.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchStrategy, "strategy", "hybrid", "search strategy (vector, keyword, hybrid, rankfusion)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum results (0 uses the configured default)")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "filter by source")
	searchCmd.Flags().StringVar(&searchType, "type", "", "filter by type")
	searchCmd.Flags().StringSliceVar(&searchTags, "tags", nil, "filter by tags (all must match)")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "minimum final score")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	strategy, err := search.ParseStrategy(searchStrategy)
	if err != nil {
		return err
	}

	engine, closer, err := newEngine()
	if err != nil {
		return err
	}
	defer closer()

	ctx := context.Background()
	if err := engine.Warm(ctx); err != nil {
		return err
	}

	results, err := engine.SearchMemories(ctx, args[0], search.Options{
		Strategy: strategy,
		Limit:    searchLimit,
		MinScore: searchMinScore,
		Source:   memory.Source(searchSource),
		Type:     memory.Type(searchType),
		Tags:     searchTags,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s (%s)\n", i+1, r.Score, r.ID, r.Source)
		fmt.Printf("   %s\n", r.Snippet)
	}
	return nil
}
