package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/rizal/memdex/internal/observability"
)

var statsListen string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory system statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsListen, "listen", "", "serve prometheus metrics on this address instead of exiting (e.g. :9090)")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, closer, err := newEngine()
	if err != nil {
		return err
	}
	defer closer()

	ctx := context.Background()
	if err := engine.Warm(ctx); err != nil {
		return err
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to gather stats: %w", err)
	}

	fmt.Printf("Records:       %d\n", stats.Records)
	fmt.Printf("Chunks:        %d\n", stats.Chunks)
	fmt.Printf("Vector index:  %d entries, %d dimensions\n", stats.VectorIndex.Entries, stats.VectorIndex.Dimensions)
	fmt.Printf("Embed cache:   %d/%d entries, %d hits, %d misses, %d fallbacks\n",
		stats.EmbeddingCache.Entries, stats.EmbeddingCache.Capacity,
		stats.EmbeddingCache.Hits, stats.EmbeddingCache.Misses, stats.EmbeddingCache.Fallbacks)
	fmt.Printf("Batch runs:    %d completed, %d failed, %d cancelled\n",
		stats.Batch.CompletedRuns, stats.Batch.FailedRuns, stats.Batch.CancelledRuns)

	if statsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		fmt.Printf("Serving metrics on %s/metrics\n", statsListen)
		return http.ListenAndServe(statsListen, mux)
	}
	return nil
}
