package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Compact and optimize storage",
	Long: `Optimize the underlying database: merge the full-text index, refresh
query planner statistics, and checkpoint the write-ahead log.`,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	engine, closer, err := newEngine()
	if err != nil {
		return err
	}
	defer closer()

	report, err := engine.OptimizeMemorySystems(context.Background())
	if err != nil {
		return fmt.Errorf("optimize failed: %w", err)
	}

	fmt.Printf("Store:        %s\n", report.Store)
	fmt.Printf("Vector index: %s\n", report.VectorIndex)
	fmt.Printf("Duration:     %s\n", report.Duration.Round(time.Millisecond))
	return nil
}
