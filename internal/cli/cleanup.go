package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old low-importance memories",
	Long: `Run one cleanup pass immediately. A memory is deleted only when it is
older than the configured maximum age AND scored below the importance
threshold.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	engine, closer, err := newEngine()
	if err != nil {
		return err
	}
	defer closer()

	ctx := context.Background()
	if err := engine.Warm(ctx); err != nil {
		return err
	}

	report, err := engine.CleanupOldMemories(ctx)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	fmt.Printf("Records deleted: %d\n", report.RecordsDeleted)
	fmt.Printf("Chunks deleted:  %d\n", report.ChunksDeleted)
	fmt.Printf("Vectors deleted: %d\n", report.VectorsDeleted)
	return nil
}
