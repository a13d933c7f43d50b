package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rizal/memdex/pkg/memory"
)

var (
	indexFile     string
	indexSource   string
	indexType     string
	indexPriority int
	indexTags     []string
	indexForce    bool
)

var indexCmd = &cobra.Command{
	Use:   "index [content]",
	Short: "Store a memory",
	Long: `Store a memory from the command line or from a file. The returned id is
derived from the content, so indexing the same memory twice is a no-op.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexFile, "file", "f", "", "read content from file")
	indexCmd.Flags().StringVar(&indexSource, "source", "manual", "memory source (conversation, document, observation, manual, system)")
	indexCmd.Flags().StringVar(&indexType, "type", "fact", "memory type (fact, event, preference, knowledge, task)")
	indexCmd.Flags().IntVar(&indexPriority, "priority", 3, "priority 1 (highest) to 5 (lowest)")
	indexCmd.Flags().StringSliceVar(&indexTags, "tags", nil, "comma-separated tags")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "reindex even if the memory already exists")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	var content string
	switch {
	case indexFile != "":
		data, err := os.ReadFile(indexFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", indexFile, err)
		}
		content = string(data)
	case len(args) == 1:
		content = args[0]
	default:
		return fmt.Errorf("provide content as an argument or via --file")
	}

	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is empty")
	}

	engine, closer, err := newEngine()
	if err != nil {
		return err
	}
	defer closer()

	id, err := engine.StoreMemory(context.Background(), memory.IndexRequest{
		Content:      content,
		Source:       memory.Source(indexSource),
		Type:         memory.Type(indexType),
		Priority:     indexPriority,
		Tags:         indexTags,
		ForceReindex: indexForce,
	})
	if err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}

	fmt.Printf("Stored memory %s\n", id)
	return nil
}
