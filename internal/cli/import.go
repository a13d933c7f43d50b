package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"

	"github.com/rizal/memdex/pkg/memory"
)

// importSchema validates the memory spec file before anything touches
// storage, so a malformed file is rejected whole.
const importSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["content"],
    "properties": {
      "content":  {"type": "string", "minLength": 1},
      "source":   {"type": "string", "enum": ["conversation", "document", "observation", "manual", "system"]},
      "type":     {"type": "string", "enum": ["fact", "event", "preference", "knowledge", "task"]},
      "priority": {"type": "integer", "minimum": 1, "maximum": 5},
      "tags":     {"type": "array", "items": {"type": "string"}},
      "metadata": {"type": "object"},
      "user_id":  {"type": "string"}
    },
    "additionalProperties": false
  }
}`

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Batch-import memories from a JSON file",
	Long: `Import a JSON array of memory specs. The file is schema-validated up
front; individual failures during storage are reported but do not abort the
rest of the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(importSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		for _, desc := range result.Errors() {
			fmt.Fprintf(os.Stderr, "  - %s\n", desc)
		}
		return fmt.Errorf("%s does not match the import schema", args[0])
	}

	var reqs []memory.IndexRequest
	if err := json.Unmarshal(data, &reqs); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}
	if len(reqs) == 0 {
		fmt.Println("Nothing to import")
		return nil
	}

	engine, closer, err := newEngine()
	if err != nil {
		return err
	}
	defer closer()

	batchResult, err := engine.BatchStoreMemories(context.Background(), reqs)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported %d/%d memories (%d failed)\n",
		batchResult.SuccessfulItems, batchResult.TotalItems, batchResult.FailedItems)
	for _, e := range batchResult.Errors {
		fmt.Fprintf(os.Stderr, "  item %d: %s\n", e.Index, e.Error)
	}
	if batchResult.FailedItems > 0 {
		return fmt.Errorf("%d items failed", batchResult.FailedItems)
	}
	return nil
}
