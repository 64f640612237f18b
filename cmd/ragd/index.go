package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halcyonlabs/ragd/internal/indexer"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the workspace into the vector store",
	Long: `Walk the configured workspace, chunk every matching file and write
embedded passages to the vector store. Re-indexing a file replaces its
previous passages.

Examples:
  # Index the workspace from config
  ragd index

  # Index with a specific config file
  ragd index --config ./ragd.yaml`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reporter := indexer.ProgressFunc(func(done, total int, currentFile string) {
		if currentFile == "" {
			fmt.Fprintf(os.Stderr, "indexing %d files\n", total)
			return
		}
		fmt.Fprintf(os.Stderr, "\r[%d/%d] %s\033[K", done, total, currentFile)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	})

	result, err := a.indexer.IndexWorkspace(ctx, reporter)
	if err != nil {
		return err
	}

	fmt.Printf("indexed %d files (%d chunks) in %s\n",
		result.FilesIndexed, result.ChunksIndexed, result.Root)
	if result.FilesSkipped > 0 {
		fmt.Printf("skipped %d files\n", result.FilesSkipped)
	}
	if result.ChunksSuppressed > 0 {
		fmt.Printf("suppressed %d chunks containing secrets\n", result.ChunksSuppressed)
	}
	return nil
}
