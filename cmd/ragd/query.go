package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halcyonlabs/ragd/internal/rag"
)

var queryStream bool

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question about the indexed workspace",
	Long: `Embed the question, retrieve the most relevant indexed passages and
generate a grounded answer.

Examples:
  # One-shot answer
  ragd query "where is the retry logic for uploads?"

  # Stream the answer as it is generated
  ragd query --stream "how does the cache evict entries?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryStream, "stream", false, "stream the answer as it is generated")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if queryStream {
		var lastLen int
		err := a.orchestrator.StreamQuery(ctx, question, func(chunk rag.StreamChunk) {
			if chunk.Done {
				fmt.Println()
				if chunk.Err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", chunk.Err)
				}
				return
			}
			// Content is accumulated; print only the new suffix.
			fmt.Print(chunk.Content[lastLen:])
			lastLen = len(chunk.Content)
		})
		return err
	}

	resp, err := a.orchestrator.Query(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println(resp.Content)
	if len(resp.Sources) > 0 && resp.Generated {
		fmt.Println("\nSources:")
		for _, src := range resp.Sources {
			fmt.Printf("  %s:%d-%d (score %.2f)\n", src.FilePath, src.StartLine, src.EndLine, src.Score)
		}
	}
	return nil
}
