// Ragd is a local retrieval-augmented generation daemon. It indexes a
// workspace's source files into semantic vectors and answers questions
// about them, grounding every answer in retrieved passages.
//
// Usage:
//
//	# Index the current workspace
//	ragd index
//
//	# Ask a question
//	ragd query "where is the retry logic for uploads?"
//
//	# Run the HTTP API
//	ragd serve
//
// Configuration is read from ~/.config/ragd/config.yaml and RAGD_*
// environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragd",
	Short: "Retrieval-augmented generation for a local workspace",
	Long: `ragd turns a workspace's source files into searchable semantic vectors
and answers questions about them, grounding every answer in retrieved
passages.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ragd %s (commit %s, built %s)\n", version, gitCommit, buildDate))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/ragd/config.yaml)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(statusCmd)
}
