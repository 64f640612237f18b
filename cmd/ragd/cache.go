package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the embedding cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached embeddings",
	Long: `Remove every cached embedding. The next indexing run will recompute
all vectors through the embedding backend.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show embedding cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cache == nil {
		return fmt.Errorf("embedding cache is disabled")
	}
	a.cache.Clear()
	fmt.Println("embedding cache cleared")
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cache == nil {
		fmt.Println("embedding cache is disabled")
		return nil
	}
	fmt.Printf("cached embeddings: %d\n", a.cache.Len())
	return nil
}
