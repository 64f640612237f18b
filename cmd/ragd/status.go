package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the indexed workspace",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.store.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("workspace:  %s\n", a.cfg.Workspace.Root)
	fmt.Printf("backend:    %s\n", a.cfg.Store.Backend)
	fmt.Printf("documents:  %d\n", count)
	if meta, err := a.store.Metadata(ctx); err == nil && meta != nil {
		fmt.Printf("dimension:  %d\n", meta.EmbeddingDimension)
		fmt.Printf("created:    %s\n", meta.Created.Format("2006-01-02 15:04:05"))
	}
	if a.cache != nil {
		fmt.Printf("cache:      %d entries\n", a.cache.Len())
	}
	return nil
}
