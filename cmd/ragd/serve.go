package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyonlabs/ragd/internal/http"
	"github.com/halcyonlabs/ragd/internal/indexer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ragd HTTP API",
	Long: `Start the HTTP server exposing indexing and querying. With watch mode
enabled in the configuration, workspace changes trigger automatic
re-indexing.

Examples:
  # Serve on the configured address
  ragd serve

  # Serve on a different address
  RAGD_SERVER_ADDR=0.0.0.0:8090 ragd serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received %v, shutting down\n", sig)
		cancel()
	}()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := http.NewServer(http.Config{Addr: a.cfg.Server.Addr},
		a.orchestrator, a.indexer, a.store, a.logger)
	if err != nil {
		return err
	}

	if a.cfg.Indexer.Watch {
		watcher, err := indexer.NewWatcher(a.indexer, a.cfg.Indexer.WatchDebounce.Duration(), a.logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
		a.logger.Info("watch mode enabled",
			zap.Duration("debounce", a.cfg.Indexer.WatchDebounce.Duration()))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		a.cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
