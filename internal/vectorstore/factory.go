package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Backend identifiers accepted by New.
const (
	BackendFile    = "file"
	BackendChromem = "chromem"
)

// Config selects and configures a store backend.
type Config struct {
	// Backend is "file" (default) or "chromem".
	Backend string

	// Path is the collection file (file backend) or directory (chromem).
	Path string

	// Collection is the collection name (chromem backend only).
	Collection string

	// Dimension is the embedding dimension for the collection.
	Dimension int

	// Compress enables compression (chromem backend only).
	Compress bool
}

// New creates a Store for the configured backend with instrumentation
// attached. The store must be Initialized before use.
func New(cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendFile, "":
		store, err := NewFileStore(FileStoreConfig{
			Path:      cfg.Path,
			Dimension: cfg.Dimension,
		}, logger)
		if err != nil {
			return nil, err
		}
		store.SetMetrics(NewMetrics(logger))
		return store, nil
	case BackendChromem:
		store, err := NewChromemStore(ChromemConfig{
			Path:       cfg.Path,
			Collection: cfg.Collection,
			Dimension:  cfg.Dimension,
			Compress:   cfg.Compress,
		}, logger)
		if err != nil {
			return nil, err
		}
		store.SetMetrics(NewMetrics(logger))
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}
