package main

import (
	"context"
	"fmt"
	"path/filepath"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/halcyonlabs/ragd/internal/config"
	"github.com/halcyonlabs/ragd/internal/embeddings"
	"github.com/halcyonlabs/ragd/internal/indexer"
	"github.com/halcyonlabs/ragd/internal/logging"
	"github.com/halcyonlabs/ragd/internal/rag"
	"github.com/halcyonlabs/ragd/internal/vectorstore"
)

// app holds the wired service graph. Everything is constructed once at
// startup and passed by reference; there is no global state.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	cache        *embeddings.Cache
	embedder     *embeddings.Service
	store        vectorstore.Store
	indexer      *indexer.Service
	orchestrator *rag.Orchestrator
}

// newApp loads configuration and wires every service. The returned app
// must be Closed.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	var otelProvider otellog.LoggerProvider
	if cfg.Logging.OTel {
		otelProvider = global.GetLoggerProvider()
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, otelProvider)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg
	dataDir := cfg.DataDir()

	var cache *embeddings.Cache
	if cfg.Embeddings.CacheEnabled() {
		var err error
		cache, err = embeddings.NewCache(embeddings.CacheConfig{
			Path:          filepath.Join(dataDir, "embedding_cache.json"),
			SweepInterval: cfg.Embeddings.Cache.SweepInterval.Duration(),
		}, a.logger)
		if err != nil {
			return fmt.Errorf("creating embedding cache: %w", err)
		}
		a.cache = cache
	}

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		Dimension: cfg.Embeddings.Dimension,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("creating embedding provider: %w", err)
	}

	a.embedder, err = embeddings.NewService(embeddings.ServiceConfig{
		Model:             cfg.Embeddings.Model,
		CacheEnabled:      cfg.Embeddings.CacheEnabled(),
		CacheTTL:          cfg.Embeddings.Cache.TTL.Duration(),
		RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
		Burst:             cfg.Embeddings.Burst,
	}, provider, cache, a.logger)
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	storePath := filepath.Join(dataDir, "vectorstore.json")
	if cfg.Store.Backend == vectorstore.BackendChromem {
		storePath = filepath.Join(dataDir, "vectorstore")
	}
	a.store, err = vectorstore.New(vectorstore.Config{
		Backend:    cfg.Store.Backend,
		Path:       storePath,
		Collection: cfg.Store.Collection,
		Dimension:  a.embedder.Dimension(),
		Compress:   cfg.Store.Compress,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	if err := a.store.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}

	a.indexer, err = indexer.NewService(indexer.Config{
		Root:            cfg.Workspace.Root,
		IncludePatterns: cfg.Indexer.Include,
		ExcludePatterns: cfg.Indexer.Exclude,
		MaxFileSize:     cfg.Indexer.MaxFileSize,
		WindowLines:     cfg.Indexer.WindowLines,
		OverlapLines:    cfg.Indexer.OverlapLines,
		EmbedBatchSize:  cfg.Indexer.EmbedBatchSize,
		ScanSecrets:     cfg.Indexer.ScanSecrets,
	}, a.embedder, a.store, a.logger)
	if err != nil {
		return fmt.Errorf("creating indexer: %w", err)
	}

	var chat rag.ChatClient
	if cfg.RAG.Model != "" {
		client, err := rag.NewOpenAIChatClient(rag.OpenAIChatConfig{
			Model:   cfg.RAG.Model,
			BaseURL: cfg.RAG.BaseURL,
			APIKey:  cfg.RAG.APIKey.Value(),
		})
		if err != nil {
			return fmt.Errorf("creating chat client: %w", err)
		}
		chat = client
	}

	a.orchestrator, err = rag.New(rag.Config{
		MinScore:      cfg.RAG.MinScore,
		Limit:         cfg.RAG.Limit,
		RAGOnly:       cfg.RAG.RAGOnly,
		RAGOnlyForced: cfg.RAG.RAGOnlyForced,
		Chat: rag.ChatOptions{
			Temperature: cfg.RAG.Temperature,
			MaxTokens:   cfg.RAG.MaxTokens,
		},
	}, a.embedder, a.store, chat, a.logger)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}
	return nil
}

// Close tears down services in dependency order.
func (a *app) Close() {
	if a.indexer != nil {
		a.indexer.Dispose()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing store", zap.Error(err))
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			a.logger.Warn("closing embedding service", zap.Error(err))
		}
	} else if a.cache != nil {
		_ = a.cache.Close()
	}
	_ = logging.Sync(a.logger)
}
