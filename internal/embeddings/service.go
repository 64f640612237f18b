package embeddings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ServiceConfig holds configuration for the cache-aware embedding service.
type ServiceConfig struct {
	// Model is the model name used for cache key derivation. Should match
	// the provider's configured model.
	Model string

	// CacheEnabled toggles cache consultation. Can be changed at runtime
	// via SetCacheEnabled.
	CacheEnabled bool

	// CacheTTL is the lifetime of new cache entries. Zero means entries
	// live until explicit invalidation.
	CacheTTL time.Duration

	// RequestsPerSecond rate-limits backend calls during bulk indexing.
	// Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Defaults to 1 when limiting is
	// enabled.
	Burst int
}

// Service generates embeddings through a Provider, consulting the cache
// first and batching all misses into a single backend call.
type Service struct {
	provider Provider
	cache    *Cache
	logger   *zap.Logger
	metrics  *Metrics
	limiter  *rate.Limiter

	mu           sync.RWMutex
	model        string
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewService creates an embedding service. cache may be nil to run without
// caching entirely.
func NewService(cfg ServiceConfig, provider Provider, cache *Cache, logger *zap.Logger) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Service{
		provider:     provider,
		cache:        cache,
		logger:       logger,
		metrics:      NewMetrics(logger),
		limiter:      limiter,
		model:        cfg.Model,
		cacheEnabled: cfg.CacheEnabled && cache != nil,
		cacheTTL:     cfg.CacheTTL,
	}, nil
}

// Dimension returns the provider's embedding dimension.
func (s *Service) Dimension() int {
	return s.provider.Dimension()
}

// SetCacheEnabled toggles cache consultation at runtime.
func (s *Service) SetCacheEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheEnabled = enabled && s.cache != nil
}

// SetCacheTTL changes the lifetime applied to new cache entries. Existing
// entries keep their original expiry.
func (s *Service) SetCacheTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheTTL = ttl
}

// Embed generates embeddings for the given texts. Output order matches
// input order. Cache misses are batched into one backend call.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	s.mu.RLock()
	useCache := s.cacheEnabled
	ttl := s.cacheTTL
	model := s.model
	s.mu.RUnlock()

	vectors := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	if useCache {
		for i, text := range texts {
			if vec, ok := s.cache.Get(CacheKey(model, text)); ok {
				vectors[i] = vec
				continue
			}
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
		}
		s.metrics.RecordCacheLookups(ctx, len(texts)-len(missTexts), len(missTexts))
	} else {
		for i, text := range texts {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
		}
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	fresh, err := s.provider.EmbedDocuments(ctx, missTexts)
	s.metrics.RecordGeneration(ctx, model, "embed_documents", time.Since(start), len(missTexts), err)
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(missTexts), err)
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrBackendUnavailable, len(fresh), len(missTexts))
	}

	for j, i := range missIdx {
		vectors[i] = fresh[j]
		if useCache {
			s.cache.Set(CacheKey(model, texts[i]), fresh[j], ttl)
		}
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query, consulting the
// cache first.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	s.mu.RLock()
	useCache := s.cacheEnabled
	ttl := s.cacheTTL
	model := s.model
	s.mu.RUnlock()

	key := CacheKey(model, text)
	if useCache {
		if vec, ok := s.cache.Get(key); ok {
			s.metrics.RecordCacheLookups(ctx, 1, 0)
			return vec, nil
		}
		s.metrics.RecordCacheLookups(ctx, 0, 1)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	vector, err := s.provider.EmbedQuery(ctx, text)
	s.metrics.RecordGeneration(ctx, model, "embed_query", time.Since(start), 1, err)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	if useCache {
		s.cache.Set(key, vector, ttl)
	}
	return vector, nil
}

// Close releases the provider and cache.
func (s *Service) Close() error {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			return err
		}
	}
	return s.provider.Close()
}
