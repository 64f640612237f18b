package embeddings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvider counts backend calls and returns deterministic vectors.
type fakeProvider struct {
	dimension  int
	calls      int
	batchSizes []int
	fail       error
}

func (p *fakeProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	p.batchSizes = append(p.batchSizes, len(texts))
	if p.fail != nil {
		return nil, p.fail
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = vectorFor(text, p.dimension)
	}
	return vectors, nil
}

func (p *fakeProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *fakeProvider) Dimension() int { return p.dimension }
func (p *fakeProvider) Close() error   { return nil }

// vectorFor derives a stable vector from the text so tests can assert
// order preservation.
func vectorFor(text string, dimension int) []float32 {
	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = float32(len(text)+i) / 100
	}
	return vec
}

func newTestService(t *testing.T, cfg ServiceConfig, provider Provider, cache *Cache) *Service {
	t.Helper()
	svc, err := NewService(cfg, provider, cache, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestServiceRequiresProvider(t *testing.T) {
	_, err := NewService(ServiceConfig{}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestServiceEmbedOrderPreserved(t *testing.T) {
	provider := &fakeProvider{dimension: 4}
	svc := newTestService(t, ServiceConfig{Model: "m"}, provider, nil)

	texts := []string{"alpha", "bee", "gamma ray"}
	vectors, err := svc.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, text := range texts {
		assert.Equal(t, vectorFor(text, 4), vectors[i], "vector %d does not match input order", i)
	}
}

func TestServiceEmbedEmptyInput(t *testing.T) {
	svc := newTestService(t, ServiceConfig{}, &fakeProvider{dimension: 2}, nil)
	_, err := svc.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestServiceCacheHitSkipsBackend(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{dimension: 2}
	cache := newTestCache(t, "")
	svc := newTestService(t, ServiceConfig{Model: "m", CacheEnabled: true}, provider, cache)

	_, err := svc.Embed(ctx, []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)

	_, err = svc.Embed(ctx, []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls, "identical content must not re-trigger an embedding call")
}

func TestServiceBatchesOnlyMisses(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{dimension: 2}
	cache := newTestCache(t, "")
	svc := newTestService(t, ServiceConfig{Model: "m", CacheEnabled: true}, provider, cache)

	_, err := svc.Embed(ctx, []string{"a", "b"})
	require.NoError(t, err)

	vectors, err := svc.Embed(ctx, []string{"a", "c", "b", "d"})
	require.NoError(t, err)
	require.Len(t, vectors, 4)

	// One backend call carrying exactly the two misses.
	require.Equal(t, 2, provider.calls)
	assert.Equal(t, []int{2, 2}, provider.batchSizes)
	assert.Equal(t, vectorFor("a", 2), vectors[0])
	assert.Equal(t, vectorFor("c", 2), vectors[1])
}

func TestServiceExpiredEntryTriggersOneFreshCall(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{dimension: 2}
	cache := newTestCache(t, "")
	svc := newTestService(t, ServiceConfig{
		Model:        "m",
		CacheEnabled: true,
		CacheTTL:     time.Millisecond,
	}, provider, cache)

	_, err := svc.Embed(ctx, []string{"volatile"})
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls)

	cacheTimeNow = func() time.Time { return time.Now().Add(10 * time.Millisecond) }
	defer func() { cacheTimeNow = time.Now }()

	_, err = svc.Embed(ctx, []string{"volatile"})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls, "expiry triggers exactly one fresh backend call")
}

func TestServiceSetCacheEnabled(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{dimension: 2}
	cache := newTestCache(t, "")
	svc := newTestService(t, ServiceConfig{Model: "m", CacheEnabled: true}, provider, cache)

	_, err := svc.Embed(ctx, []string{"x"})
	require.NoError(t, err)

	svc.SetCacheEnabled(false)
	_, err = svc.Embed(ctx, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls, "disabled cache goes to the backend")

	svc.SetCacheEnabled(true)
	_, err = svc.Embed(ctx, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls, "re-enabled cache serves the stored vector")
}

func TestServiceBackendFailurePropagates(t *testing.T) {
	provider := &fakeProvider{dimension: 2, fail: fmt.Errorf("%w: connection refused", ErrBackendUnavailable)}
	svc := newTestService(t, ServiceConfig{Model: "m"}, provider, nil)

	_, err := svc.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	_, err = svc.EmbedQuery(context.Background(), "x")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestServiceEmbedQueryUsesCache(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{dimension: 2}
	cache := newTestCache(t, "")
	svc := newTestService(t, ServiceConfig{Model: "m", CacheEnabled: true}, provider, cache)

	first, err := svc.EmbedQuery(ctx, "question")
	require.NoError(t, err)
	second, err := svc.EmbedQuery(ctx, "question")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls)
}

func TestServiceDimension(t *testing.T) {
	svc := newTestService(t, ServiceConfig{}, &fakeProvider{dimension: 384}, nil)
	assert.Equal(t, 384, svc.Dimension())
}
