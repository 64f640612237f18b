package embeddings

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// cacheTimeNow is a variable for testing purposes (allows mocking time).
var cacheTimeNow = time.Now

// CacheKey derives the deterministic cache key for a text under a model.
// Identical content under the same model always maps to the same key, so
// re-indexing unchanged files never re-triggers a backend call.
func CacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// cacheEntry is the persisted per-key record. A zero ExpiresAt means the
// entry never expires.
type cacheEntry struct {
	Vector    []float32 `json:"vector"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// cacheFile is the persisted JSON layout.
type cacheFile struct {
	Entries map[string]cacheEntry `json:"entries"`
}

// CacheConfig holds configuration for the embedding cache.
type CacheConfig struct {
	// Path is the cache file location. Empty disables persistence (the
	// cache then lives only in memory).
	Path string

	// SweepInterval is how often expired entries are evicted in bulk.
	// Zero disables the background sweep; lazy eviction on Get still keeps
	// lookups correct, the sweep only bounds storage growth.
	SweepInterval time.Duration
}

// Cache is a durable key→vector cache with TTL expiry.
//
// Get on an expired entry reports a miss and removes the entry (lazy
// eviction). Mutations persist the whole cache file via temp-then-rename,
// so the cache survives process restarts without ever being left corrupt.
type Cache struct {
	config CacheConfig
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewCache creates the cache, loading any persisted entries. A corrupt or
// missing cache file starts empty; the cache is an optimization, never a
// source of truth.
func NewCache(config CacheConfig, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{
		config:  config,
		logger:  logger,
		entries: make(map[string]cacheEntry),
		done:    make(chan struct{}),
	}

	if config.Path != "" {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		c.load()
	}

	if config.SweepInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop()
	}
	return c, nil
}

// Get returns the cached vector for key, or ok=false on miss. Expired
// entries are treated as absent and removed.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.ExpiresAt.IsZero() && !cacheTimeNow().Before(entry.ExpiresAt) {
		delete(c.entries, key)
		c.persistLocked()
		return nil, false
	}
	return entry.Vector, true
}

// Set stores a vector under key. A zero or negative ttl means the entry
// lives until explicit invalidation.
func (c *Cache) Set(key string, vector []float32, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := cacheEntry{Vector: vector}
	if ttl > 0 {
		entry.ExpiresAt = cacheTimeNow().Add(ttl)
	}
	c.entries[key] = entry
	c.persistLocked()
}

// Invalidate removes a single entry.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	c.persistLocked()
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.persistLocked()
}

// Len returns the current entry count, counting expired entries that have
// not been evicted yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the sweep loop. Idempotent.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	c.wg.Wait()
	return nil
}

// sweepLoop evicts expired entries periodically.
func (c *Cache) sweepLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep removes all expired entries in one pass.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := cacheTimeNow()
	removed := 0
	for key, entry := range c.entries {
		if !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("swept expired cache entries", zap.Int("removed", removed))
		c.persistLocked()
	}
}

// load reads persisted entries, dropping any that already expired.
func (c *Cache) load() {
	raw, err := os.ReadFile(c.config.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("failed to read cache file, starting empty",
				zap.String("path", c.config.Path), zap.Error(err))
		}
		return
	}

	var file cacheFile
	if err := json.Unmarshal(raw, &file); err != nil {
		c.logger.Warn("cache file unparseable, starting empty",
			zap.String("path", c.config.Path), zap.Error(err))
		return
	}

	now := cacheTimeNow()
	for key, entry := range file.Entries {
		if !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt) {
			continue
		}
		c.entries[key] = entry
	}
}

// persistLocked rewrites the cache file atomically. Callers hold mu.
// Persistence failures are logged, not returned: a cold cache is always an
// acceptable outcome.
func (c *Cache) persistLocked() {
	if c.config.Path == "" {
		return
	}

	data, err := json.Marshal(cacheFile{Entries: c.entries})
	if err != nil {
		c.logger.Warn("failed to encode cache", zap.Error(err))
		return
	}

	dir := filepath.Dir(c.config.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(c.config.Path)+".tmp-*")
	if err != nil {
		c.logger.Warn("failed to create cache temp file", zap.Error(err))
		return
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		c.logger.Warn("failed to write cache temp file", zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		c.logger.Warn("failed to close cache temp file", zap.Error(err))
		return
	}
	if err := os.Rename(tmpPath, c.config.Path); err != nil {
		os.Remove(tmpPath)
		c.logger.Warn("failed to replace cache file", zap.Error(err))
	}
}
