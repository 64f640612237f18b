package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// collectionVersion is the on-disk format version written into new
// collection metadata.
const collectionVersion = "1"

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// FileStoreConfig holds configuration for the JSON file-backed store.
type FileStoreConfig struct {
	// Path is the collection file location, e.g.
	// ".ragd/vectorstore/workspace.json".
	Path string

	// Dimension is the expected embedding dimension. Must match the
	// embedder's output dimension.
	Dimension int
}

// Validate validates the configuration.
func (c *FileStoreConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// collectionFile is the persisted JSON layout: the full document set plus
// the write-once collection metadata.
type collectionFile struct {
	Documents []DocumentWithEmbedding `json:"documents"`
	Metadata  CollectionMetadata      `json:"metadata"`
}

// FileStore implements Store on a single JSON file.
//
// The whole file is rewritten on every mutation, to a temp file in the same
// directory followed by an atomic rename, so a crash mid-write never leaves
// a corrupt collection behind. Documents are held in memory between
// mutations; search runs against the in-memory snapshot.
type FileStore struct {
	config  FileStoreConfig
	logger  *zap.Logger
	metrics *Metrics // optional, set via SetMetrics

	mu       sync.RWMutex
	docs     []DocumentWithEmbedding
	byID     map[string]int
	metadata CollectionMetadata
	open     bool
}

// NewFileStore creates a FileStore for the given configuration. The
// collection is not touched until Initialize.
func NewFileStore(config FileStoreConfig, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &FileStore{
		config: config,
		logger: logger,
		byID:   make(map[string]int),
	}, nil
}

// SetMetrics sets the metrics tracker for this store. Optional; call after
// creation if instrumentation is desired.
func (s *FileStore) SetMetrics(m *Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// Initialize opens or creates the collection file.
//
// A missing file creates a fresh collection with new metadata. An existing
// but unparseable file degrades to an empty collection (it will be
// overwritten on the next mutation); only an unwritable location fails.
func (s *FileStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil
	}

	dir := filepath.Dir(s.config.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating directory %s: %v", ErrStoreInit, dir, err)
	}

	raw, err := os.ReadFile(s.config.Path)
	switch {
	case os.IsNotExist(err):
		s.metadata = CollectionMetadata{
			EmbeddingDimension: s.config.Dimension,
			Created:            timeNow().UTC(),
			Version:            collectionVersion,
		}
		if err := s.persistLocked(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreInit, err)
		}
	case err != nil:
		return fmt.Errorf("%w: reading %s: %v", ErrStoreInit, s.config.Path, err)
	default:
		var file collectionFile
		if err := json.Unmarshal(raw, &file); err != nil || file.Metadata.EmbeddingDimension == 0 {
			// Unparseable collections degrade to empty rather than blocking
			// retrieval. The next successful mutation rewrites the file.
			s.logger.Warn("collection file unparseable, starting empty",
				zap.String("path", s.config.Path),
				zap.Error(err),
			)
			s.metadata = CollectionMetadata{
				EmbeddingDimension: s.config.Dimension,
				Created:            timeNow().UTC(),
				Version:            collectionVersion,
			}
			s.docs = nil
			s.byID = make(map[string]int)
			break
		}
		if file.Metadata.EmbeddingDimension != s.config.Dimension {
			return fmt.Errorf("%w: collection dimension %d, configured %d",
				ErrDimensionMismatch, file.Metadata.EmbeddingDimension, s.config.Dimension)
		}
		s.metadata = file.Metadata
		s.docs = file.Documents
		s.byID = make(map[string]int, len(file.Documents))
		for i, doc := range file.Documents {
			s.byID[doc.ID] = i
		}
	}

	s.open = true
	s.logger.Info("file store initialized",
		zap.String("path", s.config.Path),
		zap.Int("dimension", s.metadata.EmbeddingDimension),
		zap.Int("documents", len(s.docs)),
	)
	return nil
}

// AddDocuments appends documents in input order, replacing any stored
// document with the same ID.
func (s *FileStore) AddDocuments(ctx context.Context, docs []DocumentWithEmbedding) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrStoreClosed
	}

	// Validate the whole batch before mutating anything.
	for i, doc := range docs {
		if len(doc.Embedding) != s.metadata.EmbeddingDimension {
			return fmt.Errorf("%w: document %d (%s) has %d components, collection expects %d",
				ErrDimensionMismatch, i, doc.ID, len(doc.Embedding), s.metadata.EmbeddingDimension)
		}
	}

	prevDocs, prevByID := s.docs, s.byID
	next := make([]DocumentWithEmbedding, len(s.docs), len(s.docs)+len(docs))
	copy(next, s.docs)
	nextByID := make(map[string]int, len(s.byID)+len(docs))
	for id, i := range s.byID {
		nextByID[id] = i
	}
	for _, doc := range docs {
		if i, exists := nextByID[doc.ID]; exists {
			next[i] = doc
			continue
		}
		nextByID[doc.ID] = len(next)
		next = append(next, doc)
	}

	s.docs = next
	s.byID = nextByID
	if err := s.persistLocked(); err != nil {
		// Keep memory consistent with disk on write failure.
		s.docs, s.byID = prevDocs, prevByID
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordMutation(ctx, BackendFile, "add", len(next)-len(prevDocs))
	}
	return nil
}

// SimilaritySearch scores every stored vector against the query.
func (s *FileStore) SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	start := timeNow()
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.open || len(s.docs) == 0 {
		return []SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	results := make([]SearchResult, 0, limit)
	for _, doc := range s.docs {
		score := Similarity(query, doc.Embedding)
		if score < opts.MinScore {
			continue
		}
		if !opts.Filter.Matches(doc.Metadata) {
			continue
		}
		results = append(results, SearchResult{Document: doc.Document, Score: score})
	}

	// Stable sort keeps insertion order on equal scores, making results
	// deterministic for a fixed store snapshot.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	if s.metrics != nil {
		s.metrics.RecordSearch(ctx, BackendFile, timeNow().Sub(start), len(results))
	}
	return results, nil
}

// DeleteDocuments removes all documents matching the filter. An empty
// filter deletes the whole collection.
func (s *FileStore) DeleteDocuments(ctx context.Context, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return 0, ErrStoreClosed
	}

	prevDocs, prevByID := s.docs, s.byID
	kept := make([]DocumentWithEmbedding, 0, len(s.docs))
	removed := 0
	for _, doc := range s.docs {
		if filter.Matches(doc.Metadata) {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	if removed == 0 {
		return 0, nil
	}

	s.docs = kept
	s.byID = make(map[string]int, len(kept))
	for i, doc := range kept {
		s.byID[doc.ID] = i
	}
	if err := s.persistLocked(); err != nil {
		s.docs, s.byID = prevDocs, prevByID
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.RecordMutation(ctx, BackendFile, "delete", -removed)
	}
	return removed, nil
}

// Count returns the collection cardinality.
func (s *FileStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return 0, nil
	}
	return len(s.docs), nil
}

// Metadata returns the collection metadata.
func (s *FileStore) Metadata(ctx context.Context) (*CollectionMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, nil
	}
	meta := s.metadata
	return &meta, nil
}

// Close marks the store closed. Idempotent; the file is already durable
// after every mutation, so nothing is flushed here.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// persistLocked rewrites the collection file atomically. Callers hold mu.
func (s *FileStore) persistLocked() error {
	file := collectionFile{
		Documents: s.docs,
		Metadata:  s.metadata,
	}
	data, err := json.Marshal(&file)
	if err != nil {
		return fmt.Errorf("%w: encoding collection: %v", ErrStoreIO, err)
	}

	// Temp file in the same directory so the rename stays on one filesystem.
	dir := filepath.Dir(s.config.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.config.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrStoreIO, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing temp file: %v", ErrStoreIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: syncing temp file: %v", ErrStoreIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing temp file: %v", ErrStoreIO, err)
	}
	if err := os.Rename(tmpPath, s.config.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming %s: %v", ErrStoreIO, tmpPath, err)
	}
	return nil
}
