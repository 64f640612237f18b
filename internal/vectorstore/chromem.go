package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ChromemConfig holds configuration for the chromem-go embedded backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Collection is the collection name. Default: "ragd_workspace".
	Collection string

	// Dimension is the expected embedding dimension.
	Dimension int

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "ragd_workspace"
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no external service, gob persistence. Filtering
// beyond exact string equality is applied post-query, so the Filter
// semantics match FileStore exactly.
type ChromemStore struct {
	config  ChromemConfig
	logger  *zap.Logger
	metrics *Metrics

	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	meta       CollectionMetadata
	open       bool
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &ChromemStore{
		config: config,
		logger: logger,
	}, nil
}

// noEmbed rejects server-side embedding. All documents and queries arrive
// with precomputed vectors; reaching this function is a programming error.
func noEmbed(_ context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chromem store requires precomputed embeddings (text %q)", text)
}

// Initialize opens or creates the persistent database and collection.
func (s *ChromemStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil
	}

	if err := os.MkdirAll(s.config.Path, 0o755); err != nil {
		return fmt.Errorf("%w: creating directory %s: %v", ErrStoreInit, s.config.Path, err)
	}

	db, err := chromem.NewPersistentDB(s.config.Path, s.config.Compress)
	if err != nil {
		return fmt.Errorf("%w: opening chromem DB: %v", ErrStoreInit, err)
	}

	collection, err := db.GetOrCreateCollection(s.config.Collection, map[string]string{
		"embedding_dimension": strconv.Itoa(s.config.Dimension),
		"version":             collectionVersion,
	}, noEmbed)
	if err != nil {
		return fmt.Errorf("%w: opening collection %s: %v", ErrStoreInit, s.config.Collection, err)
	}

	// chromem does not expose collection metadata after creation, so the
	// creation timestamp and dimension live in a sidecar file.
	meta, err := s.loadOrCreateMeta()
	if err != nil {
		return err
	}
	if meta.EmbeddingDimension != s.config.Dimension {
		return fmt.Errorf("%w: collection has dimension %d, configured %d",
			ErrDimensionMismatch, meta.EmbeddingDimension, s.config.Dimension)
	}

	s.db = db
	s.collection = collection
	s.meta = meta
	s.open = true
	s.logger.Info("chromem store initialized",
		zap.String("path", s.config.Path),
		zap.String("collection", s.config.Collection),
		zap.Int("documents", collection.Count()),
	)
	return nil
}

// AddDocuments adds documents with precomputed embeddings. Existing IDs are
// replaced (chromem upserts by ID).
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []DocumentWithEmbedding) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrStoreClosed
	}

	for i, doc := range docs {
		if len(doc.Embedding) != s.config.Dimension {
			return fmt.Errorf("%w: document %d (%s) has %d components, collection expects %d",
				ErrDimensionMismatch, i, doc.ID, len(doc.Embedding), s.config.Dimension)
		}
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  metadataToString(doc.Metadata),
			Embedding: doc.Embedding,
		}
	}

	before := s.collection.Count()
	// Concurrency 1: embeddings are precomputed, there is nothing to fan out.
	if err := s.collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return fmt.Errorf("%w: adding documents: %v", ErrStoreIO, err)
	}
	if s.metrics != nil {
		s.metrics.RecordMutation(ctx, BackendChromem, "add", s.collection.Count()-before)
	}
	return nil
}

// SimilaritySearch queries chromem, then applies score normalization and
// filter semantics post-query.
func (s *ChromemStore) SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return []SearchResult{}, nil
	}

	start := timeNow()
	count := s.collection.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	// Over-fetch so post-filtering still fills the limit; chromem caps
	// nResults at the collection size.
	n := count
	results, err := s.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		s.logger.Warn("chromem query failed, returning empty results", zap.Error(err))
		return []SearchResult{}, nil
	}

	out := make([]SearchResult, 0, limit)
	for _, r := range results {
		score := r.Similarity
		if score < 0 {
			score = -score
		}
		if score < opts.MinScore {
			continue
		}
		metadata := metadataFromString(r.Metadata)
		if !opts.Filter.Matches(metadata) {
			continue
		}
		out = append(out, SearchResult{
			Document: Document{ID: r.ID, Content: r.Content, Metadata: metadata},
			Score:    score,
		})
		if len(out) == limit {
			break
		}
	}
	if s.metrics != nil {
		s.metrics.RecordSearch(ctx, BackendChromem, timeNow().Sub(start), len(out))
	}
	return out, nil
}

// DeleteDocuments removes documents matching the filter.
func (s *ChromemStore) DeleteDocuments(ctx context.Context, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrStoreClosed
	}

	before := s.collection.Count()
	if before == 0 {
		return 0, nil
	}

	if len(filter) == 0 {
		if err := s.db.DeleteCollection(s.config.Collection); err != nil {
			return 0, fmt.Errorf("%w: deleting collection: %v", ErrStoreIO, err)
		}
		collection, err := s.db.GetOrCreateCollection(s.config.Collection, map[string]string{
			"embedding_dimension": strconv.Itoa(s.config.Dimension),
			"version":             collectionVersion,
		}, noEmbed)
		if err != nil {
			return 0, fmt.Errorf("%w: recreating collection: %v", ErrStoreIO, err)
		}
		s.collection = collection
		if s.metrics != nil {
			s.metrics.RecordMutation(ctx, BackendChromem, "delete", -before)
		}
		return before, nil
	}

	// chromem's where-filter is flat string equality. The indexer only
	// deletes by file_path, which that covers; set-membership clauses are
	// expanded into one delete per member.
	where := make(map[string]string, len(filter))
	var memberKey string
	var members []string
	for k, v := range filter {
		switch values := v.(type) {
		case []interface{}:
			memberKey = k
			for _, m := range values {
				members = append(members, fmt.Sprintf("%v", m))
			}
		case []string:
			memberKey = k
			members = append(members, values...)
		default:
			where[k] = fmt.Sprintf("%v", v)
		}
	}

	if memberKey == "" {
		if err := s.collection.Delete(ctx, where, nil); err != nil {
			return 0, fmt.Errorf("%w: deleting documents: %v", ErrStoreIO, err)
		}
	} else {
		for _, m := range members {
			where[memberKey] = m
			if err := s.collection.Delete(ctx, where, nil); err != nil {
				return 0, fmt.Errorf("%w: deleting documents: %v", ErrStoreIO, err)
			}
		}
	}
	removed := before - s.collection.Count()
	if s.metrics != nil {
		s.metrics.RecordMutation(ctx, BackendChromem, "delete", -removed)
	}
	return removed, nil
}

// Count returns the collection cardinality.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, nil
	}
	return s.collection.Count(), nil
}

// Metadata returns the collection metadata recorded in the sidecar file.
func (s *ChromemStore) Metadata(ctx context.Context) (*CollectionMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, nil
	}
	meta := s.meta
	return &meta, nil
}

// SetMetrics attaches store instrumentation. Nil disables recording.
func (s *ChromemStore) SetMetrics(m *Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// metaFileName holds the sidecar collection metadata inside the chromem
// directory.
const metaFileName = "collection_meta.json"

func (s *ChromemStore) loadOrCreateMeta() (CollectionMetadata, error) {
	path := filepath.Join(s.config.Path, metaFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		var meta CollectionMetadata
		if jsonErr := json.Unmarshal(data, &meta); jsonErr == nil && meta.EmbeddingDimension > 0 {
			return meta, nil
		}
		s.logger.Warn("unreadable collection metadata, rewriting", zap.String("path", path))
	} else if !os.IsNotExist(err) {
		return CollectionMetadata{}, fmt.Errorf("%w: reading collection metadata: %v", ErrStoreInit, err)
	}

	meta := CollectionMetadata{
		EmbeddingDimension: s.config.Dimension,
		Created:            timeNow().UTC(),
		Version:            collectionVersion,
	}
	data, err = json.Marshal(meta)
	if err != nil {
		return CollectionMetadata{}, fmt.Errorf("%w: encoding collection metadata: %v", ErrStoreInit, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return CollectionMetadata{}, fmt.Errorf("%w: writing collection metadata: %v", ErrStoreInit, err)
	}
	return meta, nil
}

// Close marks the store closed. chromem persists on every mutation.
func (s *ChromemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// metadataToString converts metadata to chromem's string map.
func metadataToString(metadata map[string]interface{}) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

// metadataFromString converts chromem's string map back to metadata.
// Numeric and boolean values round-trip to their typed form so that line
// ranges survive storage; everything else stays a string.
func metadataFromString(metadata map[string]string) map[string]interface{} {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = parseMetadataValue(v)
	}
	return out
}

func parseMetadataValue(v string) interface{} {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if v == "true" || v == "false" {
		return v == "true"
	}
	return v
}
