package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStoreInit is returned when a collection cannot be opened or created.
	ErrStoreInit = errors.New("failed to initialize vector store")

	// ErrStoreIO indicates a disk write failure. Read failures are not
	// surfaced through this error; reads degrade to empty results.
	ErrStoreIO = errors.New("vector store I/O failure")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("vector store is closed")

	// ErrDimensionMismatch is returned when a vector's length disagrees with
	// the collection's configured embedding dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")
)

// Store is the interface for vector storage operations.
//
// Implementations hold no internal locking beyond a single mutation mutex,
// so concurrent writers must be serialized by the caller (the indexer's
// single-flight guard). Reads favor resilience: a missing or corrupt
// collection behaves as empty rather than failing the query path.
//
// Adding a document whose ID already exists replaces the stored document
// (upsert). Re-indexing a file therefore never duplicates passages.
type Store interface {
	// Initialize opens or creates the collection, writing the collection
	// metadata record if absent. Returns ErrStoreInit wrapped with the cause
	// if the location is unusable.
	Initialize(ctx context.Context) error

	// AddDocuments appends documents in input order. Fails with
	// ErrDimensionMismatch if any vector's length disagrees with the
	// collection dimension; no documents are written in that case.
	AddDocuments(ctx context.Context, docs []DocumentWithEmbedding) error

	// SimilaritySearch scores every stored vector against query with
	// sign-normalized cosine similarity, applies opts.MinScore and
	// opts.Filter, sorts descending by score (ties keep insertion order) and
	// truncates to opts.Limit. An empty or unreadable collection yields an
	// empty result, not an error.
	SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error)

	// DeleteDocuments removes all documents whose metadata matches every
	// filter clause and returns the number removed. An empty filter deletes
	// the whole collection.
	DeleteDocuments(ctx context.Context, filter Filter) (int, error)

	// Count returns the collection cardinality. A missing or unparseable
	// collection counts as 0, not an error.
	Count(ctx context.Context) (int, error)

	// Metadata returns the collection metadata, or nil when the collection
	// has not been initialized.
	Metadata(ctx context.Context) (*CollectionMetadata, error)

	// Close releases file handles and flushes state. Idempotent.
	Close() error
}
