package vectorstore

import "time"

// Well-known metadata keys written by the indexer. Filters may address these
// directly, or any freeform key a caller attached.
const (
	MetaFilePath  = "file_path"
	MetaStartLine = "start_line"
	MetaEndLine   = "end_line"
	MetaLanguage  = "language"
	MetaBranch    = "git_branch"
	MetaCommit    = "git_commit"
)

// Document is a stored passage. Immutable once added; ID is unique within a
// collection.
type Document struct {
	// ID is the unique identifier for the document.
	ID string `json:"id"`

	// Content is the passage text.
	Content string `json:"content"`

	// Metadata contains additional key-value pairs for filtering.
	// Common fields: file_path, start_line, end_line, language.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DocumentWithEmbedding pairs a document with its embedding vector. Every
// vector in a collection must have exactly the collection's configured
// dimension.
type DocumentWithEmbedding struct {
	Document
	Embedding []float32 `json:"embedding"`
}

// SearchResult is a document scored against a query vector. Score is in
// [0, 1]; higher means more similar.
type SearchResult struct {
	Document `json:"document"`
	Score    float32 `json:"score"`
}

// CollectionMetadata is written once at collection creation and never
// mutated. It validates compatibility of future writes.
type CollectionMetadata struct {
	// EmbeddingDimension is the fixed vector dimension for the collection.
	EmbeddingDimension int `json:"embedding_dimension"`

	// Created is the collection creation timestamp.
	Created time.Time `json:"created"`

	// Version is the on-disk format version.
	Version string `json:"version"`
}

// SearchOptions configures a similarity search.
type SearchOptions struct {
	// Limit is the maximum number of results. Defaults to 10 when <= 0.
	Limit int

	// MinScore excludes results scoring below the threshold.
	MinScore float32

	// Filter restricts results to documents whose metadata matches every
	// clause. See Filter for matching semantics.
	Filter Filter
}

// DefaultSearchLimit is applied when SearchOptions.Limit is not positive.
const DefaultSearchLimit = 10
