// Package vectorstore provides durable storage and brute-force similarity
// search over embedded workspace passages.
//
// A collection is a set of documents, each carrying a fixed-dimension
// embedding plus freeform metadata. Two backends implement the Store
// interface:
//
//   - FileStore: a single JSON file per collection, rewritten atomically on
//     every mutation (write-to-temp, then rename). This is the default and
//     the authoritative on-disk format.
//   - ChromemStore: the embedded chromem-go database, for users who prefer
//     its gob persistence and compression.
//
// Search is exact: every stored vector is compared against the query with
// sign-normalized cosine similarity, O(N·D) per query. That bounds the
// system to workspace-scale corpora (tens of thousands of passages), which
// is the intended deployment.
//
// Stores perform no internal locking beyond a single mutation mutex. All
// writers must be serialized in front of the store; the indexer's
// single-flight guard provides that serialization.
package vectorstore
