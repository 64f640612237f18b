// Package indexer maintains the vector store as the authoritative
// reflection of the current workspace.
//
// An indexing run walks the workspace, filters files by include/exclude
// glob patterns and size, chunks each file into line-window passages,
// embeds them through the embedding service, and replaces the file's
// passages in the store (delete-by-file, then insert). A single file
// failing to read, chunk or embed is logged and skipped; a store write
// failure or embedding backend outage aborts the run.
//
// Exactly one run may be active at a time. The flat-file store has no
// internal write locking, so concurrent runs would corrupt it; the
// single-flight guard here is a correctness invariant, not an
// optimization.
package indexer
