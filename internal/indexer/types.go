package indexer

import "time"

// Config configures workspace indexing. It can be swapped at runtime via
// Service.UpdateConfiguration without a restart.
type Config struct {
	// Root is the workspace directory to index.
	Root string

	// IncludePatterns are glob patterns for files to include
	// (e.g. ["*.go", "*.md"]). Empty includes all files.
	IncludePatterns []string

	// ExcludePatterns are glob patterns for files to exclude
	// (e.g. ["*.log", "vendor/**"]). Takes precedence over includes.
	ExcludePatterns []string

	// MaxFileSize is the maximum file size in bytes to index.
	// Default 1MB, maximum 10MB.
	MaxFileSize int64

	// WindowLines is the chunk window height in lines. Default 40.
	WindowLines int

	// OverlapLines is how many lines consecutive chunks share. Default 10.
	OverlapLines int

	// EmbedBatchSize caps how many chunks are embedded per backend call.
	// Default 64.
	EmbedBatchSize int

	// ScanSecrets skips chunks containing detected secrets. Default off.
	ScanSecrets bool
}

const (
	defaultMaxFileSize    = 1 << 20
	maxMaxFileSize        = 10 << 20
	defaultWindowLines    = 40
	defaultOverlapLines   = 10
	defaultEmbedBatchSize = 64
)

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.MaxFileSize == 0 {
		c.MaxFileSize = defaultMaxFileSize
	}
	if c.WindowLines <= 0 {
		c.WindowLines = defaultWindowLines
	}
	if c.OverlapLines < 0 || c.OverlapLines >= c.WindowLines {
		c.OverlapLines = defaultOverlapLines
		if c.OverlapLines >= c.WindowLines {
			c.OverlapLines = c.WindowLines / 4
		}
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = defaultEmbedBatchSize
	}
}

// Result contains the outcome of one indexing run.
type Result struct {
	// RunID identifies this run in logs.
	RunID string

	// Root is the workspace directory that was indexed.
	Root string

	// Branch is the git branch associated with the indexed files, if the
	// workspace is a git repository.
	Branch string

	// Commit is the git commit hash at index time, if available.
	Commit string

	// FilesIndexed is the number of files successfully indexed.
	FilesIndexed int

	// FilesSkipped counts files that failed to read, chunk or embed and
	// were skipped.
	FilesSkipped int

	// ChunksIndexed is the number of passages written to the store.
	ChunksIndexed int

	// ChunksSuppressed counts chunks withheld because of detected secrets.
	ChunksSuppressed int

	// IndexedAt is when the run completed.
	IndexedAt time.Time
}

// ProgressReporter receives incremental progress during a run.
//
// Report is called once before the first file (done=0) and once per
// processed file. Implementations must be fast; the run blocks on them.
type ProgressReporter interface {
	Report(done, total int, currentFile string)
}

// ProgressFunc adapts a function to the ProgressReporter interface.
type ProgressFunc func(done, total int, currentFile string)

// Report implements ProgressReporter.
func (f ProgressFunc) Report(done, total int, currentFile string) {
	f(done, total, currentFile)
}
