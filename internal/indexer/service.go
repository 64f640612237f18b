package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/halcyonlabs/ragd/internal/embeddings"
	"github.com/halcyonlabs/ragd/internal/vectorstore"
)

// ErrIndexInProgress is returned when an indexing run is already active.
// Callers treat it as a benign no-op, not a failure.
var ErrIndexInProgress = errors.New("indexing already in progress")

// Embedder is the slice of the embedding service the indexer needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Service drives workspace indexing runs.
type Service struct {
	embedder Embedder
	store    vectorstore.Store
	logger   *zap.Logger
	scanner  *secretScanner

	mu     sync.Mutex
	cfg    Config
	cancel context.CancelFunc

	indexing atomic.Bool
	wg       sync.WaitGroup
}

// NewService creates an indexing service. The configuration can be changed
// later with UpdateConfiguration.
func NewService(cfg Config, embedder Embedder, store vectorstore.Store, logger *zap.Logger) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := validatePatterns(cfg.IncludePatterns); err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	if err := validatePatterns(cfg.ExcludePatterns); err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	cfg.applyDefaults()

	var scanner *secretScanner
	if cfg.ScanSecrets {
		var err error
		scanner, err = newSecretScanner()
		if err != nil {
			return nil, err
		}
	}

	return &Service{
		embedder: embedder,
		store:    store,
		logger:   logger,
		scanner:  scanner,
		cfg:      cfg,
	}, nil
}

// UpdateConfiguration re-reads include/exclude patterns and chunking
// parameters without a restart. An in-flight run keeps the configuration
// it started with.
func (s *Service) UpdateConfiguration(cfg Config) error {
	if err := validatePatterns(cfg.IncludePatterns); err != nil {
		return fmt.Errorf("invalid include pattern: %w", err)
	}
	if err := validatePatterns(cfg.ExcludePatterns); err != nil {
		return fmt.Errorf("invalid exclude pattern: %w", err)
	}
	cfg.applyDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.ScanSecrets && s.scanner == nil {
		scanner, err := newSecretScanner()
		if err != nil {
			return err
		}
		s.scanner = scanner
	}
	s.cfg = cfg
	return nil
}

// InProgress reports whether an indexing run is currently active.
func (s *Service) InProgress() bool {
	return s.indexing.Load()
}

// IndexWorkspace walks the workspace and rebuilds its passages in the
// vector store. reporter may be nil.
//
// Only one run may be active at a time; a concurrent call returns
// ErrIndexInProgress without touching the store. Per-file failures are
// logged and skipped; store write failures and embedding backend outages
// abort the run.
func (s *Service) IndexWorkspace(ctx context.Context, reporter ProgressReporter) (*Result, error) {
	if !s.indexing.CompareAndSwap(false, true) {
		return nil, ErrIndexInProgress
	}
	defer s.indexing.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	cfg := s.cfg
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", root)
	}
	if cfg.MaxFileSize > maxMaxFileSize {
		return nil, fmt.Errorf("max file size cannot exceed %d bytes", int64(maxMaxFileSize))
	}

	result := &Result{
		RunID: uuid.NewString(),
		Root:  root,
	}
	gitCtx := resolveGitContext(root)
	result.Branch = gitCtx.Branch
	result.Commit = gitCtx.Commit

	logger := s.logger.With(zap.String("run_id", result.RunID))
	logger.Info("indexing workspace",
		zap.String("root", root),
		zap.String("branch", gitCtx.Branch),
	)

	files, err := s.enumerate(ctx, root, cfg)
	if err != nil {
		return nil, err
	}

	if reporter != nil {
		reporter.Report(0, len(files), "")
	}

	for i, relPath := range files {
		if err := ctx.Err(); err != nil {
			logger.Info("indexing cancelled", zap.Int("files_done", i))
			return nil, err
		}

		if err := s.indexFile(ctx, root, relPath, cfg, gitCtx, result); err != nil {
			// Backend and store failures mean every subsequent file would
			// fail the same way; abort instead of logging N copies.
			if errors.Is(err, embeddings.ErrBackendUnavailable) ||
				errors.Is(err, vectorstore.ErrStoreIO) ||
				errors.Is(err, vectorstore.ErrDimensionMismatch) ||
				errors.Is(err, vectorstore.ErrStoreClosed) {
				return nil, fmt.Errorf("indexing %s: %w", relPath, err)
			}
			logger.Warn("skipping file", zap.String("file", relPath), zap.Error(err))
			result.FilesSkipped++
		} else {
			result.FilesIndexed++
		}

		if reporter != nil {
			reporter.Report(i+1, len(files), relPath)
		}
	}

	result.IndexedAt = time.Now()
	logger.Info("indexing complete",
		zap.Int("files_indexed", result.FilesIndexed),
		zap.Int("files_skipped", result.FilesSkipped),
		zap.Int("chunks_indexed", result.ChunksIndexed),
		zap.Int("chunks_suppressed", result.ChunksSuppressed),
	)
	return result, nil
}

// enumerate walks the tree collecting relative paths of indexable files.
func (s *Service) enumerate(ctx context.Context, root string, cfg Config) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// An unreadable directory skips its subtree; the rest of the
			// workspace still indexes.
			if d != nil && d.IsDir() {
				s.logger.Warn("skipping unreadable directory",
					zap.String("path", path), zap.Error(err))
				return filepath.SkipDir
			}
			s.logger.Warn("skipping unreadable entry",
				zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if defaultSkipDirs[d.Name()] && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		info, err := d.Info()
		if err != nil {
			return nil // file vanished mid-walk
		}
		if shouldInclude(relPath, info, cfg) {
			files = append(files, relPath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}
	return files, nil
}

// indexFile replaces one file's passages in the store.
func (s *Service) indexFile(ctx context.Context, root, relPath string, cfg Config, gitCtx gitContext, result *Result) error {
	content, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	if !utf8.Valid(content) {
		// Binary file; nothing to embed. Remove any stale passages in case
		// a text file was replaced by a binary one.
		_, err := s.store.DeleteDocuments(ctx, vectorstore.Filter{vectorstore.MetaFilePath: relPath})
		return err
	}

	chunks := ChunkLines(string(content), cfg.WindowLines, cfg.OverlapLines)

	if s.scanner != nil && cfg.ScanSecrets {
		kept := chunks[:0]
		for _, chunk := range chunks {
			if s.scanner.hasSecrets(chunk.Content) {
				result.ChunksSuppressed++
				continue
			}
			kept = append(kept, chunk)
		}
		chunks = kept
	}

	docs := make([]vectorstore.DocumentWithEmbedding, 0, len(chunks))
	for batchStart := 0; batchStart < len(chunks); batchStart += cfg.EmbedBatchSize {
		batchEnd := batchStart + cfg.EmbedBatchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks: %w", err)
		}

		for i, chunk := range batch {
			metadata := map[string]interface{}{
				vectorstore.MetaFilePath:  relPath,
				vectorstore.MetaStartLine: chunk.StartLine,
				vectorstore.MetaEndLine:   chunk.EndLine,
			}
			if lang := detectLanguage(relPath); lang != "" {
				metadata[vectorstore.MetaLanguage] = lang
			}
			if gitCtx.Branch != "" {
				metadata[vectorstore.MetaBranch] = gitCtx.Branch
			}
			if gitCtx.Commit != "" {
				metadata[vectorstore.MetaCommit] = gitCtx.Commit
			}
			docs = append(docs, vectorstore.DocumentWithEmbedding{
				Document: vectorstore.Document{
					ID:       fmt.Sprintf("%s:%d-%d", relPath, chunk.StartLine, chunk.EndLine),
					Content:  chunk.Content,
					Metadata: metadata,
				},
				Embedding: vectors[i],
			})
		}
	}

	// Replace, don't accumulate: stale passages from a previous revision of
	// the file must not survive re-indexing.
	if _, err := s.store.DeleteDocuments(ctx, vectorstore.Filter{vectorstore.MetaFilePath: relPath}); err != nil {
		return fmt.Errorf("deleting stale passages: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}
	if err := s.store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("adding passages: %w", err)
	}
	result.ChunksIndexed += len(docs)
	return nil
}

// RemoveFile deletes a file's passages from the store. Used by the watcher
// when a file is deleted.
func (s *Service) RemoveFile(ctx context.Context, relPath string) error {
	_, err := s.store.DeleteDocuments(ctx, vectorstore.Filter{vectorstore.MetaFilePath: relPath})
	return err
}

// Dispose cancels any in-flight run's further writes (best-effort; an
// in-flight embedding call completes and its result is discarded) and
// waits for the run to unwind.
func (s *Service) Dispose() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
