package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halcyonlabs/ragd/internal/vectorstore"
)

// stubEmbedder returns a fixed vector per text. An optional gate blocks
// Embed until released, for exercising the single-flight guard.
type stubEmbedder struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	gate    chan struct{}
}

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	started := e.started
	e.started = nil
	e.mu.Unlock()

	if started != nil {
		close(started)
	}
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc A() {}\n")
	writeFile(t, root, "docs/guide.md", "# Guide\n\nSome text.\n")
	writeFile(t, root, "node_modules/dep.js", "module.exports = {}\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.bin"), []byte{0xff, 0xfe, 0x00, 0x01}, 0o644))
	return root
}

func newTestIndexer(t *testing.T, root string, embedder Embedder) (*Service, vectorstore.Store) {
	t.Helper()
	store, err := vectorstore.NewFileStore(vectorstore.FileStoreConfig{
		Path:      filepath.Join(t.TempDir(), "collection.json"),
		Dimension: 2,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	svc, err := NewService(Config{Root: root}, embedder, store, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(svc.Dispose)
	return svc, store
}

func TestIndexWorkspace(t *testing.T) {
	ctx := context.Background()
	root := newTestWorkspace(t)
	svc, store := newTestIndexer(t, root, &stubEmbedder{})

	result, err := svc.IndexWorkspace(ctx, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 0, result.FilesSkipped)
	// a.go, docs/guide.md and the binary file; node_modules is skipped.
	assert.Equal(t, 3, result.FilesIndexed)
	assert.Equal(t, 2, result.ChunksIndexed, "binary file yields no chunks")
	assert.False(t, result.IndexedAt.IsZero())

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Passages carry provenance metadata and deterministic IDs.
	results, err := store.SimilaritySearch(ctx, []float32{1, 0}, vectorstore.SearchOptions{
		Filter: vectorstore.Filter{vectorstore.MetaFilePath: "a.go"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go:1-3", results[0].ID)
	assert.Equal(t, "go", results[0].Metadata[vectorstore.MetaLanguage])
	assert.Equal(t, 1, results[0].Metadata[vectorstore.MetaStartLine])
	assert.Equal(t, 3, results[0].Metadata[vectorstore.MetaEndLine])
}

func TestIndexWorkspaceReindexReplaces(t *testing.T) {
	ctx := context.Background()
	root := newTestWorkspace(t)
	svc, store := newTestIndexer(t, root, &stubEmbedder{})

	_, err := svc.IndexWorkspace(ctx, nil)
	require.NoError(t, err)
	_, err = svc.IndexWorkspace(ctx, nil)
	require.NoError(t, err)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "re-indexing must not accumulate stale passages")
}

func TestIndexWorkspaceSingleFlight(t *testing.T) {
	ctx := context.Background()
	root := newTestWorkspace(t)
	embedder := &stubEmbedder{
		started: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	svc, _ := newTestIndexer(t, root, embedder)

	started := embedder.started
	done := make(chan error, 1)
	go func() {
		_, err := svc.IndexWorkspace(ctx, nil)
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached the embedder")
	}

	_, err := svc.IndexWorkspace(ctx, nil)
	assert.ErrorIs(t, err, ErrIndexInProgress)

	close(embedder.gate)
	require.NoError(t, <-done)

	// Once the first run finishes, a new run is admitted.
	_, err = svc.IndexWorkspace(ctx, nil)
	require.NoError(t, err)
}

func TestIndexWorkspaceProgressReporting(t *testing.T) {
	ctx := context.Background()
	root := newTestWorkspace(t)
	svc, _ := newTestIndexer(t, root, &stubEmbedder{})

	type report struct {
		done, total int
		file        string
	}
	var reports []report
	reporter := ProgressFunc(func(done, total int, currentFile string) {
		reports = append(reports, report{done, total, currentFile})
	})

	_, err := svc.IndexWorkspace(ctx, reporter)
	require.NoError(t, err)

	require.NotEmpty(t, reports)
	assert.Equal(t, report{0, 3, ""}, reports[0], "initial report precedes the first file")
	last := reports[len(reports)-1]
	assert.Equal(t, last.done, last.total)
	assert.Len(t, reports, 4, "one report per file plus the initial one")
}

func TestIndexWorkspaceCancellation(t *testing.T) {
	root := newTestWorkspace(t)
	svc, _ := newTestIndexer(t, root, &stubEmbedder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.IndexWorkspace(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexWorkspaceMissingRoot(t *testing.T) {
	svc, _ := newTestIndexer(t, filepath.Join(t.TempDir(), "nope"), &stubEmbedder{})
	_, err := svc.IndexWorkspace(context.Background(), nil)
	assert.Error(t, err)
}

func TestUpdateConfiguration(t *testing.T) {
	ctx := context.Background()
	root := newTestWorkspace(t)
	svc, store := newTestIndexer(t, root, &stubEmbedder{})

	require.NoError(t, svc.UpdateConfiguration(Config{
		Root:            root,
		IncludePatterns: []string{"*.go"},
	}))

	_, err := svc.IndexWorkspace(ctx, nil)
	require.NoError(t, err)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only a.go matches the narrowed include patterns")

	err = svc.UpdateConfiguration(Config{Root: root, ExcludePatterns: []string{"[bad"}})
	assert.Error(t, err)
}

func TestRemoveFile(t *testing.T) {
	ctx := context.Background()
	root := newTestWorkspace(t)
	svc, store := newTestIndexer(t, root, &stubEmbedder{})

	_, err := svc.IndexWorkspace(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveFile(ctx, "a.go"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndexWorkspaceSkipsUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not apply to root")
	}

	ctx := context.Background()
	root := newTestWorkspace(t)
	writeFile(t, root, "locked/secret.go", "package locked\n")
	require.NoError(t, os.Chmod(filepath.Join(root, "locked"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(root, "locked"), 0o755) })

	svc, store := newTestIndexer(t, root, &stubEmbedder{})

	result, err := svc.IndexWorkspace(ctx, nil)
	require.NoError(t, err, "an unreadable subdirectory must not abort the run")
	assert.Equal(t, 3, result.FilesIndexed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
