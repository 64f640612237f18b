package vectorstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewFileBackend(t *testing.T) {
	store, err := New(Config{
		Backend:   BackendFile,
		Path:      filepath.Join(t.TempDir(), "collection.json"),
		Dimension: 2,
	}, zap.NewNop())
	require.NoError(t, err)

	fs, ok := store.(*FileStore)
	require.True(t, ok)
	assert.NotNil(t, fs.metrics, "factory must attach store instrumentation")
}

func TestNewDefaultsToFileBackend(t *testing.T) {
	store, err := New(Config{
		Path:      filepath.Join(t.TempDir(), "collection.json"),
		Dimension: 2,
	}, zap.NewNop())
	require.NoError(t, err)
	_, ok := store.(*FileStore)
	assert.True(t, ok)
}

func TestNewChromemBackend(t *testing.T) {
	store, err := New(Config{
		Backend:   BackendChromem,
		Path:      t.TempDir(),
		Dimension: 2,
	}, zap.NewNop())
	require.NoError(t, err)

	cs, ok := store.(*ChromemStore)
	require.True(t, ok)
	assert.NotNil(t, cs.metrics, "factory must attach store instrumentation")
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "qdrant", Path: "x", Dimension: 2}, zap.NewNop())
	require.ErrorIs(t, err, ErrInvalidConfig)
}
