package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChromemStore(t *testing.T, dir string) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{
		Path:      dir,
		Dimension: 2,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestParseMetadataValue(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want interface{}
	}{
		{"int", "42", 42},
		{"negative int", "-7", -7},
		{"float", "0.75", 0.75},
		{"bool true", "true", true},
		{"bool false", "false", false},
		{"plain string", "main.go", "main.go"},
		{"commit hash", "a1b2c3d", "a1b2c3d"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseMetadataValue(tt.in); got != tt.want {
				t.Errorf("parseMetadataValue(%q) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestChromemMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestChromemStore(t, t.TempDir())

	err := store.AddDocuments(ctx, []DocumentWithEmbedding{{
		Document: Document{
			ID:      "main.go:10-49",
			Content: "func main() {}",
			Metadata: map[string]interface{}{
				MetaFilePath:  "main.go",
				MetaStartLine: 10,
				MetaEndLine:   49,
				MetaLanguage:  "go",
			},
		},
		Embedding: []float32{1, 0},
	}})
	require.NoError(t, err)

	results, err := store.SimilaritySearch(ctx, []float32{1, 0}, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Line numbers must come back as numbers, not the strings chromem
	// stores internally.
	assert.Equal(t, 10, results[0].Metadata[MetaStartLine])
	assert.Equal(t, 49, results[0].Metadata[MetaEndLine])
	assert.Equal(t, "main.go", results[0].Metadata[MetaFilePath])
	assert.Equal(t, "go", results[0].Metadata[MetaLanguage])
}

func TestChromemMetadataCreatedPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := newTestChromemStore(t, dir)
	meta, err := store.Metadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.False(t, meta.Created.IsZero(), "creation timestamp must be recorded")
	assert.Equal(t, 2, meta.EmbeddingDimension)
	require.NoError(t, store.Close())

	reopened := newTestChromemStore(t, dir)
	meta2, err := reopened.Metadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta2)
	assert.Equal(t, meta.Created, meta2.Created, "creation timestamp must survive reopen")
}

func TestChromemReopenDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	store := newTestChromemStore(t, dir)
	require.NoError(t, store.Close())

	other, err := NewChromemStore(ChromemConfig{Path: dir, Dimension: 3}, zap.NewNop())
	require.NoError(t, err)
	err = other.Initialize(context.Background())
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemDeleteByFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestChromemStore(t, t.TempDir())

	err := store.AddDocuments(ctx, []DocumentWithEmbedding{
		{Document: Document{ID: "a:1-3", Content: "alpha", Metadata: map[string]interface{}{MetaFilePath: "a.go"}}, Embedding: []float32{1, 0}},
		{Document: Document{ID: "b:1-3", Content: "beta", Metadata: map[string]interface{}{MetaFilePath: "b.go"}}, Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)

	removed, err := store.DeleteDocuments(ctx, Filter{MetaFilePath: "a.go"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
