package rag

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halcyonlabs/ragd/internal/vectorstore"
)

// stubEmbedder returns a fixed query vector, or an error.
type stubEmbedder struct {
	vector []float32
	err    error
}

func (e *stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return e.vector, e.err
}

// stubChat records requests and plays back canned output.
type stubChat struct {
	calls    int
	messages []ChatMessage
	reply    string
	chunks   []string
	err      error
}

func (c *stubChat) Chat(_ context.Context, messages []ChatMessage, _ ChatOptions) (*ChatResponse, error) {
	c.calls++
	c.messages = messages
	if c.err != nil {
		return nil, c.err
	}
	return &ChatResponse{Content: c.reply}, nil
}

func (c *stubChat) StreamChat(_ context.Context, messages []ChatMessage, _ ChatOptions) (<-chan StreamChunk, error) {
	c.calls++
	c.messages = messages
	out := make(chan StreamChunk, len(c.chunks)+1)
	for _, chunk := range c.chunks {
		out <- StreamChunk{Content: chunk}
	}
	out <- StreamChunk{Done: true, Err: c.err}
	close(out)
	return out, nil
}

func newTestStore(t *testing.T, docs ...vectorstore.DocumentWithEmbedding) vectorstore.Store {
	t.Helper()
	store, err := vectorstore.NewFileStore(vectorstore.FileStoreConfig{
		Path:      filepath.Join(t.TempDir(), "collection.json"),
		Dimension: 2,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	if len(docs) > 0 {
		require.NoError(t, store.AddDocuments(context.Background(), docs))
	}
	return store
}

func passage(id, content, path string, start, end int, embedding []float32) vectorstore.DocumentWithEmbedding {
	return vectorstore.DocumentWithEmbedding{
		Document: vectorstore.Document{
			ID:      id,
			Content: content,
			Metadata: map[string]interface{}{
				vectorstore.MetaFilePath:  path,
				vectorstore.MetaStartLine: start,
				vectorstore.MetaEndLine:   end,
			},
		},
		Embedding: embedding,
	}
}

func TestNewRequiresChatUnlessRAGOnly(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := newTestStore(t)

	_, err := New(Config{}, embedder, store, nil, nil)
	assert.ErrorIs(t, err, ErrNoChatClient)

	_, err = New(Config{RAGOnly: true}, embedder, store, nil, nil)
	assert.NoError(t, err)
}

func TestQueryGeneratesGroundedAnswer(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := newTestStore(t,
		passage("p1", "func Retry() {}", "upload/retry.go", 10, 20, []float32{1, 0}),
	)
	chat := &stubChat{reply: "Retry lives in upload/retry.go."}

	orch, err := New(Config{MinScore: 0.1}, embedder, store, chat, zap.NewNop())
	require.NoError(t, err)

	resp, err := orch.Query(context.Background(), "where is the retry logic?")
	require.NoError(t, err)

	assert.Equal(t, "Retry lives in upload/retry.go.", resp.Content)
	assert.True(t, resp.Generated)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "upload/retry.go", resp.Sources[0].FilePath)
	assert.Equal(t, 10, resp.Sources[0].StartLine)

	// The prompt grounds the question in the retrieved passage.
	require.Len(t, chat.messages, 2)
	assert.Equal(t, RoleSystem, chat.messages[0].Role)
	user := chat.messages[1].Content
	assert.Contains(t, user, "upload/retry.go:10-20")
	assert.Contains(t, user, "func Retry() {}")
	assert.Contains(t, user, "Question: where is the retry logic?")
}

func TestQueryEmbedFailureFailsFast(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("backend down")}
	store := newTestStore(t)
	chat := &stubChat{}

	orch, err := New(Config{}, embedder, store, chat, zap.NewNop())
	require.NoError(t, err)

	_, err = orch.Query(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrRetrieval)
	assert.Equal(t, 0, chat.calls, "generation must not run without grounding")
}

func TestQueryRAGOnlyReturnsContext(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := newTestStore(t,
		passage("p1", "relevant passage", "a.go", 1, 5, []float32{1, 0}),
	)
	chat := &stubChat{}

	orch, err := New(Config{RAGOnly: true}, embedder, store, chat, zap.NewNop())
	require.NoError(t, err)

	resp, err := orch.Query(context.Background(), "question")
	require.NoError(t, err)

	assert.False(t, resp.Generated)
	assert.Contains(t, resp.Content, "relevant passage")
	assert.Contains(t, resp.Content, "a.go:1-5")
	assert.Equal(t, 0, chat.calls)
}

func TestQueryRAGOnlyForcedZeroHits(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := newTestStore(t,
		passage("p1", "orthogonal content", "b.go", 1, 5, []float32{0, 1}),
	)
	chat := &stubChat{}

	orch, err := New(Config{
		RAGOnly:       true,
		RAGOnlyForced: true,
		MinScore:      0.5,
	}, embedder, store, chat, zap.NewNop())
	require.NoError(t, err)

	resp, err := orch.Query(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, noContextMessage, resp.Content)
	assert.False(t, resp.Generated)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, 0, chat.calls, "forced mode never invokes the generative backend")
}

func TestQueryRAGOnlyNotForcedFallsBack(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := newTestStore(t)
	chat := &stubChat{reply: "generated without context"}

	orch, err := New(Config{RAGOnly: true}, embedder, store, chat, zap.NewNop())
	require.NoError(t, err)

	resp, err := orch.Query(context.Background(), "question")
	require.NoError(t, err)

	assert.True(t, resp.Generated)
	assert.Equal(t, 1, chat.calls)
}

func TestStreamQueryAccumulates(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := newTestStore(t,
		passage("p1", "ctx", "a.go", 1, 2, []float32{1, 0}),
	)
	chat := &stubChat{chunks: []string{"Hel", "lo ", "world"}}

	orch, err := New(Config{}, embedder, store, chat, zap.NewNop())
	require.NoError(t, err)

	var received []StreamChunk
	err = orch.StreamQuery(context.Background(), "q", func(chunk StreamChunk) {
		received = append(received, chunk)
	})
	require.NoError(t, err)

	require.Len(t, received, 4)
	assert.Equal(t, "Hel", received[0].Content)
	assert.Equal(t, "Hel"+"lo ", received[1].Content)
	assert.Equal(t, "Hello world", received[2].Content)

	terminal := received[3]
	assert.True(t, terminal.Done)
	assert.NoError(t, terminal.Err)
	for _, chunk := range received[:3] {
		assert.False(t, chunk.Done)
	}
}

func TestStreamQueryErrorArrivesAsTerminalChunk(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := newTestStore(t,
		passage("p1", "ctx", "a.go", 1, 2, []float32{1, 0}),
	)
	chat := &stubChat{
		chunks: []string{"partial "},
		err:    errors.New("connection reset"),
	}

	orch, err := New(Config{}, embedder, store, chat, zap.NewNop())
	require.NoError(t, err)

	var received []StreamChunk
	err = orch.StreamQuery(context.Background(), "q", func(chunk StreamChunk) {
		received = append(received, chunk)
	})
	require.NoError(t, err, "mid-stream failures are in-band, not an error return")

	require.Len(t, received, 2)
	assert.Equal(t, "partial ", received[0].Content)
	assert.True(t, received[1].Done)
	assert.ErrorContains(t, received[1].Err, "connection reset")
}

func TestStreamQueryRAGOnly(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := newTestStore(t,
		passage("p1", "passage text", "a.go", 1, 2, []float32{1, 0}),
	)

	orch, err := New(Config{RAGOnly: true}, embedder, store, nil, zap.NewNop())
	require.NoError(t, err)

	var received []StreamChunk
	err = orch.StreamQuery(context.Background(), "q", func(chunk StreamChunk) {
		received = append(received, chunk)
	})
	require.NoError(t, err)

	require.Len(t, received, 2)
	assert.Contains(t, received[0].Content, "passage text")
	assert.True(t, received[1].Done)
}

func TestQueryLimitRespected(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := newTestStore(t,
		passage("p1", "one", "a.go", 1, 2, []float32{1, 0}),
		passage("p2", "two", "b.go", 1, 2, []float32{0.9, 0.1}),
		passage("p3", "three", "c.go", 1, 2, []float32{0.8, 0.2}),
	)

	orch, err := New(Config{RAGOnly: true, Limit: 2}, embedder, store, nil, zap.NewNop())
	require.NoError(t, err)

	resp, err := orch.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 2)
	assert.Contains(t, resp.Content, strings.TrimSpace("one"))
	assert.NotContains(t, resp.Content, "three")
}
