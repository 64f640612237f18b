package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonlabs/ragd/internal/vectorstore"
)

// ErrRetrieval wraps query-time embedding or search failures. Without
// retrieval the prompt cannot be grounded, so these fail fast.
var ErrRetrieval = errors.New("retrieval failed")

// State names the phase a query is in. Each query walks
// Idle -> Embedding -> Retrieving -> PromptAssembly -> Generating and ends
// in Completed or Failed; no state survives between queries.
type State string

const (
	StateIdle           State = "idle"
	StateEmbedding      State = "embedding"
	StateRetrieving     State = "retrieving"
	StatePromptAssembly State = "prompt_assembly"
	StateGenerating     State = "generating"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// QueryEmbedder is the slice of the embedding service the orchestrator
// needs.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config holds the orchestrator's retrieval and generation settings.
type Config struct {
	// MinScore is the relevance threshold below which retrieved passages
	// are discarded.
	MinScore float32

	// Limit caps how many passages ground a prompt. 0 uses the store's
	// default.
	Limit int

	// RAGOnly skips generation entirely and returns retrieved context.
	RAGOnly bool

	// RAGOnlyForced additionally keeps generation off even when retrieval
	// comes back empty, returning an explicit no-context response. Only
	// meaningful with RAGOnly.
	RAGOnlyForced bool

	// Chat carries per-request generation settings.
	Chat ChatOptions
}

// Source identifies one passage that grounded a response.
type Source struct {
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line,omitempty"`
	EndLine   int     `json:"end_line,omitempty"`
	Score     float32 `json:"score"`
}

// Response is a completed query.
type Response struct {
	// Content is the generated answer, or the assembled context in
	// retrieval-only mode.
	Content string `json:"content"`

	// Sources lists the passages that grounded the answer, in descending
	// relevance order.
	Sources []Source `json:"sources"`

	// Generated is false when the content came straight from retrieval
	// without a model call.
	Generated bool `json:"generated"`

	// Duration is the wall time of the whole pipeline.
	Duration time.Duration `json:"-"`
}

// Orchestrator runs the retrieval-augmented query pipeline. It holds no
// per-query state and is safe for concurrent use.
type Orchestrator struct {
	embedder QueryEmbedder
	store    vectorstore.Store
	chat     ChatClient
	logger   *zap.Logger
	cfg      Config
}

// New creates an orchestrator. chat may be nil when retrieval-only mode is
// enabled; it is required otherwise.
func New(cfg Config, embedder QueryEmbedder, store vectorstore.Store, chat ChatClient, logger *zap.Logger) (*Orchestrator, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if chat == nil && !cfg.RAGOnly {
		return nil, fmt.Errorf("%w: enable retrieval-only mode or configure a chat backend", ErrNoChatClient)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		embedder: embedder,
		store:    store,
		chat:     chat,
		logger:   logger,
		cfg:      cfg,
	}, nil
}

// Query answers a question in one shot.
func (o *Orchestrator) Query(ctx context.Context, question string) (*Response, error) {
	start := time.Now()

	results, err := o.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	o.transition(StatePromptAssembly, question)

	if o.skipGeneration(results) {
		o.transition(StateCompleted, question)
		return &Response{
			Content:  contextOnlyResponse(results),
			Sources:  sourcesOf(results),
			Duration: time.Since(start),
		}, nil
	}

	messages := assemblePrompt(question, results)

	o.transition(StateGenerating, question)
	resp, err := o.chat.Chat(ctx, messages, o.cfg.Chat)
	if err != nil {
		o.transition(StateFailed, question)
		return nil, err
	}

	o.transition(StateCompleted, question)
	return &Response{
		Content:   resp.Content,
		Sources:   sourcesOf(results),
		Generated: true,
		Duration:  time.Since(start),
	}, nil
}

// StreamQuery answers a question incrementally. onChunk receives the
// monotonically growing accumulated content; exactly one call has Done set
// and carries the terminal error, if any. At most one generation is in
// flight per call.
func (o *Orchestrator) StreamQuery(ctx context.Context, question string, onChunk func(StreamChunk)) error {
	results, err := o.retrieve(ctx, question)
	if err != nil {
		return err
	}

	o.transition(StatePromptAssembly, question)

	if o.skipGeneration(results) {
		o.transition(StateCompleted, question)
		onChunk(StreamChunk{Content: contextOnlyResponse(results)})
		onChunk(StreamChunk{Done: true})
		return nil
	}

	messages := assemblePrompt(question, results)

	o.transition(StateGenerating, question)
	chunks, err := o.chat.StreamChat(ctx, messages, o.cfg.Chat)
	if err != nil {
		o.transition(StateFailed, question)
		return err
	}

	var accumulated string
	for chunk := range chunks {
		if chunk.Done {
			if chunk.Err != nil {
				o.transition(StateFailed, question)
			} else {
				o.transition(StateCompleted, question)
			}
			// Mid-stream failures arrive as the terminal chunk rather than
			// an error return; the consumer cannot roll back partial output.
			onChunk(chunk)
			return nil
		}
		accumulated += chunk.Content
		onChunk(StreamChunk{Content: accumulated})
	}

	// Channel closed without a terminal marker; synthesize one.
	o.transition(StateCompleted, question)
	onChunk(StreamChunk{Done: true})
	return nil
}

// skipGeneration decides whether the response is built from retrieved
// context alone. In retrieval-only mode generation is skipped whenever
// passages were found; with zero passages, forced mode (or a missing chat
// backend) returns the no-context response while non-forced mode falls
// back to generation.
func (o *Orchestrator) skipGeneration(results []vectorstore.SearchResult) bool {
	if !o.cfg.RAGOnly {
		return false
	}
	if len(results) > 0 {
		return true
	}
	return o.cfg.RAGOnlyForced || o.chat == nil
}

// retrieve embeds the question and searches the store.
func (o *Orchestrator) retrieve(ctx context.Context, question string) ([]vectorstore.SearchResult, error) {
	o.transition(StateEmbedding, question)
	queryVector, err := o.embedder.EmbedQuery(ctx, question)
	if err != nil {
		o.transition(StateFailed, question)
		return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrieval, err)
	}

	o.transition(StateRetrieving, question)
	results, err := o.store.SimilaritySearch(ctx, queryVector, vectorstore.SearchOptions{
		Limit:    o.cfg.Limit,
		MinScore: o.cfg.MinScore,
	})
	if err != nil {
		o.transition(StateFailed, question)
		return nil, fmt.Errorf("%w: searching store: %v", ErrRetrieval, err)
	}

	return results, nil
}

func (o *Orchestrator) transition(state State, question string) {
	o.logger.Debug("query state",
		zap.String("state", string(state)),
		zap.Int("question_len", len(question)),
	)
}

func sourcesOf(results []vectorstore.SearchResult) []Source {
	sources := make([]Source, 0, len(results))
	for _, result := range results {
		path, _ := result.Metadata[vectorstore.MetaFilePath].(string)
		start, _ := metadataInt(result.Metadata[vectorstore.MetaStartLine])
		end, _ := metadataInt(result.Metadata[vectorstore.MetaEndLine])
		sources = append(sources, Source{
			FilePath:  path,
			StartLine: start,
			EndLine:   end,
			Score:     result.Score,
		})
	}
	return sources
}
