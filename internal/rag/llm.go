package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

var (
	// ErrNoChatClient is returned when generation is requested but no chat
	// client is configured.
	ErrNoChatClient = errors.New("no chat client configured")

	// ErrGeneration wraps chat backend failures.
	ErrGeneration = errors.New("generation failed")
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    Role
	Content string
}

// ChatOptions tune a single generation request. Zero values fall back to
// the backend's defaults.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// ChatResponse is a completed, non-streamed generation.
type ChatResponse struct {
	Content string
}

// StreamChunk is one increment of a streamed generation. Exactly one chunk
// per stream has Done set; it carries the terminal error, if any, and no
// content.
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}

// ChatClient is the generation capability the orchestrator depends on.
// Implementations must be safe for concurrent use.
type ChatClient interface {
	// Chat generates a complete response for the conversation.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*ChatResponse, error)

	// StreamChat generates a response incrementally. The returned channel
	// is closed after the terminal chunk is delivered.
	StreamChat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (<-chan StreamChunk, error)
}

// OpenAIChatConfig configures an OpenAI-compatible chat backend.
type OpenAIChatConfig struct {
	// Model is the chat model name, e.g. "gpt-4o-mini".
	Model string

	// BaseURL overrides the API endpoint for compatible servers
	// (Ollama, vLLM, LiteLLM). Empty uses the OpenAI default.
	BaseURL string

	// APIKey authenticates requests. Local servers usually accept any value.
	APIKey string
}

// OpenAIChatClient implements ChatClient against any OpenAI-compatible
// chat completion endpoint.
type OpenAIChatClient struct {
	llm   *openai.LLM
	model string
}

// NewOpenAIChatClient creates a chat client.
func NewOpenAIChatClient(cfg OpenAIChatConfig) (*OpenAIChatClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("chat model is required")
	}

	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	token := cfg.APIKey
	if token == "" {
		// The client constructor requires a token even for local servers
		// that ignore authentication.
		token = "placeholder"
	}
	opts = append(opts, openai.WithToken(token))

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}
	return &OpenAIChatClient{llm: llm, model: cfg.Model}, nil
}

// Chat implements ChatClient.
func (c *OpenAIChatClient) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*ChatResponse, error) {
	resp, err := c.llm.GenerateContent(ctx, toContent(messages), c.callOptions(opts)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrGeneration)
	}
	return &ChatResponse{Content: resp.Choices[0].Content}, nil
}

// StreamChat implements ChatClient.
func (c *OpenAIChatClient) StreamChat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk, 16)

	callOpts := c.callOptions(opts)
	callOpts = append(callOpts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		select {
		case out <- StreamChunk{Content: string(chunk)}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	go func() {
		defer close(out)
		_, err := c.llm.GenerateContent(ctx, toContent(messages), callOpts...)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		out <- StreamChunk{Done: true, Err: err}
	}()

	return out, nil
}

func (c *OpenAIChatClient) callOptions(opts ChatOptions) []llms.CallOption {
	callOpts := []llms.CallOption{llms.WithModel(c.model)}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	return callOpts
}

func toContent(messages []ChatMessage) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		var role schema.ChatMessageType
		switch msg.Role {
		case RoleSystem:
			role = schema.ChatMessageTypeSystem
		case RoleAssistant:
			role = schema.ChatMessageTypeAI
		default:
			role = schema.ChatMessageTypeHuman
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	return content
}
