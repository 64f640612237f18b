package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

func TestToContentRoleMapping(t *testing.T) {
	content := toContent([]ChatMessage{
		{Role: RoleSystem, Content: "instructions"},
		{Role: RoleUser, Content: "question"},
		{Role: RoleAssistant, Content: "answer"},
	})
	require.Len(t, content, 3)

	assert.Equal(t, schema.ChatMessageTypeSystem, content[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, content[1].Role)
	assert.Equal(t, schema.ChatMessageTypeAI, content[2].Role)

	require.Len(t, content[1].Parts, 1)
	part, ok := content[1].Parts[0].(llms.TextContent)
	require.True(t, ok)
	assert.Equal(t, "question", part.Text)
}

func TestNewOpenAIChatClientRequiresModel(t *testing.T) {
	_, err := NewOpenAIChatClient(OpenAIChatConfig{})
	require.Error(t, err)
}

func TestNewOpenAIChatClientLocalServer(t *testing.T) {
	client, err := NewOpenAIChatClient(OpenAIChatConfig{
		Model:   "llama3",
		BaseURL: "http://127.0.0.1:11434/v1",
	})
	require.NoError(t, err)
	assert.Equal(t, "llama3", client.model)
}
