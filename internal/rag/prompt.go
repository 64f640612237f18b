package rag

import (
	"fmt"
	"strings"

	"github.com/halcyonlabs/ragd/internal/vectorstore"
)

const systemInstruction = `You are a coding assistant answering questions about a workspace. ` +
	`Ground your answer in the context passages provided. Each passage is labeled ` +
	`with its source file and line range; cite them when relevant. If the context ` +
	`does not contain the answer, say so instead of guessing.`

// noContextMessage is returned in retrieval-only mode when nothing scored
// above the relevance threshold.
const noContextMessage = "No relevant context found in the indexed workspace for this question."

// assemblePrompt builds the grounded conversation: a system instruction,
// then the retrieved passages as delimited context blocks ahead of the
// user's question.
func assemblePrompt(question string, results []vectorstore.SearchResult) []ChatMessage {
	var b strings.Builder
	b.WriteString("Context passages from the workspace:\n\n")
	for _, result := range results {
		b.WriteString(formatContextBlock(result))
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)

	return []ChatMessage{
		{Role: RoleSystem, Content: systemInstruction},
		{Role: RoleUser, Content: b.String()},
	}
}

// formatContextBlock renders one retrieved passage with its provenance.
func formatContextBlock(result vectorstore.SearchResult) string {
	var b strings.Builder
	b.WriteString("--- ")
	b.WriteString(sourceLabel(result))
	b.WriteString(" ---\n")
	b.WriteString(result.Content)
	if !strings.HasSuffix(result.Content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("--- end ---\n")
	return b.String()
}

// sourceLabel formats "path/to/file.go:10-49" from passage metadata,
// degrading gracefully when line numbers are missing.
func sourceLabel(result vectorstore.SearchResult) string {
	path, _ := result.Metadata[vectorstore.MetaFilePath].(string)
	if path == "" {
		path = result.ID
	}
	start, startOK := metadataInt(result.Metadata[vectorstore.MetaStartLine])
	end, endOK := metadataInt(result.Metadata[vectorstore.MetaEndLine])
	if startOK && endOK {
		return fmt.Sprintf("%s:%d-%d", path, start, end)
	}
	return path
}

// metadataInt coerces metadata numbers, which arrive as int before a
// persistence round-trip and float64 after one.
func metadataInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}

// contextOnlyResponse renders retrieved passages without generation, for
// retrieval-only mode.
func contextOnlyResponse(results []vectorstore.SearchResult) string {
	if len(results) == 0 {
		return noContextMessage
	}
	var b strings.Builder
	b.WriteString("Relevant passages from the workspace:\n\n")
	for _, result := range results {
		b.WriteString(formatContextBlock(result))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
