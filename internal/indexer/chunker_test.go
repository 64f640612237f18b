package indexer

import (
	"fmt"
	"strings"
	"testing"
)

func makeLines(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return b.String()
}

func TestChunkLinesWindows(t *testing.T) {
	chunks := ChunkLines(makeLines(100), 40, 10)

	// step = 30: windows at lines 1-40, 31-70, 61-100.
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	wants := []struct{ start, end int }{
		{1, 40}, {31, 70}, {61, 100},
	}
	for i, want := range wants {
		if chunks[i].StartLine != want.start || chunks[i].EndLine != want.end {
			t.Errorf("chunk %d spans %d-%d, want %d-%d",
				i, chunks[i].StartLine, chunks[i].EndLine, want.start, want.end)
		}
	}

	// Consecutive chunks share the overlap region.
	if !strings.Contains(chunks[0].Content, "line 31") || !strings.Contains(chunks[1].Content, "line 31") {
		t.Error("line 31 should appear in both chunk 0 and chunk 1")
	}
}

func TestChunkLinesShortFile(t *testing.T) {
	chunks := ChunkLines(makeLines(5), 40, 10)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != 5 {
		t.Errorf("chunk spans %d-%d, want 1-5", chunks[0].StartLine, chunks[0].EndLine)
	}
}

func TestChunkLinesNoTrailingNewline(t *testing.T) {
	chunks := ChunkLines("one\ntwo\nthree", 40, 10)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].EndLine != 3 {
		t.Errorf("EndLine = %d, want 3", chunks[0].EndLine)
	}
	if chunks[0].Content != "one\ntwo\nthree" {
		t.Errorf("unexpected content %q", chunks[0].Content)
	}
}

func TestChunkLinesEmptyAndWhitespace(t *testing.T) {
	if chunks := ChunkLines("", 40, 10); len(chunks) != 0 {
		t.Errorf("empty text produced %d chunks", len(chunks))
	}
	if chunks := ChunkLines("\n\n   \n\t\n", 40, 10); len(chunks) != 0 {
		t.Errorf("whitespace-only text produced %d chunks", len(chunks))
	}
}

func TestChunkLinesBadParameters(t *testing.T) {
	// Degenerate window/overlap fall back to safe values instead of
	// looping forever.
	chunks := ChunkLines(makeLines(10), 0, 0)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}

	chunks = ChunkLines(makeLines(10), 4, 4)
	if len(chunks) == 0 {
		t.Fatal("overlap >= window should still chunk")
	}
	if chunks[0].EndLine != 4 {
		t.Errorf("first chunk EndLine = %d, want 4", chunks[0].EndLine)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"src/app.TS", "typescript"},
		{"README.md", "markdown"},
		{"schema.sql", "sql"},
		{"Makefile", ""},
		{"noext", ""},
	}
	for _, tt := range tests {
		if got := detectLanguage(tt.path); got != tt.want {
			t.Errorf("detectLanguage(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
