package indexer

import (
	"path/filepath"
	"strings"
)

// Chunk is a contiguous line-range excerpt of a source file, the unit of
// embedding and retrieval. Line numbers are 1-indexed and inclusive.
type Chunk struct {
	Content   string
	StartLine int
	EndLine   int
}

// ChunkLines splits text into overlapping line windows.
//
// Each chunk spans up to window lines; consecutive chunks share overlap
// lines of context so passages that straddle a window boundary remain
// retrievable. Chunks that are entirely whitespace are dropped. The final
// chunk may be shorter than window.
func ChunkLines(text string, window, overlap int) []Chunk {
	if window <= 0 {
		window = defaultWindowLines
	}
	if overlap < 0 || overlap >= window {
		overlap = 0
	}

	lines := strings.Split(text, "\n")
	// A trailing newline produces one empty trailing element; drop it so
	// line numbers match the file.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if len(lines) == 0 {
		return nil
	}

	step := window - overlap
	chunks := make([]Chunk, 0, (len(lines)+step-1)/step)
	for start := 0; start < len(lines); start += step {
		end := start + window
		if end > len(lines) {
			end = len(lines)
		}
		content := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, Chunk{
				Content:   content,
				StartLine: start + 1,
				EndLine:   end,
			})
		}
		if end == len(lines) {
			break
		}
	}
	return chunks
}

// languageByExtension maps common source file extensions to language names
// recorded in chunk metadata.
var languageByExtension = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".html":  "html",
	".css":   "css",
	".proto": "protobuf",
}

// detectLanguage returns the language for a file path, or "" when unknown.
func detectLanguage(path string) string {
	return languageByExtension[strings.ToLower(filepath.Ext(path))]
}
