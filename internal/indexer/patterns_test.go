package indexer

import (
	"io/fs"
	"testing"
	"time"
)

type fakeFileInfo struct {
	size int64
}

func (f fakeFileInfo) Name() string       { return "" }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() fs.FileMode  { return 0 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() interface{}   { return nil }

func TestValidatePatterns(t *testing.T) {
	if err := validatePatterns([]string{"*.go", "docs/**", "**/*.md"}); err != nil {
		t.Errorf("valid patterns rejected: %v", err)
	}
	if err := validatePatterns([]string{"[unclosed"}); err == nil {
		t.Error("malformed pattern accepted")
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		pattern string
		relPath string
		want    bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "internal/server/handler.go", true},
		{"*.go", "main.py", false},
		{"docs/**", "docs/guide/intro.md", true},
		{"docs/**", "src/docs.go", false},
		{"**/*.md", "deep/nested/README.md", true},
		{"internal/*.go", "internal/config.go", true},
		{"internal/*.go", "internal/sub/config.go", false},
		{"*.log", "debug.log", true},
	}
	for _, tt := range tests {
		if got := matchesPattern(tt.pattern, tt.relPath); got != tt.want {
			t.Errorf("matchesPattern(%q, %q) = %v, want %v", tt.pattern, tt.relPath, got, tt.want)
		}
	}
}

func TestShouldInclude(t *testing.T) {
	cfg := Config{
		IncludePatterns: []string{"*.go", "*.md"},
		ExcludePatterns: []string{"*_generated.go", "vendor/**"},
		MaxFileSize:     1024,
	}

	tests := []struct {
		name    string
		relPath string
		size    int64
		want    bool
	}{
		{"included extension", "main.go", 100, true},
		{"second include", "README.md", 100, true},
		{"not included", "image.png", 100, false},
		{"exclude beats include", "api_generated.go", 100, false},
		{"excluded directory", "vendor/lib/lib.go", 100, false},
		{"over size limit", "big.go", 4096, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldInclude(tt.relPath, fakeFileInfo{size: tt.size}, cfg)
			if got != tt.want {
				t.Errorf("shouldInclude(%q) = %v, want %v", tt.relPath, got, tt.want)
			}
		})
	}
}

func TestShouldIncludeNoIncludesMeansAll(t *testing.T) {
	cfg := Config{MaxFileSize: 1024}
	if !shouldInclude("anything.xyz", fakeFileInfo{size: 10}, cfg) {
		t.Error("empty include list should admit every file")
	}
}
