package vectorstore

import "testing"

func TestFilterMatches(t *testing.T) {
	metadata := map[string]interface{}{
		"file_path":  "internal/server/handler.go",
		"language":   "go",
		"start_line": 40,
		"git": map[string]interface{}{
			"branch": "main",
		},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"nil filter matches", nil, true},
		{"empty filter matches", Filter{}, true},
		{"exact string match", Filter{"language": "go"}, true},
		{"exact string mismatch", Filter{"language": "rust"}, false},
		{"missing key", Filter{"author": "anyone"}, false},
		{"all clauses must match", Filter{"language": "go", "file_path": "other.go"}, false},
		{"multiple clauses match", Filter{"language": "go", "start_line": 40}, true},
		{"numeric across types", Filter{"start_line": float64(40)}, true},
		{"set membership hit", Filter{"language": []interface{}{"go", "python"}}, true},
		{"set membership miss", Filter{"language": []interface{}{"rust", "python"}}, false},
		{"string slice membership", Filter{"language": []string{"go"}}, true},
		{"dot path into nested map", Filter{"git.branch": "main"}, true},
		{"dot path mismatch", Filter{"git.branch": "develop"}, false},
		{"dot path missing segment", Filter{"git.commit": "abc"}, false},
		{"dot path through scalar", Filter{"language.sub": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(metadata); got != tt.want {
				t.Errorf("Filter(%v).Matches() = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestFilterFlatKeyWithDot(t *testing.T) {
	// A literal dotted key in metadata wins over path descent.
	metadata := map[string]interface{}{"git.branch": "main"}
	if !(Filter{"git.branch": "main"}).Matches(metadata) {
		t.Error("flat dotted key should match before path descent")
	}
}
