package vectorstore

import (
	"fmt"
	"strings"
)

// Filter restricts documents by metadata. A document matches when every
// clause matches:
//
//   - A scalar value requires exact equality with the metadata field.
//   - A slice value requires the metadata field to equal any element
//     (set membership).
//   - Keys are dot-path addressable: "git.branch" descends into nested
//     map[string]interface{} metadata values.
//
// A nil or empty filter matches every document.
type Filter map[string]interface{}

// Matches reports whether metadata satisfies every filter clause.
func (f Filter) Matches(metadata map[string]interface{}) bool {
	if len(f) == 0 {
		return true
	}
	for key, want := range f {
		got, ok := lookupPath(metadata, key)
		if !ok {
			return false
		}
		if !matchValue(got, want) {
			return false
		}
	}
	return true
}

// lookupPath resolves a dot-path key against nested metadata maps.
func lookupPath(metadata map[string]interface{}, key string) (interface{}, bool) {
	// Fast path: flat key.
	if v, ok := metadata[key]; ok {
		return v, true
	}

	parts := strings.Split(key, ".")
	if len(parts) == 1 {
		return nil, false
	}

	var current interface{} = metadata
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// matchValue reports whether got satisfies want: equality for scalars,
// membership for slice values.
func matchValue(got, want interface{}) bool {
	switch values := want.(type) {
	case []interface{}:
		for _, v := range values {
			if equalScalar(got, v) {
				return true
			}
		}
		return false
	case []string:
		for _, v := range values {
			if equalScalar(got, v) {
				return true
			}
		}
		return false
	default:
		return equalScalar(got, want)
	}
}

// equalScalar compares scalars loosely: numeric values are compared by
// value regardless of Go type, since JSON round-trips integers as float64.
func equalScalar(got, want interface{}) bool {
	if got == want {
		return true
	}
	gf, gok := toFloat(got)
	wf, wok := toFloat(want)
	if gok && wok {
		return gf == wf
	}
	// String compare as last resort covers fmt.Stringer-ish metadata.
	return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", want) && got != nil && want != nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
