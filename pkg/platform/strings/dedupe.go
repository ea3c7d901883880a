// Package strings holds small helpers for cleaning name lists.
package strings

import (
	"strings"
)

// DedupeFold trims values, drops empties and removes case-insensitive
// duplicates. The first spelling seen is kept and order is preserved.
//
//	DedupeFold([]string{" Kibra ", "KIBRA", "", "Westlands"})
//	// []string{"Kibra", "Westlands"}
func DedupeFold(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
