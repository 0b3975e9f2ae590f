// Package store provides the conversation store backings: an in-memory map
// with count-based LRU eviction and a Redis-backed variant.
package store

import (
	"sort"
	"strings"
)

const titleEllipsis = "..."

// deriveTitle produces a display title from the first user message,
// truncated to max runes with an ellipsis marker appended when cut.
func deriveTitle(content string, max int) string {
	title := strings.TrimSpace(content)
	if max <= 0 {
		max = 50
	}
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max]) + titleEllipsis
}

// mergeAgents folds new agent names into a sorted distinct set.
func mergeAgents(existing, added []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(added))
	for _, a := range existing {
		seen[a] = struct{}{}
	}
	for _, a := range added {
		seen[a] = struct{}{}
	}
	merged := make([]string, 0, len(seen))
	for a := range seen {
		merged = append(merged, a)
	}
	sort.Strings(merged)
	return merged
}
