package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// arrayDelimiters are the separators used by list-shaped string fields
// (impacted industries, markets, stocks). The backend mixes ASCII and
// full-width commas plus slashes depending on the data source.
var arrayDelimiters = []string{",", "，", "/"}

// Array normalizes a list-shaped field value into a clean string slice:
// trimmed, deduplicated (order preserved), empties dropped. Accepts
// actual arrays, JSON-encoded array strings, and delimiter-joined strings.
// Never fails - unparseable input degrades to delimiter splitting.
func Array(value interface{}) []string {
	switch v := value.(type) {
	case nil:
		return []string{}
	case []string:
		return cleanList(v)
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				items = append(items, s)
				continue
			}
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanList(items)
	case string:
		return arrayFromString(v)
	default:
		return []string{}
	}
}

func arrayFromString(s string) []string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return []string{}
	}

	// JSON-looking strings get a parse attempt before delimiter splitting
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "\"") {
		var parsed interface{}
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			switch p := parsed.(type) {
			case []interface{}:
				return Array(p)
			case string:
				return splitList(p)
			}
		}
		// fall through: not valid JSON after all
	}

	return splitList(trimmed)
}

func splitList(s string) []string {
	parts := []string{s}
	for _, delim := range arrayDelimiters {
		var next []string
		for _, part := range parts {
			next = append(next, strings.Split(part, delim)...)
		}
		parts = next
	}
	return cleanList(parts)
}

// cleanList trims, drops empties and deduplicates while preserving order
func cleanList(items []string) []string {
	result := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		result = append(result, trimmed)
	}
	return result
}
