// Package normalize resolves logical field values from heterogeneous API
// payloads. The upstream backend is inconsistent about key spellings: the
// same logical field may arrive as camelCase ("tradeDate") or snake_case
// ("trade_date") depending on the endpoint. All lookups go through Resolve
// so the rest of the codebase only deals in logical (camelCase) names.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Missing is the display fallback for absent values.
const Missing = "--"

// SnakeCase derives the snake_case spelling of a camelCase logical key by
// inserting an underscore before each uppercase letter and lowercasing.
func SnakeCase(camel string) string {
	var b strings.Builder
	b.Grow(len(camel) + 4)
	for _, r := range camel {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Resolve returns the value for a logical key, preferring the camelCase
// spelling over the derived snake_case one. The camelCase precedence is a
// documented contract - callers rely on it when both spellings are present.
// Nil and empty-string values count as absent.
func Resolve(record map[string]interface{}, logicalKey string) (interface{}, bool) {
	if record == nil {
		return nil, false
	}
	if val, ok := defined(record, logicalKey); ok {
		return val, true
	}
	return defined(record, SnakeCase(logicalKey))
}

// defined reports whether the key holds a usable value
func defined(record map[string]interface{}, key string) (interface{}, bool) {
	val, exists := record[key]
	if !exists || val == nil {
		return nil, false
	}
	if s, ok := val.(string); ok && s == "" {
		return nil, false
	}
	return val, true
}

// String resolves a logical key and coerces the value to a string.
// Returns "" when the key is absent under both spellings.
func String(record map[string]interface{}, logicalKey string) string {
	val, ok := Resolve(record, logicalKey)
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", val)
}

// StringOr resolves a logical key, substituting the display fallback when
// the value is absent.
func StringOr(record map[string]interface{}, logicalKey, fallback string) string {
	if s := String(record, logicalKey); s != "" {
		return s
	}
	return fallback
}

// Float resolves a logical key and coerces the value to a float64.
// The backend returns some numeric fields as strings (e.g. "netAmount": "141.4").
func Float(record map[string]interface{}, logicalKey string) float64 {
	val, ok := Resolve(record, logicalKey)
	if !ok {
		return 0.0
	}
	return floatFromValue(val)
}

// Int resolves a logical key and coerces the value to an int64.
func Int(record map[string]interface{}, logicalKey string) int64 {
	return int64(Float(record, logicalKey))
}

func floatFromValue(val interface{}) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case string:
		if floatVal, err := strconv.ParseFloat(v, 64); err == nil {
			return floatVal
		}
		return 0.0
	default:
		return 0.0
	}
}
