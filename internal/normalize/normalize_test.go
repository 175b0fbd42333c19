package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single word", input: "concept", expected: "concept"},
		{name: "two words", input: "tradeDate", expected: "trade_date"},
		{name: "three words", input: "lastSyncedAt", expected: "last_synced_at"},
		{name: "net amount", input: "netAmount", expected: "net_amount"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SnakeCase(tt.input))
		})
	}
}

func TestResolveBothSpellings(t *testing.T) {
	camel := map[string]interface{}{"tradeDate": "2024-01-01"}
	snake := map[string]interface{}{"trade_date": "2024-01-01"}

	val, ok := Resolve(camel, "tradeDate")
	assert.True(t, ok)
	assert.Equal(t, "2024-01-01", val)

	val, ok = Resolve(snake, "tradeDate")
	assert.True(t, ok)
	assert.Equal(t, "2024-01-01", val)
}

func TestResolveAbsentKey(t *testing.T) {
	record := map[string]interface{}{"tradeDate": "2024-01-01"}

	val, ok := Resolve(record, "netAmount")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestResolvePrefersCamelCase(t *testing.T) {
	record := map[string]interface{}{
		"tradeDate":  "camel",
		"trade_date": "snake",
	}

	val, ok := Resolve(record, "tradeDate")
	assert.True(t, ok)
	assert.Equal(t, "camel", val)
}

func TestResolveSkipsEmptyValues(t *testing.T) {
	// An empty camelCase value should not shadow a populated snake_case one
	record := map[string]interface{}{
		"tradeDate":  "",
		"trade_date": "2024-01-01",
	}

	val, ok := Resolve(record, "tradeDate")
	assert.True(t, ok)
	assert.Equal(t, "2024-01-01", val)

	_, ok = Resolve(map[string]interface{}{"tradeDate": nil}, "tradeDate")
	assert.False(t, ok)
}

func TestResolveNilRecord(t *testing.T) {
	val, ok := Resolve(nil, "tradeDate")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestString(t *testing.T) {
	record := map[string]interface{}{
		"concept_name": "AI",
		"rank":         3,
	}

	assert.Equal(t, "AI", String(record, "conceptName"))
	assert.Equal(t, "3", String(record, "rank"))
	assert.Equal(t, "", String(record, "missing"))
}

func TestStringOr(t *testing.T) {
	record := map[string]interface{}{"conceptName": "AI"}

	assert.Equal(t, "AI", StringOr(record, "conceptName", Missing))
	assert.Equal(t, "--", StringOr(record, "netAmount", Missing))
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name     string
		record   map[string]interface{}
		key      string
		expected float64
	}{
		{
			name:     "float value",
			record:   map[string]interface{}{"netAmount": 141.4},
			key:      "netAmount",
			expected: 141.4,
		},
		{
			name:     "snake_case spelling",
			record:   map[string]interface{}{"net_amount": 141.4},
			key:      "netAmount",
			expected: 141.4,
		},
		{
			name:     "numeric string",
			record:   map[string]interface{}{"netAmount": "141.4"},
			key:      "netAmount",
			expected: 141.4,
		},
		{
			name:     "int value",
			record:   map[string]interface{}{"rank": 7},
			key:      "rank",
			expected: 7.0,
		},
		{
			name:     "absent key",
			record:   map[string]interface{}{},
			key:      "netAmount",
			expected: 0.0,
		},
		{
			name:     "non-numeric string",
			record:   map[string]interface{}{"netAmount": "n/a"},
			key:      "netAmount",
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Float(tt.record, tt.key))
		})
	}
}
