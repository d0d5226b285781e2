package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"json number", json.Number("7"), "7"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"null", nil, "null"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"event ids", []EventID{"$b", "$a"}, `["$b","$a"]`},
		{"raw message", json.RawMessage(`{"b": 1, "a": [true, null]}`), `{"a":[true,null],"b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := map[string]any{
		"z": map[string]any{"b": 1, "a": 2},
		"a": 3,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalRejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(1.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	_, err = MarshalCanonical(json.RawMessage(`{"level": 50.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-integer number")
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("<script>a & b</script>")
	require.NoError(t, err)
	assert.Equal(t, `"<script>a & b</script>"`, string(result))
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	result, err := MarshalCanonical("quote\" slash\\ nl\n tab\t bell\x07")
	require.NoError(t, err)
	assert.Equal(t, `"quote\" slash\\ nl\n tab\t bell\u0007"`, string(result))
}

func TestMarshalCanonicalLineSeparatorsLiteral(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// e followed by a combining acute accent normalizes to the precomposed form.
	result, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalDuplicateKeysAfterNFC(t *testing.T) {
	obj := map[string]any{
		"\u00e9":  1,
		"e\u0301": 2,
	}
	_, err := MarshalCanonical(obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestMarshalCanonicalUnsupportedType(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}
