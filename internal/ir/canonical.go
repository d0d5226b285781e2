package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for hashing and golden output.
// CRITICAL: This is the ONLY serialization that should be used for
// content-addressed identity computation.
//
// Differences from json.Marshal:
//  1. Object keys sorted by code point, no insignificant whitespace
//  2. No HTML escaping, U+2028/U+2029 written literally
//  3. Strings are NFC normalized
//  4. Numbers must be integers; floats are an error
//
// Accepted inputs are the shapes produced by decoding JSON with UseNumber,
// plus Go ints, strings, EventID and json.RawMessage.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeCanonicalString(buf, val)
	case EventID:
		writeCanonicalString(buf, string(val))
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case json.Number:
		n, err := strconv.ParseInt(val.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("non-integer number %s is forbidden in canonical JSON", val)
		}
		buf.WriteString(strconv.FormatInt(n, 10))
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	case json.RawMessage:
		decoded, err := decodeForCanonical(val)
		if err != nil {
			return err
		}
		return writeCanonical(buf, decoded)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case []string:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, elem)
		}
		buf.WriteByte(']')
	case []EventID:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, string(elem))
		}
		buf.WriteByte(']')
	case map[string]any:
		return writeCanonicalObject(buf, val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalObject writes keys in code point order. Keys are NFC
// normalized before sorting so that equivalent spellings collide.
func writeCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	normalized := make(map[string]any, len(obj))
	for k, v := range obj {
		nk := norm.NFC.String(k)
		if _, dup := normalized[nk]; dup {
			return fmt.Errorf("duplicate key %q after NFC normalization", nk)
		}
		normalized[nk] = v
	}

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeCanonicalString(buf, k)
		buf.WriteByte(':')
		if err := writeCanonical(buf, normalized[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeCanonicalString escapes only what JSON requires: quote, backslash and
// control characters below U+0020.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			fmt.Fprintf(buf, `\u%04x`, r)
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}

// decodeForCanonical decodes raw JSON keeping numbers exact.
func decodeForCanonical(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode raw JSON: %w", err)
	}
	return v, nil
}
