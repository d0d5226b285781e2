package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/stateres/internal/ir"
)

// marshalContent converts event content to canonical JSON TEXT for storage.
func marshalContent(content json.RawMessage) (string, error) {
	data, err := ir.MarshalCanonical(content)
	if err != nil {
		return "", fmt.Errorf("marshal content: %w", err)
	}
	return string(data), nil
}

// marshalIDs converts an event ID list to a canonical JSON array.
// A nil list is stored as [].
func marshalIDs(ids []ir.EventID) (string, error) {
	if ids == nil {
		ids = []ir.EventID{}
	}
	data, err := ir.MarshalCanonical(ids)
	if err != nil {
		return "", fmt.Errorf("marshal event ids: %w", err)
	}
	return string(data), nil
}

// unmarshalIDs parses a stored event ID array.
func unmarshalIDs(data string) ([]ir.EventID, error) {
	var ids []ir.EventID
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal event ids: %w", err)
	}
	if ids == nil {
		ids = []ir.EventID{}
	}
	return ids, nil
}
