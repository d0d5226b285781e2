package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/roach88/stateres/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates a state event with minimal required fields.
func createTestEvent(id ir.EventID, room, eventType, stateKey string, auth ...ir.EventID) *ir.PDU {
	return &ir.PDU{
		ID:         id,
		Room:       room,
		SenderID:   "@alice:example.org",
		Timestamp:  1000,
		Kind:       eventType,
		RawContent: json.RawMessage(`{"b":1,"a":"x"}`),
		Key:        ir.StringPtr(stateKey),
		Prev:       nil,
		Auth:       auth,
	}
}
