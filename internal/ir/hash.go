package ir

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"slices"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainState = "stateres/state/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ReferenceHash computes an event ID for a PDU from its content.
//
// The ID is "$" followed by the unpadded URL-safe base64 of the SHA-256 of
// the PDU's canonical JSON, with event_id and rejected excluded. Fixtures that
// omit event_id are assigned this value on load.
func ReferenceHash(p *PDU) (EventID, error) {
	content, err := decodeForCanonical(p.RawContent)
	if err != nil {
		return "", fmt.Errorf("ReferenceHash: %w", err)
	}

	obj := map[string]any{
		"room_id":          p.Room,
		"sender":           p.SenderID,
		"origin_server_ts": p.Timestamp,
		"type":             p.Kind,
		"content":          content,
		"prev_events":      nonNilIDs(p.Prev),
		"auth_events":      nonNilIDs(p.Auth),
	}
	if p.Key != nil {
		obj["state_key"] = *p.Key
	}
	if p.RedactsID != nil {
		obj["redacts"] = *p.RedactsID
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ReferenceHash: failed to marshal: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return EventID("$" + base64.RawURLEncoding.EncodeToString(sum[:])), nil
}

// StateHash fingerprints a resolved state. Two states hash equal iff they
// map the same slots to the same events.
func StateHash(state map[StateKey]EventID) (string, error) {
	keys := make([]StateKey, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, StateKey.Compare)

	entries := make([]any, len(keys))
	for i, k := range keys {
		entries[i] = []any{k.Type, k.StateKey, state[k]}
	}

	canonical, err := MarshalCanonical(entries)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

func nonNilIDs(ids []EventID) []EventID {
	if ids == nil {
		return []EventID{}
	}
	return ids
}
