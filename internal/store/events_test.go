package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/stateres"
)

func TestWriteEvent_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ev := createTestEvent("$pl", "!room:example.org", ir.TypePowerLevels, "", "$create")
	ev.Prev = []ir.EventID{"$create"}
	redacts := ir.EventID("$old")
	ev.RedactsID = &redacts
	ev.IsRejected = true

	inserted, err := s.WriteEvent(ctx, ev)
	if err != nil {
		t.Fatalf("WriteEvent() failed: %v", err)
	}
	if !inserted {
		t.Fatal("WriteEvent() reported no insert for a new event")
	}

	got, err := s.ReadEvent(ctx, "$pl")
	if err != nil {
		t.Fatalf("ReadEvent() failed: %v", err)
	}
	if got.Kind != ir.TypePowerLevels || got.Room != "!room:example.org" || got.Timestamp != 1000 {
		t.Errorf("unexpected event fields: %+v", got)
	}
	if got.Key == nil || *got.Key != "" {
		t.Errorf("state key = %v, want empty string", got.Key)
	}
	if string(got.RawContent) != `{"a":"x","b":1}` {
		t.Errorf("content = %s, want canonical form", got.RawContent)
	}
	if len(got.Auth) != 1 || got.Auth[0] != "$create" {
		t.Errorf("auth_events = %v", got.Auth)
	}
	if len(got.Prev) != 1 || got.Prev[0] != "$create" {
		t.Errorf("prev_events = %v", got.Prev)
	}
	if got.RedactsID == nil || *got.RedactsID != "$old" {
		t.Errorf("redacts = %v", got.RedactsID)
	}
	if !got.IsRejected {
		t.Error("rejected flag lost")
	}
}

func TestWriteEvent_NonStateEvent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ev := createTestEvent("$msg", "!room:example.org", "m.room.message", "")
	ev.Key = nil
	if _, err := s.WriteEvent(ctx, ev); err != nil {
		t.Fatalf("WriteEvent() failed: %v", err)
	}

	got, err := s.ReadEvent(ctx, "$msg")
	if err != nil {
		t.Fatalf("ReadEvent() failed: %v", err)
	}
	if got.IsState() {
		t.Error("non-state event read back with a state key")
	}
	if got.Auth == nil || len(got.Auth) != 0 {
		t.Errorf("auth_events = %#v, want empty non-nil slice", got.Auth)
	}
}

func TestWriteEvent_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestEvent("$e", "!room:example.org", "m.room.topic", "")
	if _, err := s.WriteEvent(ctx, first); err != nil {
		t.Fatalf("first WriteEvent() failed: %v", err)
	}

	second := createTestEvent("$e", "!room:example.org", "m.room.name", "")
	inserted, err := s.WriteEvent(ctx, second)
	if err != nil {
		t.Fatalf("second WriteEvent() failed: %v", err)
	}
	if inserted {
		t.Error("duplicate write reported as insert")
	}

	got, err := s.ReadEvent(ctx, "$e")
	if err != nil {
		t.Fatalf("ReadEvent() failed: %v", err)
	}
	if got.Kind != "m.room.topic" {
		t.Errorf("type = %q, first write must win", got.Kind)
	}
}

func TestWriteEvent_RequiresID(t *testing.T) {
	s := createTestStore(t)
	ev := createTestEvent("", "!room:example.org", "m.room.topic", "")
	if _, err := s.WriteEvent(context.Background(), ev); err == nil {
		t.Error("expected error for missing event_id")
	}
}

func TestWriteEvents_Batch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	batch := []*ir.PDU{
		createTestEvent("$a", "!room:example.org", ir.TypeCreate, ""),
		createTestEvent("$b", "!room:example.org", ir.TypeJoinRules, "", "$a"),
		createTestEvent("$a", "!room:example.org", ir.TypeCreate, ""),
	}
	n, err := s.WriteEvents(ctx, batch)
	if err != nil {
		t.Fatalf("WriteEvents() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}
}

func TestReadEvent_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadEvent(context.Background(), "$missing")
	if !errors.Is(err, stateres.ErrEventNotFound) {
		t.Errorf("ReadEvent() error = %v, want ErrEventNotFound", err)
	}
}

func TestRoomEvents_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, ev := range []*ir.PDU{
		createTestEvent("$z", "!room:example.org", ir.TypeCreate, ""),
		createTestEvent("$other", "!other:example.org", ir.TypeCreate, ""),
		createTestEvent("$a", "!room:example.org", "m.room.topic", "", "$z"),
	} {
		if _, err := s.WriteEvent(ctx, ev); err != nil {
			t.Fatalf("WriteEvent(%s) failed: %v", ev.ID, err)
		}
	}

	events, err := s.RoomEvents(ctx, "!room:example.org")
	if err != nil {
		t.Fatalf("RoomEvents() failed: %v", err)
	}
	if len(events) != 2 || events[0].ID != "$z" || events[1].ID != "$a" {
		t.Errorf("RoomEvents() = %v, want [$z $a]", ids(events))
	}

	empty, err := s.RoomEvents(ctx, "!nowhere:example.org")
	if err != nil {
		t.Fatalf("RoomEvents() failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("RoomEvents() for unknown room = %#v, want empty slice", empty)
	}

	rooms, err := s.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms() failed: %v", err)
	}
	if len(rooms) != 2 || rooms[0] != "!other:example.org" || rooms[1] != "!room:example.org" {
		t.Errorf("ListRooms() = %v", rooms)
	}

	seq, err := s.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 3 {
		t.Errorf("LastSeq() = %d, want 3", seq)
	}
}

func TestSnapshot_Fetcher(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.WriteEvent(ctx, createTestEvent("$create", "!room:example.org", ir.TypeCreate, "")); err != nil {
		t.Fatalf("WriteEvent() failed: %v", err)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	ev, err := snap.Fetch(ctx, "$create")
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if ev.EventID() != "$create" || ev.Type() != ir.TypeCreate {
		t.Errorf("Fetch() = %s %s", ev.EventID(), ev.Type())
	}

	_, err = snap.Fetch(ctx, "$missing")
	if !errors.Is(err, stateres.ErrEventNotFound) {
		t.Errorf("Fetch() missing error = %v", err)
	}

	events, err := snap.RoomEvents(ctx, "!room:example.org")
	if err != nil || len(events) != 1 {
		t.Errorf("snapshot RoomEvents() = %v, %v", ids(events), err)
	}
	seq, err := snap.LastSeq(ctx)
	if err != nil || seq != 1 {
		t.Errorf("snapshot LastSeq() = %d, %v", seq, err)
	}

	if err := snap.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// The store is usable again once the snapshot is closed.
	if _, err := s.ReadEvent(ctx, "$create"); err != nil {
		t.Errorf("ReadEvent() after snapshot close failed: %v", err)
	}
}

func ids(events []*ir.PDU) []ir.EventID {
	out := make([]ir.EventID, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}
