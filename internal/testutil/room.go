package testutil

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/stateres/internal/ir"
)

// Room builds a small room DAG for tests.
//
// Events get IDs chosen by the test and timestamps from a DeterministicClock,
// so the same builder calls always produce the same events. Returned PDUs
// may be modified (for example to pin a timestamp) before use.
type Room struct {
	ID     string
	clock  *DeterministicClock
	events map[ir.EventID]*ir.PDU
	order  []ir.EventID
}

// NewRoom creates an empty room.
func NewRoom(id string) *Room {
	return &Room{
		ID:     id,
		clock:  NewDeterministicClock(),
		events: make(map[ir.EventID]*ir.PDU),
	}
}

// Add inserts a PDU, filling in the room ID and a timestamp if unset.
// Adding a duplicate ID panics, since it always indicates a broken test.
func (r *Room) Add(p *ir.PDU) *ir.PDU {
	if _, dup := r.events[p.ID]; dup {
		panic(fmt.Sprintf("testutil: duplicate event %s", p.ID))
	}
	if p.Room == "" {
		p.Room = r.ID
	}
	if p.Timestamp == 0 {
		p.Timestamp = r.clock.Next()
	}
	if p.RawContent == nil {
		p.RawContent = json.RawMessage("{}")
	}
	r.events[p.ID] = p
	r.order = append(r.order, p.ID)
	return p
}

// State adds a state event with raw JSON content.
func (r *Room) State(id ir.EventID, eventType, stateKey, sender, content string, auth ...ir.EventID) *ir.PDU {
	return r.Add(&ir.PDU{
		ID:         id,
		SenderID:   sender,
		Kind:       eventType,
		RawContent: json.RawMessage(content),
		Key:        ir.StringPtr(stateKey),
		Auth:       auth,
	})
}

// Create adds an m.room.create event.
func (r *Room) Create(id ir.EventID, creator string) *ir.PDU {
	return r.State(id, ir.TypeCreate, "", creator, fmt.Sprintf(`{"creator":%q}`, creator))
}

// Member adds an m.room.member event for target.
func (r *Room) Member(id ir.EventID, sender, target, membership string, auth ...ir.EventID) *ir.PDU {
	return r.State(id, ir.TypeMember, target, sender, fmt.Sprintf(`{"membership":%q}`, membership), auth...)
}

// PowerLevels adds an m.room.power_levels event granting the given user levels.
func (r *Room) PowerLevels(id ir.EventID, sender string, users map[string]int64, auth ...ir.EventID) *ir.PDU {
	content, err := json.Marshal(map[string]any{"users": users})
	if err != nil {
		panic(err)
	}
	return r.State(id, ir.TypePowerLevels, "", sender, string(content), auth...)
}

// JoinRules adds an m.room.join_rules event.
func (r *Room) JoinRules(id ir.EventID, sender, rule string, auth ...ir.EventID) *ir.PDU {
	return r.State(id, ir.TypeJoinRules, "", sender, fmt.Sprintf(`{"join_rule":%q}`, rule), auth...)
}

// Message adds a non-state m.room.message event.
func (r *Room) Message(id ir.EventID, sender string, auth ...ir.EventID) *ir.PDU {
	return r.Add(&ir.PDU{
		ID:         id,
		SenderID:   sender,
		Kind:       "m.room.message",
		RawContent: json.RawMessage(`{"body":"hello"}`),
		Auth:       auth,
	})
}

// Get returns an event by ID.
func (r *Room) Get(id ir.EventID) (*ir.PDU, bool) {
	p, ok := r.events[id]
	return p, ok
}

// Remove deletes an event, simulating a gap in the caller's store.
func (r *Room) Remove(id ir.EventID) {
	delete(r.events, id)
	r.order = slices.DeleteFunc(r.order, func(x ir.EventID) bool { return x == id })
}

// Events returns all events in insertion order.
func (r *Room) Events() []*ir.PDU {
	out := make([]*ir.PDU, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.events[id])
	}
	return out
}
