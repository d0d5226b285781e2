package stateres

import (
	"maps"
	"slices"

	"github.com/roach88/stateres/internal/ir"
)

// StateMap maps each state slot to the event occupying it.
type StateMap map[ir.StateKey]ir.EventID

// Get returns the event in a slot.
func (s StateMap) Get(eventType, stateKey string) (ir.EventID, bool) {
	id, ok := s[ir.Slot(eventType, stateKey)]
	return id, ok
}

// Set places an event in a slot.
func (s StateMap) Set(eventType, stateKey string, id ir.EventID) {
	s[ir.Slot(eventType, stateKey)] = id
}

// Clone returns an independent copy. Cloning nil yields an empty map.
func (s StateMap) Clone() StateMap {
	out := make(StateMap, len(s))
	maps.Copy(out, s)
	return out
}

// SortedKeys returns the slots ordered by type, then state key.
func (s StateMap) SortedKeys() []ir.StateKey {
	keys := make([]ir.StateKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, ir.StateKey.Compare)
	return keys
}

// Equal reports whether both maps hold the same slots and events.
func (s StateMap) Equal(other StateMap) bool {
	return maps.Equal(s, other)
}

// EventSet is a set of event IDs.
type EventSet map[ir.EventID]struct{}

// NewEventSet builds a set from IDs.
func NewEventSet(ids ...ir.EventID) EventSet {
	s := make(EventSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts an ID.
func (s EventSet) Add(id ir.EventID) {
	s[id] = struct{}{}
}

// Has reports membership.
func (s EventSet) Has(id ir.EventID) bool {
	_, ok := s[id]
	return ok
}

// Union adds every member of other to s.
func (s EventSet) Union(other EventSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Sorted returns the members in byte order.
func (s EventSet) Sorted() []ir.EventID {
	ids := make([]ir.EventID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
