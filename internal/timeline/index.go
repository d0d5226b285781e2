package timeline

import (
	"context"
	"fmt"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/stateres"
)

// Index is an in-memory event store. It implements stateres.Fetcher.
//
// The first PDU added for an ID wins; later additions with the same ID are
// ignored, matching the store's idempotent writes.
type Index struct {
	byID  map[ir.EventID]*ir.PDU
	order []ir.EventID
}

var _ stateres.Fetcher = (*Index)(nil)

// NewIndex builds an index over pdus.
func NewIndex(pdus ...*ir.PDU) *Index {
	ix := &Index{byID: make(map[ir.EventID]*ir.PDU, len(pdus))}
	ix.Add(pdus...)
	return ix
}

// Add inserts PDUs.
func (ix *Index) Add(pdus ...*ir.PDU) {
	for _, p := range pdus {
		if _, ok := ix.byID[p.ID]; ok {
			continue
		}
		ix.byID[p.ID] = p
		ix.order = append(ix.order, p.ID)
	}
}

// Get returns a PDU by ID.
func (ix *Index) Get(id ir.EventID) (*ir.PDU, bool) {
	p, ok := ix.byID[id]
	return p, ok
}

// Len returns the number of distinct events.
func (ix *Index) Len() int {
	return len(ix.byID)
}

// PDUs returns the events in insertion order.
func (ix *Index) PDUs() []*ir.PDU {
	out := make([]*ir.PDU, len(ix.order))
	for i, id := range ix.order {
		out[i] = ix.byID[id]
	}
	return out
}

// Fetch implements stateres.Fetcher.
func (ix *Index) Fetch(_ context.Context, id ir.EventID) (stateres.Event, error) {
	p, ok := ix.byID[id]
	if !ok {
		return nil, fmt.Errorf("index: %s: %w", id, stateres.ErrEventNotFound)
	}
	return p, nil
}
