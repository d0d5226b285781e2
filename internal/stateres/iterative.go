package stateres

import (
	"context"
	"fmt"

	"github.com/roach88/stateres/internal/ir"
)

// Merge passes.
const (
	PassAuthority = "authority"
	PassOrdinary  = "ordinary"
)

// iterativeMerge applies events in order on top of base, keeping each one
// only if the Authorizer accepts it against the state built so far.
func (r *run) iterativeMerge(ctx context.Context, pass string, order []ir.EventID, base StateMap) (StateMap, error) {
	state := base.Clone()

	for _, id := range order {
		ev, err := r.fetch.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		slot, err := stateSlot(ev)
		if err != nil {
			return nil, err
		}

		verdict := Reject
		reason := ""
		if ev.Rejected() {
			reason = "previously rejected"
		} else {
			lookup, err := r.stateLookupFor(ctx, ev, state)
			if err != nil {
				return nil, err
			}
			verdict, err = r.authorizer.Check(ctx, r.rules, ev, lookup)
			if err != nil {
				return nil, fmt.Errorf("authorize %s: %w", id, err)
			}
		}

		if verdict == Accept {
			state[slot] = id
		}
		r.logger.Debug("checked event",
			"pass", pass,
			"event_id", id,
			"slot", slot.String(),
			"verdict", verdict.String())
		r.trace.decide(Decision{EventID: id, Slot: slot, Pass: pass, Verdict: verdict, Reason: reason})
	}
	return state, nil
}

// mergedState answers lookups from the working state first and falls back
// to the candidate's own non-rejected auth events.
type mergedState struct {
	fetch *memoFetcher
	state StateMap
	auth  map[ir.StateKey]Event
}

func (r *run) stateLookupFor(ctx context.Context, ev Event, state StateMap) (*mergedState, error) {
	auth := make(map[ir.StateKey]Event, len(ev.AuthEvents()))
	for _, id := range ev.AuthEvents() {
		aev, err := r.fetch.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		if aev.Rejected() {
			continue
		}
		if sk := aev.StateKey(); sk != nil {
			auth[ir.Slot(aev.Type(), *sk)] = aev
		}
	}
	return &mergedState{fetch: r.fetch, state: state, auth: auth}, nil
}

// StateEvent implements StateLookup.
func (s *mergedState) StateEvent(ctx context.Context, eventType, stateKey string) (Event, error) {
	slot := ir.Slot(eventType, stateKey)
	if id, ok := s.state[slot]; ok {
		return s.fetch.Fetch(ctx, id)
	}
	if ev, ok := s.auth[slot]; ok {
		return ev, nil
	}
	return nil, nil
}
