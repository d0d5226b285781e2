package stateres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/rules"
)

// Event is the read-only view of a room event the resolver needs.
// Implementations must be immutable for the duration of a Resolve call.
type Event interface {
	EventID() ir.EventID
	RoomID() string
	Sender() string
	OriginServerTS() int64
	Type() string
	Content() json.RawMessage

	// StateKey is nil for non-state events.
	StateKey() *string

	PrevEvents() []ir.EventID
	AuthEvents() []ir.EventID
	Redacts() *ir.EventID

	// Rejected reports that the event already failed validation.
	Rejected() bool
}

// ErrEventNotFound is returned by a Fetcher when an event is unknown.
var ErrEventNotFound = errors.New("event not found")

// Fetcher gives read access to the caller's event store.
//
// Fetch returns ErrEventNotFound (possibly wrapped) for unknown events.
// Any other error aborts resolution and is returned to the caller.
type Fetcher interface {
	Fetch(ctx context.Context, id ir.EventID) (Event, error)
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context, id ir.EventID) (Event, error)

// Fetch calls f.
func (f FetchFunc) Fetch(ctx context.Context, id ir.EventID) (Event, error) {
	return f(ctx, id)
}

// Verdict is the outcome of authorizing one candidate event.
type Verdict int

const (
	Reject Verdict = iota
	Accept
)

func (v Verdict) String() string {
	if v == Accept {
		return "accept"
	}
	return "reject"
}

// MarshalText renders the verdict for traces.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// StateLookup answers "which event occupies this slot" while a candidate is
// being authorized. A nil Event with a nil error means the slot is empty.
type StateLookup interface {
	StateEvent(ctx context.Context, eventType, stateKey string) (Event, error)
}

// Authorizer decides whether a candidate event is allowed given the state
// before it. A Reject verdict is a normal outcome; an error aborts resolution.
type Authorizer interface {
	Check(ctx context.Context, rs *rules.Rules, candidate Event, state StateLookup) (Verdict, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, rs *rules.Rules, candidate Event, state StateLookup) (Verdict, error)

// Check calls f.
func (f AuthorizerFunc) Check(ctx context.Context, rs *rules.Rules, candidate Event, state StateLookup) (Verdict, error) {
	return f(ctx, rs, candidate, state)
}

// PowerLevelLookup returns a user's power level given the power-levels and
// create events in scope. Either event may be nil; implementations apply the
// room version's defaults.
type PowerLevelLookup interface {
	UserPowerLevel(rs *rules.Rules, powerLevels, create Event, user string) int64
}

// memoFetcher caches fetch results for one resolution run, so every step of
// the run sees the same event for the same ID.
type memoFetcher struct {
	fetcher Fetcher
	cache   map[ir.EventID]Event
}

func newMemoFetcher(f Fetcher) *memoFetcher {
	if m, ok := f.(*memoFetcher); ok {
		return m
	}
	return &memoFetcher{fetcher: f, cache: make(map[ir.EventID]Event)}
}

func (m *memoFetcher) Fetch(ctx context.Context, id ir.EventID) (Event, error) {
	if ev, ok := m.cache[id]; ok {
		return ev, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ev, err := m.fetcher.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, NewFetchMissingError(id, err)
		}
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}
	if ev == nil {
		return nil, NewFetchMissingError(id, nil)
	}

	m.cache[id] = ev
	return ev, nil
}

// stateSlot returns the slot an event occupies or NOT_A_STATE_EVENT.
func stateSlot(ev Event) (ir.StateKey, error) {
	sk := ev.StateKey()
	if sk == nil {
		return ir.StateKey{}, NewNotAStateEventError(ev.EventID())
	}
	return ir.StateKey{Type: ev.Type(), StateKey: *sk}, nil
}

func isStateOfType(ev Event, eventType string) bool {
	sk := ev.StateKey()
	return sk != nil && *sk == "" && ev.Type() == eventType
}
