package stateres

import (
	"context"

	"github.com/roach88/stateres/internal/ir"
)

// AuthChain returns every event reachable from ev through auth_events,
// excluding ev itself. The walk uses an explicit stack, so deep chains do not
// grow the goroutine stack, and a visited set, so shared ancestors and cycles
// are walked once.
func AuthChain(ctx context.Context, fetch Fetcher, ev Event) (EventSet, error) {
	return authChain(ctx, newMemoFetcher(fetch), ev)
}

func authChain(ctx context.Context, f *memoFetcher, ev Event) (EventSet, error) {
	chain := make(EventSet)
	visited := NewEventSet(ev.EventID())
	stack := append([]ir.EventID(nil), ev.AuthEvents()...)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Has(id) {
			continue
		}
		visited.Add(id)
		chain.Add(id)

		parent, err := f.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		stack = append(stack, parent.AuthEvents()...)
	}
	return chain, nil
}

// StateAuthChain returns the union of the auth chains of every event in a
// state. This is the per-snapshot input Resolve expects.
func StateAuthChain(ctx context.Context, fetch Fetcher, state StateMap) (EventSet, error) {
	f := newMemoFetcher(fetch)
	out := make(EventSet)
	for _, slot := range state.SortedKeys() {
		ev, err := f.Fetch(ctx, state[slot])
		if err != nil {
			return nil, err
		}
		chain, err := authChain(ctx, f, ev)
		if err != nil {
			return nil, err
		}
		out.Union(chain)
	}
	return out, nil
}
