package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/rules"
	"github.com/roach88/stateres/internal/stateres"
)

var (
	// ErrNoRoot indicates no create event without prev_events was found.
	ErrNoRoot = errors.New("no create event without prev_events")

	// ErrDanglingPrevEvents indicates some events could never be reached
	// because a prev_event is missing from the input.
	ErrDanglingPrevEvents = errors.New("events with unresolvable prev_events")
)

// Driver runs resolution over sets of PDUs.
type Driver struct {
	resolver *stateres.Resolver
	logger   *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger for walk progress.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// New creates a Driver.
func New(resolver *stateres.Resolver, opts ...Option) *Driver {
	d := &Driver{resolver: resolver, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ResolveBatch resolves pdus against prev, the result of an earlier batch
// (nil for the first). Every PDU becomes its own single-slot snapshot, since
// no valid grouping is known. The PDUs are added to index, which must
// already hold every earlier batch.
func (d *Driver) ResolveBatch(ctx context.Context, rs *rules.Rules, prev stateres.StateMap, pdus []*ir.PDU, index *Index) (stateres.StateMap, error) {
	snapshots, chains, err := batchInputs(ctx, prev, pdus, index)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("resolving batch", "events", len(pdus), "snapshots", len(snapshots))
	return d.resolver.Resolve(ctx, rs, snapshots, chains, index)
}

// ResolveAtomic resolves all PDUs in a single call.
func (d *Driver) ResolveAtomic(ctx context.Context, rs *rules.Rules, pdus []*ir.PDU) (stateres.StateMap, error) {
	return d.ResolveBatch(ctx, rs, nil, pdus, NewIndex())
}

// ExplainAtomic is ResolveAtomic with a record of every decision.
func (d *Driver) ExplainAtomic(ctx context.Context, rs *rules.Rules, pdus []*ir.PDU) (stateres.StateMap, *stateres.Trace, error) {
	index := NewIndex()
	snapshots, chains, err := batchInputs(ctx, nil, pdus, index)
	if err != nil {
		return nil, nil, err
	}
	return d.resolver.Explain(ctx, rs, snapshots, chains, index)
}

func batchInputs(ctx context.Context, prev stateres.StateMap, pdus []*ir.PDU, index *Index) ([]stateres.StateMap, []stateres.EventSet, error) {
	index.Add(pdus...)

	var snapshots []stateres.StateMap
	var chains []stateres.EventSet
	if prev != nil {
		chain, err := stateres.StateAuthChain(ctx, index, prev)
		if err != nil {
			return nil, nil, fmt.Errorf("batch: auth chain of previous state: %w", err)
		}
		snapshots = append(snapshots, prev)
		chains = append(chains, chain)
	}

	for _, p := range pdus {
		slot, ok := p.Slot()
		if !ok {
			return nil, nil, stateres.NewNotAStateEventError(p.ID)
		}
		chain, err := stateres.AuthChain(ctx, index, p)
		if err != nil {
			return nil, nil, fmt.Errorf("batch: auth chain of %s: %w", p.ID, err)
		}
		snapshots = append(snapshots, stateres.StateMap{slot: p.ID})
		chains = append(chains, chain)
	}
	return snapshots, chains, nil
}

// Walk is the outcome of an iterative resolution.
type Walk struct {
	// StateAt is the state after each event.
	StateAt map[ir.EventID]stateres.StateMap

	// Leaves are the events no other event names in prev_events, in the
	// order they were reached.
	Leaves []ir.EventID

	// State is the resolution of the states at all leaves.
	State stateres.StateMap
}

// ResolveIteratively walks prev_events forward from the create event. Each
// event's state is the resolution of its prev_events' states with the event
// itself applied on top. Non-state events pass their state through.
func (d *Driver) ResolveIteratively(ctx context.Context, rs *rules.Rules, pdus []*ir.PDU) (*Walk, error) {
	index := NewIndex(pdus...)
	chains := newChainCache(index)

	forward := make(map[ir.EventID][]ir.EventID)
	var stack []ir.EventID
	for _, p := range index.PDUs() {
		for _, prev := range p.Prev {
			forward[prev] = append(forward[prev], p.ID)
		}
		if p.Kind == ir.TypeCreate && len(p.Prev) == 0 {
			stack = append(stack, p.ID)
		}
	}
	if len(stack) == 0 {
		return nil, ErrNoRoot
	}

	walk := &Walk{StateAt: make(map[ir.EventID]stateres.StateMap, index.Len())}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := walk.StateAt[id]; done {
			continue
		}
		p, _ := index.Get(id)

		var before []stateres.StateMap
		var beforeChains []stateres.EventSet
		ready := true
		for _, prev := range p.Prev {
			st, ok := walk.StateAt[prev]
			if !ok {
				// Revisited once the missing prev event is resolved.
				ready = false
				break
			}
			chain, err := chains.state(ctx, st)
			if err != nil {
				return nil, err
			}
			before = append(before, st)
			beforeChains = append(beforeChains, chain)
		}
		if !ready {
			continue
		}

		stateBefore, err := d.resolver.Resolve(ctx, rs, before, beforeChains, index)
		if err != nil {
			return nil, fmt.Errorf("state before %s: %w", id, err)
		}

		stateAfter := stateBefore
		if slot, ok := p.Slot(); ok {
			chainBefore, err := chains.state(ctx, stateBefore)
			if err != nil {
				return nil, err
			}
			own, err := chains.event(ctx, p)
			if err != nil {
				return nil, err
			}
			chainAt := make(stateres.EventSet, len(chainBefore)+len(own))
			chainAt.Union(chainBefore)
			chainAt.Union(own)

			proposed := stateBefore.Clone()
			proposed[slot] = id

			stateAfter, err = d.resolver.Resolve(ctx, rs,
				[]stateres.StateMap{stateBefore, proposed},
				[]stateres.EventSet{chainBefore, chainAt},
				index)
			if err != nil {
				return nil, fmt.Errorf("state at %s: %w", id, err)
			}
		}
		walk.StateAt[id] = stateAfter

		if next := forward[id]; len(next) > 0 {
			stack = append(stack, next...)
		} else {
			walk.Leaves = append(walk.Leaves, id)
		}
	}

	if len(walk.StateAt) != index.Len() {
		missing := make(stateres.EventSet)
		for _, p := range index.PDUs() {
			if _, ok := walk.StateAt[p.ID]; !ok {
				missing.Add(p.ID)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrDanglingPrevEvents, missing.Sorted())
	}

	leafStates := make([]stateres.StateMap, len(walk.Leaves))
	leafChains := make([]stateres.EventSet, len(walk.Leaves))
	for i, leaf := range walk.Leaves {
		leafStates[i] = walk.StateAt[leaf]
		chain, err := chains.state(ctx, leafStates[i])
		if err != nil {
			return nil, err
		}
		leafChains[i] = chain
	}

	d.logger.Debug("walked room DAG", "events", index.Len(), "leaves", len(walk.Leaves))

	state, err := d.resolver.Resolve(ctx, rs, leafStates, leafChains, index)
	if err != nil {
		return nil, fmt.Errorf("state at leaves: %w", err)
	}
	walk.State = state
	return walk, nil
}

// chainCache memoises per-event auth chains for a walk.
type chainCache struct {
	index  *Index
	chains map[ir.EventID]stateres.EventSet
}

func newChainCache(index *Index) *chainCache {
	return &chainCache{index: index, chains: make(map[ir.EventID]stateres.EventSet)}
}

func (c *chainCache) event(ctx context.Context, ev stateres.Event) (stateres.EventSet, error) {
	if chain, ok := c.chains[ev.EventID()]; ok {
		return chain, nil
	}
	chain, err := stateres.AuthChain(ctx, c.index, ev)
	if err != nil {
		return nil, fmt.Errorf("auth chain of %s: %w", ev.EventID(), err)
	}
	c.chains[ev.EventID()] = chain
	return chain, nil
}

// state unions the chains of every event in a state.
func (c *chainCache) state(ctx context.Context, st stateres.StateMap) (stateres.EventSet, error) {
	out := make(stateres.EventSet)
	for _, id := range st.SortedKeys() {
		ev, err := c.index.Fetch(ctx, st[id])
		if err != nil {
			return nil, fmt.Errorf("auth chain of state: %w", err)
		}
		chain, err := c.event(ctx, ev)
		if err != nil {
			return nil, err
		}
		out.Union(chain)
	}
	return out, nil
}
