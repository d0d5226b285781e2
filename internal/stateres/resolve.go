package stateres

import (
	"context"
	"log/slog"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/rules"
)

// Resolver runs state resolution with fixed authorization capabilities.
// A Resolver holds no per-call state and is safe for concurrent use.
type Resolver struct {
	authorizer Authorizer
	powers     PowerLevelLookup
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger for resolution diagnostics.
// Defaults to slog.Default() if not set.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a Resolver.
func New(authorizer Authorizer, powers PowerLevelLookup, opts ...Option) *Resolver {
	r := &Resolver{
		authorizer: authorizer,
		powers:     powers,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run carries the state of one Resolve call.
type run struct {
	rules      *rules.Rules
	fetch      *memoFetcher
	authorizer Authorizer
	powers     PowerLevelLookup
	logger     *slog.Logger
	trace      *Trace
}

// Resolve merges state snapshots into one.
//
// snapshots[i] must be paired with authChains[i], the union of the auth
// chains of the events in snapshots[i]. Every event referenced by the
// snapshots or by the conflicted events' auth graphs must be fetchable.
//
// The result is a fresh map. Rejections by the Authorizer are not errors;
// structural failures are reported as *Error, and Fetcher or Authorizer
// errors are returned wrapped.
func (r *Resolver) Resolve(ctx context.Context, rs *rules.Rules, snapshots []StateMap, authChains []EventSet, fetch Fetcher) (StateMap, error) {
	return r.resolve(ctx, rs, snapshots, authChains, fetch, nil)
}

// Explain runs Resolve and also returns the trace of every step.
func (r *Resolver) Explain(ctx context.Context, rs *rules.Rules, snapshots []StateMap, authChains []EventSet, fetch Fetcher) (StateMap, *Trace, error) {
	trace := &Trace{}
	state, err := r.resolve(ctx, rs, snapshots, authChains, fetch, trace)
	if err != nil {
		return nil, nil, err
	}
	return state, trace, nil
}

func (r *Resolver) resolve(ctx context.Context, rs *rules.Rules, snapshots []StateMap, authChains []EventSet, fetch Fetcher, trace *Trace) (StateMap, error) {
	if len(snapshots) != len(authChains) {
		return nil, NewArityError(len(snapshots), len(authChains))
	}

	ru := &run{
		rules:      rs,
		fetch:      newMemoFetcher(fetch),
		authorizer: r.authorizer,
		powers:     r.powers,
		logger:     r.logger,
		trace:      trace,
	}

	for _, snap := range snapshots {
		for _, slot := range snap.SortedKeys() {
			ev, err := ru.fetch.Fetch(ctx, snap[slot])
			if err != nil {
				return nil, err
			}
			if _, err := stateSlot(ev); err != nil {
				return nil, err
			}
		}
	}

	unconflicted, conflicted := SeparateConflicted(snapshots)
	full := AuthDifference(authChains)
	for _, ids := range conflicted {
		full.Union(ids)
	}

	if trace != nil {
		trace.Unconflicted = len(unconflicted)
		trace.Conflicted = full.Sorted()
	}

	if len(full) == 0 {
		ru.logger.Debug("no conflicts",
			"snapshots", len(snapshots),
			"unconflicted", len(unconflicted))
		return unconflicted, nil
	}

	var authority, ordinary []ir.EventID
	for _, id := range full.Sorted() {
		ev, err := ru.fetch.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := stateSlot(ev); err != nil {
			return nil, err
		}
		if IsPowerEvent(ev) {
			authority = append(authority, id)
		} else {
			ordinary = append(ordinary, id)
		}
	}

	ru.logger.Debug("resolving state",
		"snapshots", len(snapshots),
		"unconflicted", len(unconflicted),
		"conflicted", len(full),
		"authority", len(authority),
		"ordinary", len(ordinary))

	authOrder, err := ru.sortAuthority(ctx, authority)
	if err != nil {
		return nil, err
	}
	resolved, err := ru.iterativeMerge(ctx, PassAuthority, authOrder, unconflicted)
	if err != nil {
		return nil, err
	}

	mainline, err := ru.buildMainline(ctx, resolved)
	if err != nil {
		return nil, err
	}
	ordOrder, err := ru.sortOrdinary(ctx, ordinary, mainline)
	if err != nil {
		return nil, err
	}
	resolved, err = ru.iterativeMerge(ctx, PassOrdinary, ordOrder, resolved)
	if err != nil {
		return nil, err
	}

	for slot, id := range unconflicted {
		resolved[slot] = id
	}

	if trace != nil {
		trace.AuthorityOrder = authOrder
		trace.Mainline = mainline
		trace.OrdinaryOrder = ordOrder
	}

	ru.logger.Debug("resolved state",
		"slots", len(resolved),
		"mainline", len(mainline))
	return resolved, nil
}
