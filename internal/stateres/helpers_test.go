package stateres

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/rules"
	"github.com/roach88/stateres/internal/testutil"
)

const (
	alice = "@alice:example.org"
	bob   = "@bob:example.org"
	carol = "@carol:example.org"
)

func roomFetcher(room *testutil.Room) Fetcher {
	return FetchFunc(func(_ context.Context, id ir.EventID) (Event, error) {
		p, ok := room.Get(id)
		if !ok {
			return nil, ErrEventNotFound
		}
		return p, nil
	})
}

// levelPowers reads user levels from power-levels content, falling back to
// 100 for the creator named in the create event.
type levelPowers struct{}

func (levelPowers) UserPowerLevel(_ *rules.Rules, powerLevels, create Event, user string) int64 {
	if powerLevels != nil {
		if c, err := ir.DecodePowerLevels(powerLevels.Content(), false); err == nil {
			return c.UserLevel(user)
		}
	}
	if create != nil {
		if c, err := ir.DecodeCreate(create.Content()); err == nil && c.Creator == user {
			return ir.DefaultCreatorLevel
		}
	}
	return 0
}

// levelAuthorizer accepts an event when its sender's level in the current
// power levels meets the level required for its type. Rooms without power
// levels accept everything. IDs in deny are always rejected.
type levelAuthorizer struct {
	deny    EventSet
	checked []ir.EventID
}

func (a *levelAuthorizer) Check(ctx context.Context, _ *rules.Rules, candidate Event, state StateLookup) (Verdict, error) {
	a.checked = append(a.checked, candidate.EventID())
	if a.deny.Has(candidate.EventID()) {
		return Reject, nil
	}

	if sk := candidate.StateKey(); candidate.Type() == ir.TypeMember && sk != nil && *sk == candidate.Sender() {
		return Accept, nil
	}

	pl, err := state.StateEvent(ctx, ir.TypePowerLevels, "")
	if err != nil {
		return Reject, err
	}
	if pl == nil {
		return Accept, nil
	}
	c, err := ir.DecodePowerLevels(pl.Content(), false)
	if err != nil {
		return Reject, nil
	}
	if c.UserLevel(candidate.Sender()) < c.EventLevel(candidate.Type(), candidate.StateKey() != nil) {
		return Reject, nil
	}
	return Accept, nil
}

func testRules(t *testing.T) *rules.Rules {
	t.Helper()
	rs, err := rules.Lookup("10")
	require.NoError(t, err)
	return rs
}

func newTestResolver(auth Authorizer) *Resolver {
	return New(auth, levelPowers{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// baseRoom builds create, alice's join, power levels giving alice 100 and
// bob's join.
func baseRoom() *testutil.Room {
	room := testutil.NewRoom("!room:example.org")
	room.Create("$create", alice)
	room.Member("$alice-join", alice, alice, ir.MembershipJoin, "$create")
	room.PowerLevels("$pl0", alice, map[string]int64{alice: 100}, "$create", "$alice-join")
	room.Member("$bob-join", bob, bob, ir.MembershipJoin, "$create", "$pl0")
	return room
}

func baseState() StateMap {
	return StateMap{
		ir.Slot(ir.TypeCreate, ""):      "$create",
		ir.Slot(ir.TypeMember, alice):   "$alice-join",
		ir.Slot(ir.TypePowerLevels, ""): "$pl0",
		ir.Slot(ir.TypeMember, bob):     "$bob-join",
	}
}

func with(state StateMap, eventType, stateKey string, id ir.EventID) StateMap {
	out := state.Clone()
	out[ir.Slot(eventType, stateKey)] = id
	return out
}

func chainsFor(t *testing.T, room *testutil.Room, snapshots ...StateMap) []EventSet {
	t.Helper()
	chains := make([]EventSet, len(snapshots))
	for i, snap := range snapshots {
		chain, err := StateAuthChain(context.Background(), roomFetcher(room), snap)
		require.NoError(t, err)
		chains[i] = chain
	}
	return chains
}

func resolveAll(t *testing.T, room *testutil.Room, auth Authorizer, snapshots ...StateMap) (StateMap, *Trace) {
	t.Helper()
	state, trace, err := newTestResolver(auth).Explain(
		context.Background(), testRules(t), snapshots, chainsFor(t, room, snapshots...), roomFetcher(room))
	require.NoError(t, err)
	return state, trace
}
