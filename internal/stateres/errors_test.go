package stateres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stateres/internal/ir"
)

func TestErrorPredicatesSeeThroughWrapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"arity", NewArityError(2, 1), IsArityError},
		{"not a state event", NewNotAStateEventError("$m"), IsNotAStateEventError},
		{"fetch missing", NewFetchMissingError("$x", ErrEventNotFound), IsFetchMissingError},
		{"cycle", NewCycleError([]ir.EventID{"$a", "$b"}), IsCycleError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("resolve room: %w", tt.err)
			assert.True(t, tt.is(wrapped))
			assert.False(t, tt.is(fmt.Errorf("plain")))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "ARITY_MISMATCH: 2 state snapshots but 1 auth chains", NewArityError(2, 1).Error())
	assert.Equal(t, "FETCH_MISSING: referenced event is not available (event=$x)",
		NewFetchMissingError("$x", ErrEventNotFound).Error())
	assert.Equal(t, "CYCLE_DETECTED: auth graph has a cycle through 2 events (event=$a)",
		NewCycleError([]ir.EventID{"$a", "$b"}).Error())
}

func TestFetchMissingUnwrapsToSentinel(t *testing.T) {
	err := NewFetchMissingError("$x", fmt.Errorf("store: %w", ErrEventNotFound))
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestMemoFetcher_CachesAndMapsNotFound(t *testing.T) {
	calls := 0
	room := baseRoom()
	inner := roomFetcher(room)
	f := newMemoFetcher(FetchFunc(func(ctx context.Context, id ir.EventID) (Event, error) {
		calls++
		return inner.Fetch(ctx, id)
	}))

	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), "$create")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)

	_, err := f.Fetch(context.Background(), "$nope")
	assert.True(t, IsFetchMissingError(err))

	assert.Same(t, f, newMemoFetcher(f))
}

func TestStateLookup_SkipsRejectedAuthEvents(t *testing.T) {
	room := baseRoom()
	bad := room.PowerLevels("$pl-bad", bob, map[string]int64{bob: 100}, "$create")
	bad.IsRejected = true
	cand := room.State("$topic", "m.room.topic", "", bob, `{}`, "$create", "$pl-bad", "$bob-join")

	r := &run{fetch: newMemoFetcher(roomFetcher(room))}
	lookup, err := r.stateLookupFor(context.Background(), cand, StateMap{})
	require.NoError(t, err)

	pl, err := lookup.StateEvent(context.Background(), ir.TypePowerLevels, "")
	require.NoError(t, err)
	assert.Nil(t, pl)

	member, err := lookup.StateEvent(context.Background(), ir.TypeMember, bob)
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, ir.EventID("$bob-join"), member.EventID())
}

func TestStateLookup_WorkingStateWins(t *testing.T) {
	room := baseRoom()
	room.PowerLevels("$pl1", alice, map[string]int64{alice: 100}, "$create", "$pl0")
	cand := room.State("$topic", "m.room.topic", "", alice, `{}`, "$create", "$pl0", "$alice-join")

	r := &run{fetch: newMemoFetcher(roomFetcher(room))}
	lookup, err := r.stateLookupFor(context.Background(), cand, StateMap{ir.Slot(ir.TypePowerLevels, ""): "$pl1"})
	require.NoError(t, err)

	pl, err := lookup.StateEvent(context.Background(), ir.TypePowerLevels, "")
	require.NoError(t, err)
	assert.Equal(t, ir.EventID("$pl1"), pl.EventID())
}
