package stateres

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/testutil"
)

func TestAuthChain_Transitive(t *testing.T) {
	room := baseRoom()
	bobJoin, _ := room.Get("$bob-join")

	chain, err := AuthChain(context.Background(), roomFetcher(room), bobJoin)
	require.NoError(t, err)
	assert.Equal(t, []ir.EventID{"$alice-join", "$create", "$pl0"}, chain.Sorted())
}

func TestAuthChain_ExcludesStartEvenInCycle(t *testing.T) {
	room := testutil.NewRoom("!room:example.org")
	a := room.State("$a", ir.TypePowerLevels, "", alice, `{}`, "$b")
	room.State("$b", ir.TypeJoinRules, "", alice, `{}`, "$a")

	chain, err := AuthChain(context.Background(), roomFetcher(room), a)
	require.NoError(t, err)
	assert.Equal(t, []ir.EventID{"$b"}, chain.Sorted())
}

func TestAuthChain_DeepChainDoesNotRecurse(t *testing.T) {
	room := testutil.NewRoom("!room:example.org")
	room.Create("$e0", alice)
	const depth = 20000
	var last *ir.PDU
	prev := ir.EventID("$e0")
	for i := 1; i <= depth; i++ {
		id := ir.EventID("$e" + strconv.Itoa(i))
		last = room.State(id, "m.room.topic", "", alice, `{}`, prev)
		prev = id
	}

	chain, err := AuthChain(context.Background(), roomFetcher(room), last)
	require.NoError(t, err)
	assert.Len(t, chain, depth)
}

func TestAuthChain_MissingEvent(t *testing.T) {
	room := testutil.NewRoom("!room:example.org")
	ev := room.State("$a", ir.TypeJoinRules, "", alice, `{}`, "$gone")

	_, err := AuthChain(context.Background(), roomFetcher(room), ev)
	require.Error(t, err)
	id, ok := MissingEventID(err)
	require.True(t, ok)
	assert.Equal(t, ir.EventID("$gone"), id)
}

func TestStateAuthChain_Union(t *testing.T) {
	room := baseRoom()
	chain, err := StateAuthChain(context.Background(), roomFetcher(room), baseState())
	require.NoError(t, err)
	assert.Equal(t, []ir.EventID{"$alice-join", "$create", "$pl0"}, chain.Sorted())
}
