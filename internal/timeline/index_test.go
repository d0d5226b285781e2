package timeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/stateres"
)

func TestIndex_FirstWriteWins(t *testing.T) {
	first := &ir.PDU{ID: "$a", SenderID: alice}
	second := &ir.PDU{ID: "$a", SenderID: bob}
	ix := NewIndex(first, second, &ir.PDU{ID: "$b"})

	assert.Equal(t, 2, ix.Len())
	got, ok := ix.Get("$a")
	require.True(t, ok)
	assert.Equal(t, alice, got.Sender())

	ids := make([]ir.EventID, 0, 2)
	for _, p := range ix.PDUs() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []ir.EventID{"$a", "$b"}, ids)
}

func TestIndex_FetchMissing(t *testing.T) {
	ix := NewIndex()
	_, err := ix.Fetch(context.Background(), "$missing")
	require.ErrorIs(t, err, stateres.ErrEventNotFound)
}
