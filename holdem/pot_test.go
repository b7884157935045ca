package holdem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdem-chips/card"
)

func TestBuildPots(t *testing.T) {
	cases := []struct {
		name     string
		contribs []Contribution
		want     []Pot
	}{
		{
			name:     "layered all-ins",
			contribs: []Contribution{{0, 50, true}, {1, 50, true}, {2, 25, true}},
			want:     []Pot{{75, []uint16{0, 1, 2}}, {50, []uint16{0, 1}}},
		},
		{
			name:     "folded contributor is not eligible",
			contribs: []Contribution{{0, 50, false}, {1, 50, true}, {2, 25, true}},
			want:     []Pot{{75, []uint16{1, 2}}, {50, []uint16{1}}},
		},
		{
			name:     "same eligibility merges",
			contribs: []Contribution{{0, 10, false}, {1, 30, true}, {2, 30, true}},
			want:     []Pot{{70, []uint16{1, 2}}},
		},
		{
			name:     "dead top layer joins previous pot",
			contribs: []Contribution{{0, 50, false}, {1, 20, true}},
			want:     []Pot{{70, []uint16{1}}},
		},
		{
			name:     "nothing committed",
			contribs: []Contribution{{0, 0, true}, {1, 0, true}},
			want:     nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BuildPots(tc.contribs))
		})
	}
}

func TestRake(t *testing.T) {
	assert.Equal(t, int64(50), computeRake(1000, 500, 100))
	assert.Equal(t, int64(30), computeRake(1000, 500, 30))
	assert.Equal(t, int64(0), computeRake(19, 500, 100))
	assert.Equal(t, int64(0), computeRake(1000, 0, 100))

	pots := []Pot{{Amount: 20}, {Amount: 50}}
	cuts := takeRake(pots, 30)
	assert.Equal(t, []int64{20, 10}, cuts)
	assert.Equal(t, int64(0), pots[0].Amount)
	assert.Equal(t, int64(40), pots[1].Amount)
}

// Three stacks of 100/50/25 all-in preflop: the 100 stack gets its uncalled
// 50 back, main pot 75 for everyone, side pot 50 between the two bigger stacks.
func TestSidePots_ThreeWayAllIn(t *testing.T) {
	// deal order from the small blind (chair 1): b c a b c a
	deck := deckWithPrefix(card.MustParseList("Qs As Ks Qd Ad Kd 8c 2c 7h 9d 8d 4c 8h 3h"))
	g := newTestGame(t, Config{ForcedButton: buttonAt(0), DeckOverride: deck},
		seatDef{0, "a", 100}, seatDef{1, "b", 50}, seatDef{2, "c", 25})
	_, err := g.StartHand()
	require.NoError(t, err)

	mustAct(t, g, 0, PlayerActionTypeAllin, 0)
	mustAct(t, g, 1, PlayerActionTypeAllin, 0)
	res := mustAct(t, g, 2, PlayerActionTypeAllin, 0)
	require.True(t, res.HandEnded)
	assert.Equal(t, []Refund{{Chair: 0, Amount: 50}}, res.Refunds)

	pending := g.PendingSettlement()
	require.Len(t, pending.Pots, 2)
	assert.Equal(t, int64(75), pending.Pots[0].Amount)
	assert.Equal(t, []uint16{0, 1, 2}, pending.Pots[0].Eligible)
	assert.Equal(t, []uint16{2}, pending.Pots[0].Winners)
	assert.Equal(t, int64(50), pending.Pots[1].Amount)
	assert.Equal(t, []uint16{0, 1}, pending.Pots[1].Eligible)
	assert.Equal(t, []uint16{0}, pending.Pots[1].Winners)

	_, err = g.ApplySettlement()
	require.NoError(t, err)
	assert.Equal(t, int64(100), stackOf(g, 0))
	assert.Equal(t, int64(0), stackOf(g, 1))
	assert.Equal(t, int64(75), stackOf(g, 2))
	assert.Equal(t, int64(175), chipsOnTable(g))
}
