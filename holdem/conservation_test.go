package holdem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"holdem-chips/card"
)

// Random legal play over many hands never creates or destroys chips.
func TestRandomPlayConservesChips(t *testing.T) {
	g := newTestGame(t, Config{RakeBps: 500, RakeCap: 5},
		seatDef{0, "a", 200}, seatDef{2, "b", 150}, seatDef{3, "c", 80}, seatDef{6, "d", 120})
	rng, err := card.NewShuffler(7)
	require.NoError(t, err)

	const initial = int64(200 + 150 + 80 + 120)
	var rake, added int64
	for hand := 0; hand < 300; hand++ {
		// top up busted seats between hands to keep the table going
		for _, c := range g.Chairs() {
			if g.Seat(c).Stack() < 2 {
				require.NoError(t, g.AddChips(c, 100))
				added += 100
			}
		}
		if _, err := g.StartHand(); err != nil {
			t.Fatalf("hand %d: %v", hand, err)
		}
		for steps := 0; g.PendingSettlement() == nil; steps++ {
			require.Less(t, steps, 200, "hand %d does not terminate", hand)
			chair := g.ToAct()
			legal := g.LegalActions(chair)
			require.NotEmpty(t, legal.Actions)
			a := legal.Actions[rng.Intn(len(legal.Actions))]
			var amount int64
			if a == PlayerActionTypeBet || a == PlayerActionTypeRaise {
				amount = legal.MinRaiseTo + int64(rng.Intn(int(legal.MaxRaiseTo-legal.MinRaiseTo)))
			}
			mustAct(t, g, chair, a, amount)
		}
		res, err := g.ApplySettlement()
		require.NoError(t, err)
		require.LessOrEqual(t, res.Rake, int64(5))
		rake += res.Rake
		require.Equal(t, initial+added, chipsOnTable(g)+rake, "hand %d", hand)
	}
}
