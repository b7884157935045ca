package holdem

import (
	"testing"

	"github.com/sanity-io/litter"
	"github.com/stretchr/testify/require"

	"holdem-chips/card"
)

// deckWithPrefix puts prefix on top and the rest of a fresh deck after it.
func deckWithPrefix(prefix card.CardList) card.CardList {
	out := prefix.Clone()
	for _, c := range card.NewDeck() {
		if !prefix.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}

type seatDef struct {
	chair uint16
	user  string
	stack int64
}

func newTestGame(t *testing.T, cfg Config, seats ...seatDef) *Game {
	t.Helper()
	if cfg.SmallBlind == 0 {
		cfg.SmallBlind, cfg.BigBlind = 1, 2
	}
	if cfg.MinBuyIn == 0 {
		cfg.MinBuyIn, cfg.MaxBuyIn = 20, 200
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	g, err := NewGame(cfg)
	require.NoError(t, err)
	for _, s := range seats {
		require.NoError(t, g.SitDown(s.chair, s.user, s.stack))
	}
	return g
}

func buttonAt(c uint16) *uint16 { return &c }

func mustAct(t *testing.T, g *Game, chair uint16, a ActionType, amount int64) *ActionResult {
	t.Helper()
	res, err := g.Act(chair, a, amount)
	if err != nil {
		t.Fatalf("act chair=%d %s %d: %v\nsnapshot: %s", chair, a, amount, err, litter.Sdump(g.Snapshot()))
	}
	return res
}

// foldAround folds whoever is to act until the hand ends, then applies the settlement.
func foldAround(t *testing.T, g *Game) *SettlementResult {
	t.Helper()
	for g.PendingSettlement() == nil {
		mustAct(t, g, g.ToAct(), PlayerActionTypeFold, 0)
	}
	res, err := g.ApplySettlement()
	require.NoError(t, err)
	return res
}

func stackOf(g *Game, chair uint16) int64 { return g.Seat(chair).Stack() }

// chipsOnTable is every chip still owned by seats or in the pot.
func chipsOnTable(g *Game) int64 {
	snap := g.Snapshot()
	total := snap.Pot
	for _, s := range snap.Seats {
		total += s.Stack
	}
	return total
}
