package holdem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdem-chips/card"
)

func headsUp(t *testing.T, cfg Config) *Game {
	t.Helper()
	cfg.ForcedButton = buttonAt(0)
	return newTestGame(t, cfg, seatDef{0, "a", 100}, seatDef{1, "b", 100})
}

func TestHeadsUp_ButtonPostsSmallBlindAndActsFirst(t *testing.T) {
	g := headsUp(t, Config{})
	start, err := g.StartHand()
	require.NoError(t, err)

	assert.Equal(t, uint16(0), start.Button)
	assert.Equal(t, uint16(0), start.SmallBlind)
	assert.Equal(t, uint16(1), start.BigBlind)
	assert.Equal(t, uint16(0), start.ToAct)
	assert.Equal(t, int64(99), stackOf(g, 0))
	assert.Equal(t, int64(98), stackOf(g, 1))
	assert.Equal(t, int64(3), g.Pot())
	assert.Len(t, g.Seat(0).Hole(), 2)
	assert.Len(t, g.Seat(1).Hole(), 2)
}

func TestHeadsUp_SmallBlindFoldRefundsUncalledBlind(t *testing.T) {
	g := headsUp(t, Config{})
	_, err := g.StartHand()
	require.NoError(t, err)

	res := mustAct(t, g, 0, PlayerActionTypeFold, 0)
	assert.True(t, res.HandEnded)
	assert.Equal(t, []Refund{{Chair: 1, Amount: 1}}, res.Refunds)

	pending := g.PendingSettlement()
	require.NotNil(t, pending)
	assert.False(t, pending.Showdown)
	assert.Equal(t, int64(2), pending.Payouts[1])

	// stacks untouched until the ledger accepted the settlement
	assert.Equal(t, int64(99), stackOf(g, 1))
	_, err = g.StartHand()
	assert.ErrorIs(t, err, ErrSettlementPending)

	_, err = g.ApplySettlement()
	require.NoError(t, err)
	assert.Equal(t, int64(99), stackOf(g, 0))
	assert.Equal(t, int64(101), stackOf(g, 1))
	assert.Equal(t, int64(200), chipsOnTable(g))
}

func TestHeadsUp_LimpRaiseFold(t *testing.T) {
	g := headsUp(t, Config{})
	_, err := g.StartHand()
	require.NoError(t, err)

	mustAct(t, g, 0, PlayerActionTypeCall, 0)
	mustAct(t, g, 1, PlayerActionTypeRaise, 10)
	res := mustAct(t, g, 0, PlayerActionTypeFold, 0)
	assert.Equal(t, []Refund{{Chair: 1, Amount: 8}}, res.Refunds)

	_, err = g.ApplySettlement()
	require.NoError(t, err)
	assert.Equal(t, int64(98), stackOf(g, 0))
	assert.Equal(t, int64(102), stackOf(g, 1))
}

func TestBigBlindGetsOptionAndActsFirstPostflop(t *testing.T) {
	g := headsUp(t, Config{})
	_, err := g.StartHand()
	require.NoError(t, err)

	mustAct(t, g, 0, PlayerActionTypeCall, 0)
	require.Equal(t, uint16(1), g.ToAct())
	legal := g.LegalActions(1)
	assert.True(t, legal.Allows(PlayerActionTypeCheck))
	assert.False(t, legal.Allows(PlayerActionTypeCall))

	res := mustAct(t, g, 1, PlayerActionTypeCheck, 0)
	assert.True(t, res.StreetChanged)
	assert.Equal(t, PhaseFlop, res.Phase)
	assert.Len(t, g.Snapshot().Board, 3)
	assert.Equal(t, uint16(1), g.ToAct())
}

func TestThreeHanded_FirstToActAfterBigBlind(t *testing.T) {
	g := newTestGame(t, Config{ForcedButton: buttonAt(0)},
		seatDef{0, "a", 100}, seatDef{1, "b", 100}, seatDef{2, "c", 100})
	start, err := g.StartHand()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), start.SmallBlind)
	assert.Equal(t, uint16(2), start.BigBlind)
	assert.Equal(t, uint16(0), start.ToAct)

	mustAct(t, g, 0, PlayerActionTypeCall, 0)
	mustAct(t, g, 1, PlayerActionTypeCall, 0)
	require.Equal(t, uint16(2), g.ToAct())
	mustAct(t, g, 2, PlayerActionTypeCheck, 0)

	// flop: first able seat after the button
	assert.Equal(t, PhaseFlop, g.Phase())
	assert.Equal(t, uint16(1), g.ToAct())
}

func TestIllegalActionsDoNotMutate(t *testing.T) {
	g := headsUp(t, Config{})
	_, err := g.StartHand()
	require.NoError(t, err)
	before := g.Snapshot()

	_, err = g.Act(1, PlayerActionTypeCheck, 0)
	assert.ErrorIs(t, err, ErrOutOfTurn)

	_, err = g.Act(0, PlayerActionTypeCheck, 0)
	assert.ErrorIs(t, err, ErrIllegalAction)
	var iae *IllegalActionError
	assert.True(t, errors.As(err, &iae))

	// min raise is to 4
	_, err = g.Act(0, PlayerActionTypeRaise, 3)
	assert.ErrorIs(t, err, ErrIllegalAction)

	_, err = g.Act(0, PlayerActionTypeRaise, 150)
	assert.ErrorIs(t, err, ErrIllegalAction)

	assert.Equal(t, before, g.Snapshot())
}

func TestMinRaiseTracksLastIncrement(t *testing.T) {
	g := headsUp(t, Config{})
	_, err := g.StartHand()
	require.NoError(t, err)

	mustAct(t, g, 0, PlayerActionTypeRaise, 4)
	legal := g.LegalActions(1)
	assert.Equal(t, int64(6), legal.MinRaiseTo)
	assert.Equal(t, int64(100), legal.MaxRaiseTo)

	_, err = g.Act(1, PlayerActionTypeRaise, 5)
	assert.ErrorIs(t, err, ErrIllegalAction)
	mustAct(t, g, 1, PlayerActionTypeRaise, 10)
	assert.Equal(t, int64(16), g.LegalActions(0).MinRaiseTo)
}

func TestPostflopBetRules(t *testing.T) {
	g := headsUp(t, Config{})
	_, err := g.StartHand()
	require.NoError(t, err)
	mustAct(t, g, 0, PlayerActionTypeCall, 0)
	mustAct(t, g, 1, PlayerActionTypeCheck, 0)
	require.Equal(t, PhaseFlop, g.Phase())

	_, err = g.Act(1, PlayerActionTypeCall, 0)
	assert.ErrorIs(t, err, ErrIllegalAction, "nothing to call")
	_, err = g.Act(1, PlayerActionTypeBet, 1)
	assert.ErrorIs(t, err, ErrIllegalAction, "bet below the big blind")

	mustAct(t, g, 1, PlayerActionTypeBet, 6)
	res := mustAct(t, g, 0, PlayerActionTypeCall, 0)
	assert.Equal(t, int64(6), res.Paid)
	assert.Equal(t, PhaseTurn, g.Phase())
	assert.Equal(t, int64(16), g.Pot())
}

func TestIncompleteAllInDoesNotReopenRaising(t *testing.T) {
	g := newTestGame(t, Config{SmallBlind: 5, BigBlind: 10, MinBuyIn: 10, MaxBuyIn: 2000, ForcedButton: buttonAt(0)},
		seatDef{0, "a", 1000}, seatDef{1, "b", 1000}, seatDef{2, "c", 18})
	_, err := g.StartHand()
	require.NoError(t, err)

	mustAct(t, g, 0, PlayerActionTypeCall, 0)
	mustAct(t, g, 1, PlayerActionTypeCall, 0)
	// c raises all-in to 18: 8 over, less than a full raise
	mustAct(t, g, 2, PlayerActionTypeAllin, 0)

	require.Equal(t, uint16(0), g.ToAct())
	legal := g.LegalActions(0)
	assert.Equal(t, []ActionType{PlayerActionTypeFold, PlayerActionTypeCall}, legal.Actions)
	assert.Equal(t, int64(8), legal.CallAmount)

	_, err = g.Act(0, PlayerActionTypeRaise, 40)
	assert.ErrorIs(t, err, ErrIllegalAction)

	mustAct(t, g, 0, PlayerActionTypeCall, 0)
	mustAct(t, g, 1, PlayerActionTypeCall, 0)
	assert.Equal(t, PhaseFlop, g.Phase())
	assert.Equal(t, int64(54), g.Pot())
	assert.True(t, g.LegalActions(g.ToAct()).Allows(PlayerActionTypeBet))
}

func TestAllInPreflopRunsOutBoard(t *testing.T) {
	g := headsUp(t, Config{})
	_, err := g.StartHand()
	require.NoError(t, err)

	mustAct(t, g, 0, PlayerActionTypeAllin, 0)
	legal := g.LegalActions(1)
	assert.Equal(t, []ActionType{PlayerActionTypeFold, PlayerActionTypeCall, PlayerActionTypeAllin}, legal.Actions)

	res := mustAct(t, g, 1, PlayerActionTypeCall, 0)
	assert.True(t, res.HandEnded)
	assert.Equal(t, PhaseComplete, g.Phase())

	pending := g.PendingSettlement()
	require.NotNil(t, pending)
	assert.True(t, pending.Showdown)
	assert.Len(t, pending.Board, 5)
	assert.Equal(t, int64(200), pending.TotalPot())

	_, err = g.ApplySettlement()
	require.NoError(t, err)
	assert.Equal(t, int64(200), chipsOnTable(g))
}

func TestShowdown_BestHandWins(t *testing.T) {
	// deal order from the small blind (button, chair 0): a b a b, burn, flop, burn, turn, burn, river
	deck := deckWithPrefix(card.MustParseList("As Ks Ah Kh 8c 2c 7d 9h 8d Jc 8h 3s"))
	g := headsUp(t, Config{DeckOverride: deck})
	_, err := g.StartHand()
	require.NoError(t, err)

	mustAct(t, g, 0, PlayerActionTypeCall, 0)
	mustAct(t, g, 1, PlayerActionTypeCheck, 0)
	for g.PendingSettlement() == nil {
		mustAct(t, g, g.ToAct(), PlayerActionTypeCheck, 0)
	}

	res, err := g.ApplySettlement()
	require.NoError(t, err)
	assert.Equal(t, card.MustParseList("2c 7d 9h Jc 3s"), res.Board)
	assert.Equal(t, []uint16{0}, res.Pots[0].Winners)
	a, ok := res.SeatByChair(0)
	require.True(t, ok)
	assert.Equal(t, "Pair of Aces", a.Hand.Label)
	assert.Equal(t, int64(2), a.Net())
	assert.Equal(t, int64(102), stackOf(g, 0))
	assert.Equal(t, int64(98), stackOf(g, 1))
}

func TestShowdown_SplitWithRakeGivesOddChipClockwise(t *testing.T) {
	deck := deckWithPrefix(card.MustParseList("2c 4c 3d 5d 8c As Ks Qs 8d Js 8h Ts"))
	g := headsUp(t, Config{DeckOverride: deck, RakeBps: 2500})
	_, err := g.StartHand()
	require.NoError(t, err)

	mustAct(t, g, 0, PlayerActionTypeCall, 0)
	mustAct(t, g, 1, PlayerActionTypeCheck, 0)
	for g.PendingSettlement() == nil {
		mustAct(t, g, g.ToAct(), PlayerActionTypeCheck, 0)
	}

	res, err := g.ApplySettlement()
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rake)
	require.Len(t, res.Pots, 1)
	// chair 1 is first clockwise from the button
	assert.Equal(t, []uint16{1, 0}, res.Pots[0].Winners)
	assert.Equal(t, []int64{2, 1}, res.Pots[0].Shares)
	assert.Equal(t, int64(99), stackOf(g, 0))
	assert.Equal(t, int64(100), stackOf(g, 1))
	assert.Equal(t, int64(199), chipsOnTable(g))
}

func TestForfeitOutOfTurnEndsHand(t *testing.T) {
	g := headsUp(t, Config{})
	_, err := g.StartHand()
	require.NoError(t, err)

	res, err := g.Forfeit(1)
	require.NoError(t, err)
	assert.True(t, res.HandEnded)
	// the big blind's uncalled chip goes back before the pot is awarded
	assert.Equal(t, []Refund{{Chair: 1, Amount: 1}}, res.Refunds)
	assert.Equal(t, int64(2), g.PendingSettlement().Payouts[0])
}
