package holdem

import "holdem-chips/card"

type SeatSnapshot struct {
	UserID       string
	Chair        uint16
	Stack        int64
	Committed    int64
	BetRound     int64
	InHand       bool
	Folded       bool
	AllIn        bool
	SitOut       bool
	WaitForBB    bool
	MissedBlinds int
	LastAction   ActionType
	Hole         card.CardList
}

type Snapshot struct {
	HandNo  uint32
	Phase   Phase
	Settled bool

	Button     uint16
	SmallBlind uint16
	BigBlind   uint16
	ToAct      uint16

	CurrentBet int64
	MinRaise   int64
	Pot        int64

	Board card.CardList
	Pots  []Pot
	Seats []SeatSnapshot

	Result *SettlementResult // pending or last applied result
}

// Snapshot copies the full table state, hole cards included. Callers that
// show it to players must redact (see table views).
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		HandNo:     g.handNo,
		Phase:      g.phase,
		Settled:    g.pending == nil,
		Button:     g.button,
		SmallBlind: g.sbChair,
		BigBlind:   g.bbChair,
		ToAct:      g.toAct,
		CurrentBet: g.currentBet,
		MinRaise:   g.minRaise,
		Pot:        g.pot,
		Board:      g.board.Clone(),
		Result:     g.pending,
	}
	if s.Result == nil {
		s.Result = g.last
	}

	contribs := make([]Contribution, 0, len(g.participants))
	for _, chair := range g.chairsLocked() {
		p := g.seats[chair]
		s.Seats = append(s.Seats, SeatSnapshot{
			UserID:       p.UserID,
			Chair:        chair,
			Stack:        p.stack,
			Committed:    p.committed,
			BetRound:     p.betRound,
			InHand:       p.inHand,
			Folded:       p.folded,
			AllIn:        p.allIn,
			SitOut:       p.sitOut,
			WaitForBB:    p.waitForBB,
			MissedBlinds: p.missedBlinds,
			LastAction:   p.lastAction,
			Hole:         p.hole.Clone(),
		})
		if p.inHand {
			contribs = append(contribs, Contribution{Chair: chair, Amount: p.committed, Live: p.live()})
		}
	}
	if g.phase.Betting() {
		s.Pots = BuildPots(contribs)
	}
	return s
}
