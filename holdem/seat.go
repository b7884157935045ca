package holdem

import "holdem-chips/card"

// Seat 座位。引擎字段只能由 Game 在持锁时修改。
type Seat struct {
	UserID string
	Chair  uint16

	stack     int64
	inHand    bool
	committed int64 // 本手累计投入
	betRound  int64 // 本街投入
	folded    bool
	allIn     bool
	hole      card.CardList

	acted       bool // 本街已表态
	raiseLocked bool // 不完整加注后不能再加注

	lastAction ActionType

	sitOut       bool
	waitForBB    bool
	missedBlinds int
}

func (s *Seat) Stack() int64           { return s.stack }
func (s *Seat) Committed() int64       { return s.committed }
func (s *Seat) BetRound() int64        { return s.betRound }
func (s *Seat) InHand() bool           { return s.inHand }
func (s *Seat) Folded() bool           { return s.folded }
func (s *Seat) AllIn() bool            { return s.allIn }
func (s *Seat) SitOut() bool           { return s.sitOut }
func (s *Seat) WaitForBB() bool        { return s.waitForBB }
func (s *Seat) MissedBlinds() int      { return s.missedBlinds }
func (s *Seat) LastAction() ActionType { return s.lastAction }
func (s *Seat) Hole() card.CardList    { return s.hole.Clone() }

// live: dealt in and not folded (can still win a pot).
func (s *Seat) live() bool { return s.inHand && !s.folded }

func (s *Seat) canAct() bool { return s.live() && !s.allIn }

// placeBet moves up to amount from the stack into the street bet.
func (s *Seat) placeBet(amount int64) int64 {
	if amount > s.stack {
		amount = s.stack
	}
	if amount <= 0 {
		return 0
	}
	s.stack -= amount
	s.betRound += amount
	s.committed += amount
	if s.stack == 0 {
		s.allIn = true
	}
	return amount
}

func (s *Seat) resetHand() {
	s.inHand = false
	s.committed = 0
	s.betRound = 0
	s.folded = false
	s.allIn = false
	s.hole = nil
	s.acted = false
	s.raiseLocked = false
	s.lastAction = PlayerActionTypeNone
}

func (s *Seat) resetStreet() {
	s.betRound = 0
	s.acted = false
	s.raiseLocked = false
}
