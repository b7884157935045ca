package holdem

import (
	"fmt"
	"sort"
	"sync"

	"holdem-chips/card"
)

type Game struct {
	cfg      Config
	shuffler *card.Shuffler

	mu sync.Mutex

	// seats
	seats map[uint16]*Seat

	// hand state
	handNo       uint32
	phase        Phase
	board        card.CardList
	deck         card.CardList
	burned       card.CardList
	participants []uint16 // 本手发牌的座位，按庄位后顺时针

	button    uint16
	buttonSet bool
	sbChair   uint16
	bbChair   uint16
	toAct     uint16

	pot        int64
	currentBet int64
	minRaise   int64 // 当前合法加注底线（delta）

	refunds []Refund
	pending *SettlementResult
	last    *SettlementResult
}

// Refund is an uncalled bet returned to its owner.
type Refund struct {
	Chair  uint16
	Amount int64
}

type BlindPost struct {
	Chair  uint16
	UserID string
	Amount int64
	Big    bool
}

// HandStart describes a freshly dealt hand.
type HandStart struct {
	HandNo       uint32
	Button       uint16
	SmallBlind   uint16
	BigBlind     uint16
	Participants []uint16
	Blinds       []BlindPost
	MissedBlind  []uint16 // sit-out chairs the big blind passed
	ToAct        uint16
	Ended        bool // everyone all-in on the blinds
}

type ActionResult struct {
	Chair         uint16
	Action        ActionType
	Paid          int64
	Phase         Phase
	StreetChanged bool
	HandEnded     bool
	Refunds       []Refund
}

func NewGame(cfg Config) (*Game, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sh, err := card.NewShuffler(cfg.Seed)
	if err != nil {
		return nil, err
	}
	return &Game{
		cfg:      cfg,
		shuffler: sh,
		seats:    make(map[uint16]*Seat, cfg.SeatCap),
		phase:    PhaseLobby,
		button:   InvalidChair,
		sbChair:  InvalidChair,
		bbChair:  InvalidChair,
		toAct:    InvalidChair,
	}, nil
}

func (g *Game) Config() Config { return g.cfg }

// SitDown seats a user with an initial stack.
func (g *Game) SitDown(chair uint16, userID string, stack int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if int(chair) >= g.cfg.SeatCap {
		return fmt.Errorf("invalid chair %d", chair)
	}
	if stack < 0 {
		return fmt.Errorf("stack must be >= 0")
	}
	if g.seats[chair] != nil {
		return ErrSeatTaken
	}
	if _, ok := g.chairOfLocked(userID); ok {
		return ErrAlreadySeated
	}
	g.seats[chair] = &Seat{UserID: userID, Chair: chair, stack: stack}
	return nil
}

// StandUp removes a seat and returns its stack. Seats dealt into a running
// hand cannot stand up until the hand is settled.
func (g *Game) StandUp(chair uint16) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.seats[chair]
	if s == nil {
		return 0, ErrSeatEmpty
	}
	if g.handActiveLocked() && s.inHand {
		return 0, ErrHandInProgress
	}
	delete(g.seats, chair)
	return s.stack, nil
}

// AddChips tops up a stack between hands.
func (g *Game) AddChips(chair uint16, amount int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.seats[chair]
	if s == nil {
		return ErrSeatEmpty
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be > 0")
	}
	if g.handActiveLocked() {
		return ErrHandInProgress
	}
	s.stack += amount
	return nil
}

// SetSitOut toggles sit-out. Sitting back in after the first hand waits for the big blind.
func (g *Game) SetSitOut(chair uint16, sitOut bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.seats[chair]
	if s == nil {
		return ErrSeatEmpty
	}
	if sitOut {
		s.sitOut = true
		s.waitForBB = false
		return nil
	}
	if !s.sitOut {
		return nil
	}
	s.sitOut = false
	s.missedBlinds = 0
	s.waitForBB = g.handNo > 0
	return nil
}

func (g *Game) Seat(chair uint16) *Seat {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seats[chair]
}

func (g *Game) ChairOf(userID string) (uint16, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chairOfLocked(userID)
}

func (g *Game) chairOfLocked(userID string) (uint16, bool) {
	for c, s := range g.seats {
		if s.UserID == userID {
			return c, true
		}
	}
	return InvalidChair, false
}

// FreeChair returns the lowest empty chair.
func (g *Game) FreeChair() (uint16, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for c := uint16(0); int(c) < g.cfg.SeatCap; c++ {
		if g.seats[c] == nil {
			return c, true
		}
	}
	return InvalidChair, false
}

func (g *Game) SeatCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seats)
}

// Chairs lists occupied chairs in ascending order.
func (g *Game) Chairs() []uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chairsLocked()
}

func (g *Game) chairsLocked() []uint16 {
	out := make([]uint16, 0, len(g.seats))
	for c := range g.seats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *Game) HandNo() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handNo
}

func (g *Game) ToAct() uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.toAct
}

func (g *Game) Pot() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pot
}

// HandActive is true from the deal until the settlement is applied.
func (g *Game) HandActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handActiveLocked()
}

func (g *Game) handActiveLocked() bool {
	return g.phase.Betting() || g.phase == PhaseShowdown || g.pending != nil
}

// PendingSettlement is the computed but not yet applied result, if any.
func (g *Game) PendingSettlement() *SettlementResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

func (g *Game) LastResult() *SettlementResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func (g *Game) nextChairLocked(from uint16, pred func(*Seat) bool) (uint16, bool) {
	n := uint16(g.cfg.SeatCap)
	if from >= n {
		from = n - 1
	}
	for i := uint16(1); i <= n; i++ {
		c := (from + i) % n
		if s := g.seats[c]; s != nil && pred(s) {
			return c, true
		}
	}
	return InvalidChair, false
}

// StartHand selects the button and blinds, deals hole cards and posts blinds.
func (g *Game) StartHand() (*HandStart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending != nil {
		return nil, ErrSettlementPending
	}
	if g.phase.Betting() || g.phase == PhaseShowdown {
		return nil, ErrHandInProgress
	}

	candidate := func(s *Seat) bool { return s.stack > 0 && !s.sitOut }
	active := func(s *Seat) bool { return candidate(s) && !s.waitForBB }

	nonWaiting := 0
	for _, s := range g.seats {
		if active(s) {
			nonWaiting++
		}
	}
	if nonWaiting < 2 {
		// 等待大盲的人不足以开局时直接放行
		for _, s := range g.seats {
			if candidate(s) && s.waitForBB {
				s.waitForBB = false
				nonWaiting++
			}
		}
	}
	if nonWaiting < 2 {
		return nil, ErrNotEnoughPlayers
	}

	// button
	var button uint16
	switch {
	case !g.buttonSet && g.cfg.ForcedButton != nil && g.seats[*g.cfg.ForcedButton] != nil && active(g.seats[*g.cfg.ForcedButton]):
		button = *g.cfg.ForcedButton
	case !g.buttonSet:
		var chairs []uint16
		for _, c := range g.chairsLocked() {
			if active(g.seats[c]) {
				chairs = append(chairs, c)
			}
		}
		button = chairs[g.shuffler.Intn(len(chairs))]
	default:
		button, _ = g.nextChairLocked(g.button, active)
	}

	// A waiting seat is dealt in only when the big blind lands on it.
	sbT, _ := g.nextChairLocked(button, active)
	bbT, _ := g.nextChairLocked(sbT, candidate)

	var parts []uint16
	n := uint16(g.cfg.SeatCap)
	for i := uint16(1); i <= n; i++ {
		c := (button + i) % n
		s := g.seats[c]
		if s != nil && (active(s) || (c == bbT && candidate(s))) {
			parts = append(parts, c)
		}
	}

	var sb, bb uint16
	if len(parts) == 2 {
		sb, bb = button, parts[0]
	} else {
		sb, bb = parts[0], parts[1]
	}

	need := 2*len(parts) + 8
	var deck card.CardList
	if len(g.cfg.DeckOverride) > 0 {
		if len(g.cfg.DeckOverride) < need {
			return nil, fmt.Errorf("deck override has %d cards, need %d", len(g.cfg.DeckOverride), need)
		}
		deck = g.cfg.DeckOverride.Clone()
	} else {
		deck = g.shuffler.ShuffledDeck()
	}

	start := &HandStart{Button: button, SmallBlind: sb, BigBlind: bb}

	// 大盲经过的坐出座位记一次缺盲
	for c := (sb + 1) % n; c != bb; c = (c + 1) % n {
		if s := g.seats[c]; s != nil && s.sitOut {
			s.missedBlinds++
			start.MissedBlind = append(start.MissedBlind, c)
		}
	}

	g.handNo++
	g.phase = PhasePreflop
	g.button, g.buttonSet = button, true
	g.sbChair, g.bbChair = sb, bb
	g.board, g.burned = nil, nil
	g.deck = deck
	g.participants = parts
	g.pot = 0
	g.currentBet = 0
	g.minRaise = g.cfg.BigBlind
	g.refunds = nil
	g.last = nil
	g.toAct = InvalidChair

	for _, s := range g.seats {
		s.resetHand()
	}
	for _, c := range parts {
		s := g.seats[c]
		s.inHand = true
		s.waitForBB = false
		s.missedBlinds = 0
	}

	// 从小盲开始逐张发两轮
	order := g.orderFromLocked(sb)
	for round := 0; round < 2; round++ {
		for _, c := range order {
			cs, _ := g.deck.PopCards(1)
			g.seats[c].hole = append(g.seats[c].hole, cs...)
		}
	}

	sbSeat, bbSeat := g.seats[sb], g.seats[bb]
	sbPaid := sbSeat.placeBet(g.cfg.SmallBlind)
	bbPaid := bbSeat.placeBet(g.cfg.BigBlind)
	g.pot = sbPaid + bbPaid
	g.currentBet = max(sbSeat.betRound, bbSeat.betRound)
	start.Blinds = []BlindPost{
		{Chair: sb, UserID: sbSeat.UserID, Amount: sbPaid},
		{Chair: bb, UserID: bbSeat.UserID, Amount: bbPaid, Big: true},
	}

	g.proceedLocked(bb)

	start.HandNo = g.handNo
	start.Participants = append([]uint16(nil), parts...)
	start.ToAct = g.toAct
	start.Ended = g.pending != nil
	return start, nil
}

// orderFromLocked lists participants clockwise starting at chair.
func (g *Game) orderFromLocked(chair uint16) []uint16 {
	idx := 0
	for i, c := range g.participants {
		if c == chair {
			idx = i
			break
		}
	}
	out := make([]uint16, 0, len(g.participants))
	out = append(out, g.participants[idx:]...)
	return append(out, g.participants[:idx]...)
}

// Act applies a betting action for the seat whose turn it is. amount is the
// total street bet ("raise to") for bet and raise and is ignored otherwise.
func (g *Game) Act(chair uint16, action ActionType, amount int64) (*ActionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.phase.Betting() || g.pending != nil {
		return nil, ErrHandNotRunning
	}
	if chair != g.toAct {
		return nil, ErrOutOfTurn
	}
	s := g.seats[chair]
	if s == nil || !s.canAct() {
		return nil, ErrInvalidState(fmt.Sprintf("chair %d cannot act", chair))
	}

	if action == PlayerActionTypeBet || action == PlayerActionTypeRaise {
		if g.currentBet == 0 {
			action = PlayerActionTypeBet
		} else {
			action = PlayerActionTypeRaise
		}
		if amount == s.betRound+s.stack {
			action = PlayerActionTypeAllin
		}
	}

	legal := g.legalLocked(s)
	if !legal.Allows(action) {
		return nil, illegal(action, "not available (legal: %v)", legal.Actions)
	}

	startPhase := g.phase
	res := &ActionResult{Chair: chair, Action: action}
	owe := g.currentBet - s.betRound

	switch action {
	case PlayerActionTypeFold:
		s.folded = true
	case PlayerActionTypeCheck:
	case PlayerActionTypeCall:
		res.Paid = s.placeBet(owe)
	case PlayerActionTypeBet, PlayerActionTypeRaise:
		if amount < legal.MinRaiseTo {
			return nil, illegal(action, "to %d is below the minimum %d", amount, legal.MinRaiseTo)
		}
		if amount > legal.MaxRaiseTo {
			return nil, illegal(action, "to %d exceeds stack (max %d)", amount, legal.MaxRaiseTo)
		}
		res.Paid = s.placeBet(amount - s.betRound)
		g.applyAggressionLocked(s)
	case PlayerActionTypeAllin:
		res.Paid = s.placeBet(s.stack)
		g.applyAggressionLocked(s)
	default:
		return nil, illegal(action, "unknown action")
	}

	g.pot += res.Paid
	s.acted = true
	s.lastAction = action

	before := len(g.refunds)
	g.proceedLocked(chair)

	res.Phase = g.phase
	res.StreetChanged = g.phase != startPhase
	res.HandEnded = g.pending != nil
	res.Refunds = append([]Refund(nil), g.refunds[before:]...)
	return res, nil
}

// applyAggressionLocked updates currentBet/minRaise after a bet that may exceed
// the current bet. A full raise reopens action for everyone; an incomplete
// all-in raise forces others to respond but locks raising for seats that
// already acted.
func (g *Game) applyAggressionLocked(s *Seat) {
	to := s.betRound
	if to <= g.currentBet {
		return
	}
	inc := to - g.currentBet
	full := inc >= g.minRaise
	g.currentBet = to
	if full {
		g.minRaise = inc
	}
	for _, c := range g.participants {
		o := g.seats[c]
		if c == s.Chair || !o.canAct() {
			continue
		}
		if full {
			o.raiseLocked = false
		} else if o.acted {
			o.raiseLocked = true
		}
		o.acted = false
	}
}

// Forfeit folds a live seat regardless of turn order (leave or kick mid-hand).
func (g *Game) Forfeit(chair uint16) (*ActionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.phase.Betting() || g.pending != nil {
		return nil, ErrHandNotRunning
	}
	s := g.seats[chair]
	if s == nil || !s.live() {
		return nil, ErrInvalidState(fmt.Sprintf("chair %d not live", chair))
	}
	startPhase := g.phase
	s.folded = true
	s.lastAction = PlayerActionTypeFold

	before := len(g.refunds)
	switch {
	case chair == g.toAct:
		g.proceedLocked(chair)
	case g.liveCountLocked() <= 1:
		g.finishLocked(false)
	}
	return &ActionResult{
		Chair:         chair,
		Action:        PlayerActionTypeFold,
		Phase:         g.phase,
		StreetChanged: g.phase != startPhase,
		HandEnded:     g.pending != nil,
		Refunds:       append([]Refund(nil), g.refunds[before:]...),
	}, nil
}

// proceedLocked moves the turn, closes finished streets and ends the hand.
func (g *Game) proceedLocked(from uint16) {
	for {
		if g.liveCountLocked() <= 1 {
			g.finishLocked(false)
			return
		}
		if !g.roundCompleteLocked() {
			g.toAct, _ = g.nextChairLocked(from, g.needsActionLocked)
			return
		}
		g.refundUncalledLocked()
		if g.canActCountLocked() <= 1 || g.phase == PhaseRiver {
			g.finishLocked(true)
			return
		}
		g.nextStreetLocked()
		from = g.button
	}
}

func (g *Game) needsActionLocked(s *Seat) bool {
	return s.canAct() && (!s.acted || s.betRound < g.currentBet)
}

func (g *Game) roundCompleteLocked() bool {
	for _, c := range g.participants {
		if g.needsActionLocked(g.seats[c]) {
			return false
		}
	}
	return true
}

func (g *Game) liveCountLocked() int {
	n := 0
	for _, c := range g.participants {
		if g.seats[c].live() {
			n++
		}
	}
	return n
}

func (g *Game) canActCountLocked() int {
	n := 0
	for _, c := range g.participants {
		if g.seats[c].canAct() {
			n++
		}
	}
	return n
}

// refundUncalledLocked returns the top street bet's excess over the second
// highest (folded seats included) to its owner.
func (g *Game) refundUncalledLocked() {
	var top, second int64
	topChair := InvalidChair
	for _, c := range g.participants {
		b := g.seats[c].betRound
		switch {
		case b > top:
			second, top, topChair = top, b, c
		case b > second:
			second = b
		}
	}
	excess := top - second
	if excess <= 0 {
		return
	}
	s := g.seats[topChair]
	s.betRound -= excess
	s.committed -= excess
	s.stack += excess
	if s.stack > 0 {
		s.allIn = false
	}
	g.pot -= excess
	if g.currentBet > s.betRound {
		g.currentBet = s.betRound
	}
	g.refunds = append(g.refunds, Refund{Chair: topChair, Amount: excess})
}

func (g *Game) nextStreetLocked() {
	for _, c := range g.participants {
		g.seats[c].resetStreet()
	}
	g.currentBet = 0
	g.minRaise = g.cfg.BigBlind
	switch g.phase {
	case PhasePreflop:
		g.dealBoardLocked(3)
		g.phase = PhaseFlop
	case PhaseFlop:
		g.dealBoardLocked(1)
		g.phase = PhaseTurn
	case PhaseTurn:
		g.dealBoardLocked(1)
		g.phase = PhaseRiver
	}
}

// dealBoardLocked burns one card then deals n to the board.
func (g *Game) dealBoardLocked(n int) {
	burn, _ := g.deck.PopCards(1)
	g.burned = append(g.burned, burn...)
	cs, _ := g.deck.PopCards(n)
	g.board = append(g.board, cs...)
}

func (g *Game) finishLocked(showdown bool) {
	g.refundUncalledLocked()
	if showdown {
		for len(g.board) < 5 {
			if len(g.board) == 0 {
				g.dealBoardLocked(3)
			} else {
				g.dealBoardLocked(1)
			}
		}
		g.phase = PhaseShowdown
	}
	g.pending = g.computeSettlementLocked(showdown)
	g.phase = PhaseComplete
	g.toAct = InvalidChair
}

// ApplySettlement credits the pending payouts to stacks and clears the pot.
// Called once the ledger has accepted the settlement.
func (g *Game) ApplySettlement() (*SettlementResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return nil, ErrInvalidState("no pending settlement")
	}
	for chair, amt := range g.pending.Payouts {
		if s := g.seats[chair]; s != nil {
			s.stack += amt
		}
	}
	g.pot = 0
	g.last, g.pending = g.pending, nil
	return g.last, nil
}

// ResetToLobby parks a settled table between hands.
func (g *Game) ResetToLobby() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending != nil {
		return ErrSettlementPending
	}
	if g.phase.Betting() || g.phase == PhaseShowdown {
		return ErrHandInProgress
	}
	g.phase = PhaseLobby
	g.board = nil
	g.toAct = InvalidChair
	g.currentBet = 0
	for _, s := range g.seats {
		s.resetHand()
	}
	return nil
}

// LegalActions is the set of actions available to a seat right now.
type LegalActions struct {
	Actions    []ActionType
	CallAmount int64
	MinRaiseTo int64 // bet/raise "to" bounds when Bet or Raise is listed
	MaxRaiseTo int64
}

func (l LegalActions) Allows(a ActionType) bool {
	for _, x := range l.Actions {
		if x == a {
			return true
		}
	}
	return false
}

// LegalActions returns the actions available to chair; empty when it is not its turn.
func (g *Game) LegalActions(chair uint16) LegalActions {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.phase.Betting() || g.pending != nil || chair != g.toAct {
		return LegalActions{}
	}
	s := g.seats[chair]
	if s == nil || !s.canAct() {
		return LegalActions{}
	}
	return g.legalLocked(s)
}

func (g *Game) legalLocked(s *Seat) LegalActions {
	l := LegalActions{Actions: []ActionType{PlayerActionTypeFold}}
	owe := g.currentBet - s.betRound
	if owe <= 0 {
		l.Actions = append(l.Actions, PlayerActionTypeCheck)
	} else {
		l.Actions = append(l.Actions, PlayerActionTypeCall)
		l.CallAmount = min(owe, s.stack)
	}

	othersCanAct := false
	for _, c := range g.participants {
		if c != s.Chair && g.seats[c].canAct() {
			othersCanAct = true
			break
		}
	}
	maxTo := s.betRound + s.stack
	if othersCanAct && !s.raiseLocked && maxTo > g.currentBet {
		minTo := g.currentBet + g.minRaise
		if maxTo > minTo {
			if g.currentBet == 0 {
				l.Actions = append(l.Actions, PlayerActionTypeBet)
			} else {
				l.Actions = append(l.Actions, PlayerActionTypeRaise)
			}
			l.MinRaiseTo, l.MaxRaiseTo = minTo, maxTo
		}
		l.Actions = append(l.Actions, PlayerActionTypeAllin)
	} else if s.stack > 0 && maxTo <= g.currentBet {
		l.Actions = append(l.Actions, PlayerActionTypeAllin)
	}
	return l
}
