package table

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"holdem-chips/holdem"

	"github.com/google/uuid"
)

// A seat that lets the big blind pass twice is removed before the next hand.
const maxMissedBlinds = 2

func (t *Table) handleJoin(userID string, buyIn int64) error {
	if userID == "" {
		return errors.New("missing user id")
	}
	if _, ok := t.game.ChairOf(userID); ok {
		return ErrAlreadySeated
	}
	cfg := t.Config.Game
	if t.game.SeatCount() >= cfg.SeatCap {
		return ErrSeatCap
	}
	if buyIn < cfg.MinBuyIn || buyIn > cfg.MaxBuyIn {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrBuyInRange, buyIn, cfg.MinBuyIn, cfg.MaxBuyIn)
	}
	chair, ok := t.game.FreeChair()
	if !ok {
		return ErrSeatCap
	}

	ctx, cancel := t.ledgerCtx()
	defer cancel()
	if _, err := t.escrow.EscrowAdd(ctx, t.ID, userID, buyIn); err != nil {
		return fmt.Errorf("buy-in: %w", err)
	}
	if err := t.game.SitDown(chair, userID, buyIn); err != nil {
		if _, rerr := t.escrow.EscrowReturn(ctx, t.ID, userID, buyIn); rerr != nil {
			t.log.Errorf("[Table %s] buy-in rollback failed for %s: %v", t.ID, userID, rerr)
		}
		return err
	}

	t.cancelLocked(timerEmptyClose)
	if t.game.SeatCount() == 1 && t.game.Phase() == holdem.PhaseLobby {
		t.armLocked(timerIdleLobby, t.Config.Timers.IdleLobby, "", 0)
	}
	t.log.Infof("[Table %s] %s sat down at chair %d with %d", t.ID, userID, chair, buyIn)
	t.emitLocked(Notice{Kind: NoticeSeatJoined, UserID: userID, Chair: chair, Amount: buyIn})
	if t.host == "" {
		t.setHostLocked(userID)
	}
	return nil
}

// handleLeave cashes out between hands. Mid-hand the seat is forfeited and
// removed once the hand settles.
func (t *Table) handleLeave(userID, reason string) error {
	chair, ok := t.game.ChairOf(userID)
	if !ok {
		return ErrNotSeated
	}
	seat := t.game.Seat(chair)
	if t.game.HandActive() && seat.InHand() {
		t.pendingLeave[userID] = true
		if t.game.Phase().Betting() && !seat.Folded() {
			res, err := t.game.Forfeit(chair)
			if err != nil {
				t.log.Warnf("[Table %s] forfeit chair=%d failed: %v", t.ID, chair, err)
			} else {
				t.afterActionLocked(res)
			}
		}
		t.log.Infof("[Table %s] %s leaving after hand #%d (%s)", t.ID, userID, t.game.HandNo(), reason)
		return nil
	}
	return t.cashOutLocked(chair, userID, reason)
}

// cashOutLocked returns the stack to the wallet and frees the seat.
func (t *Table) cashOutLocked(chair uint16, userID, reason string) error {
	seat := t.game.Seat(chair)
	if seat == nil {
		return ErrNotSeated
	}
	stack := seat.Stack()

	ctx, cancel := t.ledgerCtx()
	defer cancel()
	remaining, err := t.escrow.EscrowReturn(ctx, t.ID, userID, stack)
	if err != nil {
		return fmt.Errorf("cash out: %w", err)
	}
	if remaining != 0 {
		t.log.Warnf("[Table %s] escrow of %s not drained after cash out: %d left", t.ID, userID, remaining)
	}
	if _, err := t.game.StandUp(chair); err != nil {
		return err
	}
	delete(t.pendingLeave, userID)

	t.log.Infof("[Table %s] %s stood up from chair %d with %d (%s)", t.ID, userID, chair, stack, reason)
	t.emitLocked(Notice{Kind: NoticeSeatLeft, UserID: userID, Chair: chair, Amount: stack, Text: reason})
	t.afterSeatRemovedLocked(chair, userID)
	return nil
}

func (t *Table) afterSeatRemovedLocked(chair uint16, userID string) {
	if t.host == userID {
		t.handOffHostLocked(userID, chair)
	}
	n := t.game.SeatCount()
	if n == 0 {
		t.armLocked(timerEmptyClose, t.Config.Timers.EmptyClose, "", 0)
	}
	if n <= 1 && !t.game.HandActive() {
		t.toLobbyLocked()
	}
}

func (t *Table) setHostLocked(userID string) {
	t.host = userID
	t.armLocked(timerHostIdle, t.Config.Timers.HostIdle, userID, 0)
	t.log.Infof("[Table %s] host is now %s", t.ID, userID)
	t.emitLocked(Notice{Kind: NoticeHostChanged, UserID: userID})
}

// handOffHostLocked passes the host role to the next seat clockwise from chair.
func (t *Table) handOffHostLocked(prev string, chair uint16) {
	chairs := t.game.Chairs()
	sort.SliceStable(chairs, func(i, j int) bool {
		return (chairs[i] > chair) && !(chairs[j] > chair)
	})
	for _, c := range chairs {
		s := t.game.Seat(c)
		if s == nil || s.UserID == prev || t.pendingLeave[s.UserID] {
			continue
		}
		t.setHostLocked(s.UserID)
		return
	}
	t.host = ""
	t.cancelLocked(timerHostIdle)
	t.log.Infof("[Table %s] no host left", t.ID)
	t.emitLocked(Notice{Kind: NoticeHostChanged})
}

// toLobbyLocked parks the table between hands. The idle-lobby clock only
// runs while someone is seated; an empty table is left to the empty-close timer.
func (t *Table) toLobbyLocked() {
	t.cancelLocked(timerNextHand, timerAction, timerActionWarn)
	if t.game.Phase() == holdem.PhaseLobby {
		if t.game.SeatCount() == 0 {
			t.cancelLocked(timerIdleLobby)
		} else if _, armed := t.armedLocked(timerIdleLobby); !armed {
			t.armLocked(timerIdleLobby, t.Config.Timers.IdleLobby, "", 0)
		}
		return
	}
	if err := t.game.ResetToLobby(); err != nil {
		t.log.Warnf("[Table %s] reset to lobby failed: %v", t.ID, err)
		return
	}
	if t.game.SeatCount() > 0 {
		t.armLocked(timerIdleLobby, t.Config.Timers.IdleLobby, "", 0)
	}
	t.log.Infof("[Table %s] back to lobby (seats=%d)", t.ID, t.game.SeatCount())
	t.emitLocked(Notice{Kind: NoticeLobby, Phase: holdem.PhaseLobby})
}

func (t *Table) handleRebuy(userID string, amount int64) error {
	chair, ok := t.game.ChairOf(userID)
	if !ok {
		return ErrNotSeated
	}
	if t.game.HandActive() {
		return ErrHandInProgress
	}
	stack := t.game.Seat(chair).Stack()
	if amount <= 0 || stack+amount > t.Config.Game.MaxBuyIn {
		return fmt.Errorf("%w: stack %d + %d exceeds %d", ErrBuyInRange, stack, amount, t.Config.Game.MaxBuyIn)
	}

	ctx, cancel := t.ledgerCtx()
	defer cancel()
	if _, err := t.escrow.EscrowAdd(ctx, t.ID, userID, amount); err != nil {
		return fmt.Errorf("rebuy: %w", err)
	}
	if err := t.game.AddChips(chair, amount); err != nil {
		if _, rerr := t.escrow.EscrowReturn(ctx, t.ID, userID, amount); rerr != nil {
			t.log.Errorf("[Table %s] rebuy rollback failed for %s: %v", t.ID, userID, rerr)
		}
		return err
	}
	t.log.Infof("[Table %s] %s rebought %d (stack=%d)", t.ID, userID, amount, stack+amount)
	t.emitLocked(Notice{Kind: NoticeRebuy, UserID: userID, Chair: chair, Amount: stack + amount})
	return nil
}

func (t *Table) handleSitOut(userID string, out bool) error {
	chair, ok := t.game.ChairOf(userID)
	if !ok {
		return ErrNotSeated
	}
	if err := t.game.SetSitOut(chair, out); err != nil {
		return err
	}
	kind := NoticeSitIn
	if out {
		kind = NoticeSitOut
	}
	t.log.Infof("[Table %s] %s %s", t.ID, userID, kind)
	t.emitLocked(Notice{Kind: kind, UserID: userID, Chair: chair})
	return nil
}

func (t *Table) handleStart(userID string) error {
	if userID != t.host {
		return ErrNotHost
	}
	if t.game.HandActive() {
		return ErrHandInProgress
	}
	return t.startHandLocked()
}

func (t *Table) handleAction(userID string, action holdem.ActionType, amount int64) error {
	chair, ok := t.game.ChairOf(userID)
	if !ok {
		return ErrNotSeated
	}
	res, err := t.game.Act(chair, action, amount)
	if err != nil {
		return err
	}
	t.afterActionLocked(res)
	return nil
}

func (t *Table) startHandLocked() error {
	t.evictBeforeHandLocked()

	start, err := t.game.StartHand()
	if err != nil {
		if errors.Is(err, holdem.ErrNotEnoughPlayers) {
			t.toLobbyLocked()
		}
		return err
	}
	t.handID = uuid.NewString()
	t.blinds = make(map[string]int64, 2)
	t.retryDelay = 0
	t.cancelLocked(timerIdleLobby, timerNextHand, timerSettleRetry)

	t.log.Infof("[Table %s] Hand #%d started (id=%s, button=%d, sb=%d, bb=%d, players=%d)",
		t.ID, start.HandNo, t.handID, start.Button, start.SmallBlind, start.BigBlind, len(start.Participants))
	t.emitLocked(Notice{Kind: NoticeHandStarted, HandNo: start.HandNo, Chair: start.Button, Phase: holdem.PhasePreflop, Text: t.handID})

	for _, c := range start.MissedBlind {
		if s := t.game.Seat(c); s != nil {
			t.log.Infof("[Table %s] %s missed the big blind (%d)", t.ID, s.UserID, s.MissedBlinds())
		}
	}
	for _, b := range start.Blinds {
		t.blinds[b.UserID] += b.Amount
		text := "small blind"
		if b.Big {
			text = "big blind"
		}
		t.emitLocked(Notice{Kind: NoticeAction, HandNo: start.HandNo, UserID: b.UserID, Chair: b.Chair, Amount: b.Amount, Phase: holdem.PhasePreflop, Text: text})
	}
	t.commitBlindsLocked()

	if start.Ended {
		t.settleLocked()
		return nil
	}
	t.promptLocked()
	return nil
}

// commitBlindsLocked moves posted blinds into the hand pot. Failures are
// left to the settlement, which replays the same keys.
func (t *Table) commitBlindsLocked() {
	ctx, cancel := t.ledgerCtx()
	defer cancel()
	for user, amt := range t.blinds {
		if err := t.escrow.EscrowCommit(ctx, t.ID, user, t.handID, streetPreflop, amt); err != nil {
			t.log.Warnf("[Table %s] blind commit for %s deferred: %v", t.ID, user, err)
		}
	}
}

// evictBeforeHandLocked removes pending leavers, short stacks and seats
// that keep skipping the big blind.
func (t *Table) evictBeforeHandLocked() {
	bb := t.Config.Game.BigBlind
	for _, chair := range t.game.Chairs() {
		s := t.game.Seat(chair)
		if s == nil {
			continue
		}
		var reason string
		switch {
		case t.pendingLeave[s.UserID]:
			reason = "left"
		case s.Stack() < bb:
			reason = "stack below big blind"
		case s.MissedBlinds() >= maxMissedBlinds:
			reason = "missed blinds"
		default:
			continue
		}
		user := s.UserID
		if err := t.cashOutLocked(chair, user, reason); err != nil {
			t.log.Warnf("[Table %s] eviction of %s failed: %v", t.ID, user, err)
			continue
		}
		if reason != "left" {
			t.emitLocked(Notice{Kind: NoticeKicked, UserID: user, Chair: chair, Text: reason})
		}
	}
}

func (t *Table) afterActionLocked(res *holdem.ActionResult) {
	var user string
	if s := t.game.Seat(res.Chair); s != nil {
		user = s.UserID
	}
	t.cancelLocked(timerAction, timerActionWarn)
	t.emitLocked(Notice{Kind: NoticeAction, UserID: user, Chair: res.Chair, Action: res.Action, Amount: res.Paid, Phase: res.Phase})
	for _, r := range res.Refunds {
		t.log.Debugf("[Table %s] uncalled %d returned to chair %d", t.ID, r.Amount, r.Chair)
	}
	if res.HandEnded {
		t.settleLocked()
		return
	}
	if res.StreetChanged {
		t.emitLocked(Notice{Kind: NoticeStreet, Phase: res.Phase})
	}
	t.promptLocked()
}

func (t *Table) promptLocked() {
	chair := t.game.ToAct()
	s := t.game.Seat(chair)
	if s == nil {
		return
	}
	tm := t.Config.Timers
	handNo := t.game.HandNo()
	t.armLocked(timerAction, tm.Action, s.UserID, handNo)
	t.armLocked(timerActionWarn, tm.Action-tm.ActionWarn, s.UserID, handNo)
	legal := t.game.LegalActions(chair)
	t.emitLocked(Notice{
		Kind:     NoticeActionPrompt,
		UserID:   s.UserID,
		Chair:    chair,
		Phase:    t.game.Phase(),
		Deadline: t.timers[timerAction].deadline,
		Legal:    &legal,
	})
}

// actingSeatLocked re-validates an action timer against the live hand.
func (t *Table) actingSeatLocked(tm *timer) (uint16, bool) {
	if !t.game.Phase().Betting() || t.game.HandNo() != tm.handNo {
		return holdem.InvalidChair, false
	}
	chair := t.game.ToAct()
	s := t.game.Seat(chair)
	if s == nil || s.UserID != tm.userID {
		return holdem.InvalidChair, false
	}
	return chair, true
}

func (t *Table) onActionTimeoutLocked(tm *timer) {
	chair, ok := t.actingSeatLocked(tm)
	if !ok {
		t.log.Debugf("[Table %s] stale action timer for %s ignored", t.ID, tm.userID)
		return
	}
	t.autoFoldLocked(chair, tm.userID, "action timeout")
}

func (t *Table) autoFoldLocked(chair uint16, userID, reason string) {
	res, err := t.game.Act(chair, holdem.PlayerActionTypeFold, 0)
	if err != nil {
		t.log.Warnf("[Table %s] auto fold chair=%d failed: %v", t.ID, chair, err)
		return
	}
	t.log.Infof("[Table %s] %s chair=%d user=%s -> auto fold", t.ID, reason, chair, userID)
	t.emitLocked(Notice{Kind: NoticeAutoFold, UserID: userID, Chair: chair, Text: reason})
	t.afterActionLocked(res)
}

func (t *Table) onActionWarnLocked(tm *timer) {
	chair, ok := t.actingSeatLocked(tm)
	if !ok {
		return
	}
	n := Notice{Kind: NoticeActionWarning, UserID: tm.userID, Chair: chair}
	if at, ok := t.armedLocked(timerAction); ok {
		n.Deadline = at.deadline
	}
	t.emitLocked(n)
}

func (t *Table) onHostIdleLocked(tm *timer) {
	host := t.host
	if host == "" || tm.userID != host {
		return
	}
	t.log.Infof("[Table %s] host %s idle", t.ID, host)

	chair, seated := t.game.ChairOf(host)
	if seated {
		if t.game.Phase().Betting() && t.game.ToAct() == chair {
			t.autoFoldLocked(chair, host, "host idle")
			if t.closed {
				return
			}
		}
		if err := t.handleLeave(host, "host idle"); err != nil {
			t.log.Warnf("[Table %s] idle host cash out failed: %v", t.ID, err)
		}
		t.emitLocked(Notice{Kind: NoticeKicked, UserID: host, Chair: chair, Text: "host idle"})
	}
	if t.host == host {
		if !seated {
			chair = holdem.InvalidChair
		}
		t.handOffHostLocked(host, chair)
	}
}

func (t *Table) onEmptyCloseLocked() {
	if t.game.SeatCount() != 0 {
		return
	}
	t.closeLocked("empty")
}

func (t *Table) onIdleLobbyLocked() {
	if t.game.HandActive() || t.game.Phase() != holdem.PhaseLobby || t.game.SeatCount() == 0 {
		return
	}
	t.closeLocked("idle lobby")
}

func (t *Table) onNextHandLocked(tm *timer) {
	if t.game.HandNo() != tm.handNo || t.game.HandActive() {
		return
	}
	if err := t.startHandLocked(); err != nil {
		t.log.Infof("[Table %s] next hand not started: %v", t.ID, err)
	}
}

// closeLocked settles or voids the running hand, returns every escrow and
// stops the actor. If the ledger refuses a pending settlement the table
// stays up, retrying, and closes once the settlement is applied.
func (t *Table) closeLocked(reason string) error {
	if t.closed {
		return nil
	}

	if pending := t.game.PendingSettlement(); pending != nil {
		if err := t.settleLedgerLocked(pending); err != nil {
			t.closing = reason
			t.cancelLocked(timerAction, timerActionWarn, timerHostIdle, timerEmptyClose, timerIdleLobby, timerNextHand)
			if _, armed := t.armedLocked(timerSettleRetry); !armed {
				t.scheduleSettleRetryLocked(pending.HandNo, err)
			}
			t.log.Warnf("[Table %s] close (%s) waits for settlement of hand #%d: %v", t.ID, reason, pending.HandNo, err)
			return fmt.Errorf("close: hand #%d: %w", pending.HandNo, holdem.ErrSettlementPending)
		}
		applied, err := t.game.ApplySettlement()
		if err != nil {
			t.log.Errorf("[Table %s] apply settlement at close: %v", t.ID, err)
			return err
		}
		t.emitLocked(Notice{Kind: NoticeHandResult, HandNo: applied.HandNo, Phase: holdem.PhaseComplete, Result: applied})
	} else if t.game.HandActive() {
		t.voidHandLocked()
	}
	t.cancelAllTimersLocked()

	ctx, cancel := t.ledgerCtx()
	defer cancel()
	for _, chair := range t.game.Chairs() {
		s := t.game.Seat(chair)
		if s == nil {
			continue
		}
		// the whole escrow: a voided hand leaves it above the engine stack
		if _, err := t.escrow.EscrowReturn(ctx, t.ID, s.UserID, math.MaxInt64); err != nil {
			t.log.Errorf("[Table %s] escrow return for %s failed: %v", t.ID, s.UserID, err)
			continue
		}
		t.emitLocked(Notice{Kind: NoticeSeatLeft, UserID: s.UserID, Chair: chair, Amount: s.Stack(), Text: reason})
	}

	t.stopLocked()
	t.log.Infof("[Table %s] Closed (%s)", t.ID, reason)
	t.emitLocked(Notice{Kind: NoticeTableClosed, Text: reason})
	if t.onClose != nil {
		t.onClose(t.ID)
	}
	return nil
}
