package table

import (
	"fmt"
	"sort"

	"holdem-chips/holdem"
	"holdem-chips/internal/ledger"
)

// Ledger street keys. Blinds are committed as they are posted; every other
// chip a seat put in is caught up in one commit at settlement.
const (
	streetPreflop = "preflop"
	streetSettle  = "settle"
)

// settleLocked pushes the pending result to the ledger and, only once the
// ledger accepted it, credits the stacks. A failure leaves the hand in
// COMPLETE and schedules a retry.
func (t *Table) settleLocked() {
	res := t.game.PendingSettlement()
	if res == nil {
		return
	}
	t.cancelLocked(timerAction, timerActionWarn)
	if err := t.settleLedgerLocked(res); err != nil {
		t.scheduleSettleRetryLocked(res.HandNo, err)
		return
	}
	applied, err := t.game.ApplySettlement()
	if err != nil {
		t.log.Errorf("[Table %s] apply settlement of hand #%d: %v", t.ID, res.HandNo, err)
		return
	}
	t.cancelLocked(timerSettleRetry)
	t.retryDelay = 0

	t.log.Infof("[Table %s] Hand #%d settled (pot=%d, rake=%d, showdown=%v)",
		t.ID, applied.HandNo, applied.TotalPot(), applied.Rake, applied.Showdown)
	t.emitLocked(Notice{Kind: NoticeHandResult, HandNo: applied.HandNo, Phase: holdem.PhaseComplete, Result: applied})
	if t.closing != "" {
		t.closeLocked(t.closing)
		return
	}
	t.afterHandLocked()
}

func (t *Table) scheduleSettleRetryLocked(handNo uint32, cause error) {
	tm := t.Config.Timers
	if t.retryDelay == 0 {
		t.retryDelay = tm.SettleRetryMin
	} else {
		t.retryDelay = min(t.retryDelay*2, tm.SettleRetryMax)
	}
	t.armLocked(timerSettleRetry, t.retryDelay, "", handNo)
	t.log.Warnf("[Table %s] Hand #%d settlement failed, retry in %s: %v", t.ID, handNo, t.retryDelay, cause)
	t.emitLocked(Notice{Kind: NoticeSettlementDelayed, HandNo: handNo, Text: cause.Error()})
}

func (t *Table) onSettleRetryLocked(tm *timer) {
	res := t.game.PendingSettlement()
	if res == nil || res.HandNo != tm.handNo {
		return
	}
	t.settleLocked()
}

// afterHandLocked removes leavers and schedules the next hand.
func (t *Table) afterHandLocked() {
	leavers := make([]string, 0, len(t.pendingLeave))
	for user := range t.pendingLeave {
		leavers = append(leavers, user)
	}
	sort.Strings(leavers)
	for _, user := range leavers {
		chair, ok := t.game.ChairOf(user)
		if !ok {
			delete(t.pendingLeave, user)
			continue
		}
		if err := t.cashOutLocked(chair, user, "left"); err != nil {
			t.log.Warnf("[Table %s] cash out of %s after hand failed: %v", t.ID, user, err)
		}
	}

	if t.readySeatsLocked() >= 2 {
		t.armLocked(timerNextHand, t.Config.Timers.NextHand, "", t.game.HandNo())
		return
	}
	t.toLobbyLocked()
}

// readySeatsLocked counts seats that could be dealt into the next hand.
func (t *Table) readySeatsLocked() int {
	n := 0
	for _, c := range t.game.Chairs() {
		s := t.game.Seat(c)
		if s != nil && !s.SitOut() && s.Stack() >= t.Config.Game.BigBlind && !t.pendingLeave[s.UserID] {
			n++
		}
	}
	return n
}

// settleLedgerLocked replays the whole hand against the ledger. Every call
// is keyed by hand, user and street, so a retry after a partial failure
// applies each movement once.
func (t *Table) settleLedgerLocked(res *holdem.SettlementResult) error {
	ctx, cancel := t.ledgerCtx()
	defer cancel()

	payouts := make([]ledger.Payout, 0, len(res.Seats))
	for _, s := range res.Seats {
		blind := t.blinds[s.UserID]
		if blind > 0 {
			if err := t.escrow.EscrowCommit(ctx, t.ID, s.UserID, t.handID, streetPreflop, blind); err != nil {
				return fmt.Errorf("commit blind of %s: %w", s.UserID, err)
			}
		}
		if extra := s.Committed - blind; extra > 0 {
			if err := t.escrow.EscrowCommit(ctx, t.ID, s.UserID, t.handID, streetSettle, extra); err != nil {
				return fmt.Errorf("commit %s: %w", s.UserID, err)
			}
		}
		// an uncalled blind comes back with the payout
		amt := s.Won + max(0, blind-s.Committed)
		if amt > 0 {
			payouts = append(payouts, ledger.Payout{UserID: s.UserID, Amount: amt})
		}
	}
	if len(payouts) > 0 {
		if err := t.escrow.EscrowCreditMany(ctx, t.ID, t.handID, payouts); err != nil {
			return fmt.Errorf("credit payouts: %w", err)
		}
	}
	if res.Rake > 0 {
		house, err := t.escrow.SettleRake(ctx, t.ID, t.handID, res.Rake)
		if err != nil {
			return fmt.Errorf("settle rake: %w", err)
		}
		t.log.Debugf("[Table %s] rake %d, house balance %d", t.ID, res.Rake, house)
	}
	if err := t.escrow.FinalizeHand(ctx, t.handRecordLocked(res)); err != nil {
		return fmt.Errorf("finalize hand: %w", err)
	}
	return nil
}

func (t *Table) handRecordLocked(res *holdem.SettlementResult) *ledger.HandRecord {
	rec := &ledger.HandRecord{
		HandID:  t.handID,
		Table:   t.ID,
		HandNo:  res.HandNo,
		Button:  uint32(res.Button),
		Board:   res.Board.Strings(),
		Rake:    res.Rake,
		EndedAt: t.now().UTC(),
	}
	users := make(map[uint16]string, len(res.Seats))
	for _, s := range res.Seats {
		users[s.Chair] = s.UserID
	}
	for _, p := range res.Pots {
		pr := ledger.PotRecord{Amount: p.Amount}
		for _, w := range p.Winners {
			pr.Winners = append(pr.Winners, users[w])
		}
		if res.Showdown && len(p.Winners) > 0 {
			if s, ok := res.SeatByChair(p.Winners[0]); ok && s.Hand != nil {
				pr.Label = s.Hand.Label
			}
		}
		rec.Pots = append(rec.Pots, pr)
	}
	for _, s := range res.Seats {
		sr := ledger.SeatRecord{
			UserID:    s.UserID,
			Chair:     uint32(s.Chair),
			Committed: s.Committed,
			Won:       s.Won,
		}
		if res.Showdown && s.Live {
			sr.Hole = s.Hole.Strings()
			if s.Hand != nil {
				sr.Hand = s.Hand.Label
			}
		}
		rec.Seats = append(rec.Seats, sr)
	}
	return rec
}

// voidHandLocked gives the blinds back when a table closes mid-hand. The
// remaining chips never left escrow.
func (t *Table) voidHandLocked() {
	ctx, cancel := t.ledgerCtx()
	defer cancel()

	var payouts []ledger.Payout
	for user, amt := range t.blinds {
		if err := t.escrow.EscrowCommit(ctx, t.ID, user, t.handID, streetPreflop, amt); err != nil {
			t.log.Errorf("[Table %s] blind commit of %s at void: %v", t.ID, user, err)
			continue
		}
		payouts = append(payouts, ledger.Payout{UserID: user, Amount: amt})
	}
	sort.Slice(payouts, func(i, j int) bool { return payouts[i].UserID < payouts[j].UserID })
	if len(payouts) > 0 {
		if err := t.escrow.EscrowCreditMany(ctx, t.ID, t.handID, payouts); err != nil {
			t.log.Errorf("[Table %s] blind refund at void: %v", t.ID, err)
		}
	}
	t.log.Warnf("[Table %s] Hand #%d voided", t.ID, t.game.HandNo())
}
