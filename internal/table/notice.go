package table

import (
	"time"

	"holdem-chips/holdem"
	"holdem-chips/internal/ledger"
)

type NoticeKind string

const (
	NoticeSeatJoined        NoticeKind = "seat_joined"
	NoticeSeatLeft          NoticeKind = "seat_left"
	NoticeRebuy             NoticeKind = "rebuy"
	NoticeSitOut            NoticeKind = "sit_out"
	NoticeSitIn             NoticeKind = "sit_in"
	NoticeKicked            NoticeKind = "kicked"
	NoticeHostChanged       NoticeKind = "host_changed"
	NoticeHandStarted       NoticeKind = "hand_started"
	NoticeAction            NoticeKind = "action"
	NoticeActionPrompt      NoticeKind = "action_prompt"
	NoticeActionWarning     NoticeKind = "action_warning"
	NoticeAutoFold          NoticeKind = "auto_fold"
	NoticeStreet            NoticeKind = "street"
	NoticeHandResult        NoticeKind = "hand_result"
	NoticeSettlementDelayed NoticeKind = "settlement_delayed"
	NoticeLobby             NoticeKind = "lobby"
	NoticeTableClosed       NoticeKind = "table_closed"
)

// Notice is an outbound event for the UI collaborator. UserID is the
// subject; the gateway decides who sees it. Notify runs under the table
// lock and must not call back into the table.
type Notice struct {
	Table    ledger.TableID
	Kind     NoticeKind
	HandNo   uint32
	UserID   string
	Chair    uint16
	Action   holdem.ActionType
	Amount   int64
	Phase    holdem.Phase
	Text     string
	Deadline time.Time
	Legal    *holdem.LegalActions
	Result   *holdem.SettlementResult
}

func (t *Table) emitLocked(n Notice) {
	n.Table = t.ID
	if n.HandNo == 0 {
		n.HandNo = t.game.HandNo()
	}
	t.notify(n)
}
