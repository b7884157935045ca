package gateway

import (
	"time"

	"holdem-chips/holdem"
	"holdem-chips/internal/ledger"
	"holdem-chips/internal/lobby"
	"holdem-chips/internal/table"
)

// Command is one client request.
type Command struct {
	Type    string `json:"type"`
	Guild   string `json:"guild"`
	Channel string `json:"channel"`
	Amount  int64  `json:"amount,omitempty"`
	Action  string `json:"action,omitempty"`

	// host only
	SeatCap    int   `json:"seatCap,omitempty"`
	SmallBlind int64 `json:"smallBlind,omitempty"`
	BigBlind   int64 `json:"bigBlind,omitempty"`
	MinBuyIn   int64 `json:"minBuyIn,omitempty"`
	MaxBuyIn   int64 `json:"maxBuyIn,omitempty"`
	RakeBps    int64 `json:"rakeBps,omitempty"`
	RakeCap    int64 `json:"rakeCap,omitempty"`
}

func (c Command) tableID() ledger.TableID {
	return ledger.TableID{GuildID: c.Guild, ChannelID: c.Channel}
}

// gameConfig is zero (lobby defaults) unless blinds were given.
func (c Command) gameConfig() holdem.Config {
	if c.BigBlind == 0 {
		return holdem.Config{}
	}
	return holdem.Config{
		SeatCap:    c.SeatCap,
		SmallBlind: c.SmallBlind,
		BigBlind:   c.BigBlind,
		MinBuyIn:   c.MinBuyIn,
		MaxBuyIn:   c.MaxBuyIn,
		RakeBps:    c.RakeBps,
		RakeCap:    c.RakeCap,
	}
}

type ServerMessage struct {
	Type    string         `json:"type"`
	Ref     string         `json:"ref,omitempty"`
	Table   string         `json:"table,omitempty"`
	Error   string         `json:"error,omitempty"`
	Notice  *NoticeMessage `json:"notice,omitempty"`
	View    *table.View    `json:"view,omitempty"`
	Tables  []TableSummary `json:"tables,omitempty"`
	Balance *int64         `json:"balance,omitempty"`
}

type NoticeMessage struct {
	Kind     string           `json:"kind"`
	HandNo   uint32           `json:"handNo,omitempty"`
	UserID   string           `json:"userId,omitempty"`
	Chair    uint16           `json:"chair"`
	Action   string           `json:"action,omitempty"`
	Amount   int64            `json:"amount,omitempty"`
	Phase    string           `json:"phase,omitempty"`
	Text     string           `json:"text,omitempty"`
	Deadline *time.Time       `json:"deadline,omitempty"`
	Payouts  map[string]int64 `json:"payouts,omitempty"`
	Rake     int64            `json:"rake,omitempty"`
}

func noticeMessage(n table.Notice) *NoticeMessage {
	m := &NoticeMessage{
		Kind:   string(n.Kind),
		HandNo: n.HandNo,
		UserID: n.UserID,
		Chair:  n.Chair,
		Amount: n.Amount,
		Text:   n.Text,
	}
	if n.Action != holdem.PlayerActionTypeNone {
		m.Action = n.Action.String()
	}
	if n.Phase != holdem.PhaseLobby || n.Kind == table.NoticeLobby {
		m.Phase = n.Phase.String()
	}
	if !n.Deadline.IsZero() {
		d := n.Deadline
		m.Deadline = &d
	}
	if r := n.Result; r != nil {
		m.Rake = r.Rake
		m.Payouts = make(map[string]int64, len(r.Seats))
		for _, s := range r.Seats {
			if s.Won > 0 {
				m.Payouts[s.UserID] = s.Won
			}
		}
	}
	return m
}

type TableSummary struct {
	Guild   string   `json:"guild"`
	Channel string   `json:"channel"`
	Host    string   `json:"host"`
	Seats   int      `json:"seats"`
	Phase   string   `json:"phase"`
	HandNo  uint32   `json:"handNo"`
	Blinds  [2]int64 `json:"blinds"`
}

func summarize(infos []lobby.TableInfo) []TableSummary {
	out := make([]TableSummary, 0, len(infos))
	for _, i := range infos {
		out = append(out, TableSummary{
			Guild:   i.ID.GuildID,
			Channel: i.ID.ChannelID,
			Host:    i.Host,
			Seats:   i.Seats,
			Phase:   i.Phase,
			HandNo:  i.HandNo,
			Blinds:  i.Blinds,
		})
	}
	return out
}
