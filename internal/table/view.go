package table

import (
	"time"

	"holdem-chips/holdem"
)

type SeatView struct {
	UserID       string   `json:"userId"`
	Chair        uint16   `json:"chair"`
	Stack        int64    `json:"stack"`
	Committed    int64    `json:"committed"`
	BetRound     int64    `json:"betRound"`
	InHand       bool     `json:"inHand"`
	Folded       bool     `json:"folded"`
	AllIn        bool     `json:"allIn"`
	SitOut       bool     `json:"sitOut"`
	WaitForBB    bool     `json:"waitForBB"`
	MissedBlinds int      `json:"missedBlinds"`
	LastAction   string   `json:"lastAction,omitempty"`
	Hole         []string `json:"hole,omitempty"`
	Host         bool     `json:"host,omitempty"`
}

type PotView struct {
	Amount   int64    `json:"amount"`
	Eligible []uint16 `json:"eligible"`
}

type LegalView struct {
	Actions    []string `json:"actions"`
	CallAmount int64    `json:"callAmount,omitempty"`
	MinRaiseTo int64    `json:"minRaiseTo,omitempty"`
	MaxRaiseTo int64    `json:"maxRaiseTo,omitempty"`
}

type PotResultView struct {
	Amount  int64    `json:"amount"`
	Rake    int64    `json:"rake,omitempty"`
	Winners []string `json:"winners"`
	Shares  []int64  `json:"shares"`
	Label   string   `json:"label,omitempty"`
}

type ResultView struct {
	HandNo   uint32          `json:"handNo"`
	Showdown bool            `json:"showdown"`
	Rake     int64           `json:"rake"`
	Pots     []PotResultView `json:"pots"`
}

// View is what one viewer may see of the table.
type View struct {
	Table      string      `json:"table"`
	Host       string      `json:"host"`
	Phase      string      `json:"phase"`
	HandNo     uint32      `json:"handNo"`
	Blinds     [2]int64    `json:"blinds"`
	BuyIn      [2]int64    `json:"buyIn"`
	Button     uint16      `json:"button"`
	ToAct      uint16      `json:"toAct"`
	CurrentBet int64       `json:"currentBet"`
	MinRaise   int64       `json:"minRaise"`
	Pot        int64       `json:"pot"`
	Board      []string    `json:"board"`
	Pots       []PotView   `json:"pots,omitempty"`
	Seats      []SeatView  `json:"seats"`
	Legal      *LegalView  `json:"legal,omitempty"`
	Deadline   *time.Time  `json:"deadline,omitempty"`
	Result     *ResultView `json:"result,omitempty"`
}

// View redacts hole cards: the viewer sees their own, everyone sees the
// live hands of a hand that went to showdown.
func (t *Table) View(viewer string) View {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := t.game.Snapshot()
	cfg := t.Config.Game
	v := View{
		Table:      t.ID.String(),
		Host:       t.host,
		Phase:      snap.Phase.String(),
		HandNo:     snap.HandNo,
		Blinds:     [2]int64{cfg.SmallBlind, cfg.BigBlind},
		BuyIn:      [2]int64{cfg.MinBuyIn, cfg.MaxBuyIn},
		Button:     snap.Button,
		ToAct:      snap.ToAct,
		CurrentBet: snap.CurrentBet,
		MinRaise:   snap.MinRaise,
		Pot:        snap.Pot,
		Board:      snap.Board.Strings(),
	}
	if v.Board == nil {
		v.Board = []string{}
	}
	for _, p := range snap.Pots {
		v.Pots = append(v.Pots, PotView{Amount: p.Amount, Eligible: p.Eligible})
	}

	showdown := snap.Result != nil && snap.Result.Showdown && snap.Result.HandNo == snap.HandNo &&
		(snap.Phase == holdem.PhaseShowdown || snap.Phase == holdem.PhaseComplete)
	for _, s := range snap.Seats {
		sv := SeatView{
			UserID:       s.UserID,
			Chair:        s.Chair,
			Stack:        s.Stack,
			Committed:    s.Committed,
			BetRound:     s.BetRound,
			InHand:       s.InHand,
			Folded:       s.Folded,
			AllIn:        s.AllIn,
			SitOut:       s.SitOut,
			WaitForBB:    s.WaitForBB,
			MissedBlinds: s.MissedBlinds,
			Host:         s.UserID == t.host,
		}
		if s.LastAction != holdem.PlayerActionTypeNone {
			sv.LastAction = s.LastAction.String()
		}
		if s.UserID == viewer || (showdown && s.InHand && !s.Folded) {
			sv.Hole = s.Hole.Strings()
		}
		v.Seats = append(v.Seats, sv)

		if s.UserID == viewer {
			if legal := t.game.LegalActions(s.Chair); len(legal.Actions) > 0 {
				lv := &LegalView{CallAmount: legal.CallAmount, MinRaiseTo: legal.MinRaiseTo, MaxRaiseTo: legal.MaxRaiseTo}
				for _, a := range legal.Actions {
					lv.Actions = append(lv.Actions, a.String())
				}
				v.Legal = lv
			}
			if tm, ok := t.timers[timerAction]; ok && tm.userID == viewer {
				d := tm.deadline
				v.Deadline = &d
			}
		}
	}

	if r := snap.Result; r != nil && r.HandNo == snap.HandNo && snap.Settled {
		rv := &ResultView{HandNo: r.HandNo, Showdown: r.Showdown, Rake: r.Rake}
		for _, p := range r.Pots {
			pv := PotResultView{Amount: p.Amount, Rake: p.Rake, Shares: p.Shares}
			for _, w := range p.Winners {
				if sr, ok := r.SeatByChair(w); ok {
					pv.Winners = append(pv.Winners, sr.UserID)
				}
			}
			if r.Showdown && len(p.Winners) > 0 {
				if sr, ok := r.SeatByChair(p.Winners[0]); ok && sr.Hand != nil {
					pv.Label = sr.Hand.Label
				}
			}
			rv.Pots = append(rv.Pots, pv)
		}
		v.Result = rv
	}
	return v
}
