package holdem

import (
	"sort"

	"holdem-chips/card"
)

type PotResult struct {
	Amount   int64 // after rake
	Rake     int64
	Eligible []uint16
	Winners  []uint16 // odd-chip order: clockwise from the button
	Shares   []int64
}

type SeatResult struct {
	Chair     uint16
	UserID    string
	Committed int64
	Won       int64
	Live      bool
	Hole      card.CardList
	Hand      *HandValue // nil without showdown
}

// Net is the seat's chip delta for the hand.
func (r SeatResult) Net() int64 { return r.Won - r.Committed }

type SettlementResult struct {
	HandNo   uint32
	Showdown bool
	Button   uint16
	Board    card.CardList
	Pots     []PotResult
	Rake     int64
	Payouts  map[uint16]int64 // chair -> chips won
	Refunds  []Refund
	Seats    []SeatResult
}

// TotalPot is everything committed to the hand, rake included.
func (r *SettlementResult) TotalPot() int64 {
	total := r.Rake
	for _, p := range r.Pots {
		total += p.Amount
	}
	return total
}

func (r *SettlementResult) SeatByChair(chair uint16) (SeatResult, bool) {
	for _, s := range r.Seats {
		if s.Chair == chair {
			return s, true
		}
	}
	return SeatResult{}, false
}

func (g *Game) computeSettlementLocked(showdown bool) *SettlementResult {
	res := &SettlementResult{
		HandNo:   g.handNo,
		Showdown: showdown,
		Button:   g.button,
		Board:    g.board.Clone(),
		Payouts:  make(map[uint16]int64, len(g.participants)),
		Refunds:  append([]Refund(nil), g.refunds...),
	}

	contribs := make([]Contribution, 0, len(g.participants))
	var total int64
	for _, c := range g.participants {
		s := g.seats[c]
		contribs = append(contribs, Contribution{Chair: c, Amount: s.committed, Live: s.live()})
		total += s.committed
	}

	pots := BuildPots(contribs)
	res.Rake = computeRake(total, g.cfg.RakeBps, g.cfg.RakeCap)
	cuts := takeRake(pots, res.Rake)

	hands := make(map[uint16]HandValue)
	if showdown {
		for _, c := range g.participants {
			s := g.seats[c]
			if !s.live() {
				continue
			}
			seven := append(s.hole.Clone(), g.board...)
			if v, err := Evaluate7(seven); err == nil {
				hands[c] = v
			}
		}
	}

	for i, p := range pots {
		pr := PotResult{Amount: p.Amount, Rake: cuts[i], Eligible: p.Eligible}
		pr.Winners = g.potWinnersLocked(p.Eligible, hands)
		if n := int64(len(pr.Winners)); n > 0 {
			share, odd := p.Amount/n, p.Amount%n
			pr.Shares = make([]int64, len(pr.Winners))
			for j, w := range pr.Winners {
				pr.Shares[j] = share
				if int64(j) < odd {
					pr.Shares[j]++
				}
				res.Payouts[w] += pr.Shares[j]
			}
		}
		res.Pots = append(res.Pots, pr)
	}

	for _, c := range g.participants {
		s := g.seats[c]
		sr := SeatResult{
			Chair:     c,
			UserID:    s.UserID,
			Committed: s.committed,
			Won:       res.Payouts[c],
			Live:      s.live(),
			Hole:      s.hole.Clone(),
		}
		if v, ok := hands[c]; ok {
			v := v
			sr.Hand = &v
		}
		res.Seats = append(res.Seats, sr)
	}
	return res
}

// potWinnersLocked picks the best hands among eligible seats, ordered
// clockwise from the button. A single eligible seat wins without evaluation.
func (g *Game) potWinnersLocked(eligible []uint16, hands map[uint16]HandValue) []uint16 {
	var winners []uint16
	if len(eligible) == 1 {
		winners = []uint16{eligible[0]}
	} else {
		var best *HandValue
		for _, c := range eligible {
			v, ok := hands[c]
			if !ok {
				continue
			}
			switch {
			case best == nil || Compare(v, *best) > 0:
				vv := v
				best = &vv
				winners = []uint16{c}
			case Compare(v, *best) == 0:
				winners = append(winners, c)
			}
		}
		if len(winners) == 0 {
			winners = append(winners, eligible...)
		}
	}

	n := g.cfg.SeatCap
	dist := func(c uint16) int { return (int(c) - int(g.button) - 1 + 2*n) % n }
	sort.Slice(winners, func(i, j int) bool { return dist(winners[i]) < dist(winners[j]) })
	return winners
}
