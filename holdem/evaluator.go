package holdem

import (
	"fmt"
	"sort"

	"holdem-chips/card"
)

// HandValue is the best five-card hand out of seven.
type HandValue struct {
	Category HandCategory
	Ranks    []card.Rank // tiebreak ranks, most significant first
	Best     card.CardList
	Label    string
}

// Compare orders hands by category then tiebreak ranks. Returns -1, 0 or 1.
func Compare(a, b HandValue) int {
	if a.Category != b.Category {
		if a.Category < b.Category {
			return -1
		}
		return 1
	}
	for i := 0; i < len(a.Ranks) && i < len(b.Ranks); i++ {
		if a.Ranks[i] != b.Ranks[i] {
			if a.Ranks[i] < b.Ranks[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Evaluate7 evaluates the best 5-card hand from 7 distinct cards.
func Evaluate7(cards []card.Card) (HandValue, error) {
	if len(cards) != 7 {
		return HandValue{}, fmt.Errorf("evaluate: need 7 cards, got %d", len(cards))
	}
	seen := make(map[card.Card]struct{}, 7)
	for _, c := range cards {
		if !c.Valid() {
			return HandValue{}, fmt.Errorf("evaluate: invalid card %d", byte(c))
		}
		if _, dup := seen[c]; dup {
			return HandValue{}, fmt.Errorf("evaluate: duplicate card %s", c)
		}
		seen[c] = struct{}{}
	}

	var (
		best  HandValue
		found bool
		five  [5]card.Card
	)
	// C(7,5) = 21
	for a := 0; a < 3; a++ {
		for b := a + 1; b < 4; b++ {
			for c := b + 1; c < 5; c++ {
				for d := c + 1; d < 6; d++ {
					for e := d + 1; e < 7; e++ {
						five = [5]card.Card{cards[a], cards[b], cards[c], cards[d], cards[e]}
						v := eval5(five)
						if !found || Compare(v, best) > 0 {
							best, found = v, true
						}
					}
				}
			}
		}
	}
	best.Label = describe(best)
	return best, nil
}

type rankGroup struct {
	rank  card.Rank
	count int
}

func eval5(cards [5]card.Card) HandValue {
	sorted := make(card.CardList, 5)
	copy(sorted, cards[:])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank() > sorted[j].Rank() })

	flush := true
	for _, c := range sorted[1:] {
		if c.Suit() != sorted[0].Suit() {
			flush = false
			break
		}
	}

	counts := make(map[card.Rank]int, 5)
	for _, c := range sorted {
		counts[c.Rank()]++
	}
	groups := make([]rankGroup, 0, len(counts))
	for r, n := range counts {
		groups = append(groups, rankGroup{rank: r, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	// 顺子：5 个不同点数且首尾差 4，或 A-2-3-4-5
	var straightHigh card.Rank
	if len(groups) == 5 {
		top, low := sorted[0].Rank(), sorted[4].Rank()
		switch {
		case top-low == 4:
			straightHigh = top
		case top == card.Ace && sorted[1].Rank() == card.Five:
			straightHigh = card.Five
		}
	}

	ranksOf := func() []card.Rank {
		out := make([]card.Rank, 0, len(groups))
		for _, g := range groups {
			out = append(out, g.rank)
		}
		return out
	}

	v := HandValue{Best: sorted}
	switch {
	case straightHigh != 0 && flush:
		v.Category, v.Ranks = HandStraightFlush, []card.Rank{straightHigh}
	case groups[0].count == 4:
		v.Category, v.Ranks = HandFourOfKind, ranksOf()
	case groups[0].count == 3 && groups[1].count == 2:
		v.Category, v.Ranks = HandFullHouse, ranksOf()
	case flush:
		v.Category, v.Ranks = HandFlush, ranksOf()
	case straightHigh != 0:
		v.Category, v.Ranks = HandStraight, []card.Rank{straightHigh}
	case groups[0].count == 3:
		v.Category, v.Ranks = HandThreeOfKind, ranksOf()
	case groups[0].count == 2 && groups[1].count == 2:
		v.Category, v.Ranks = HandTwoPair, ranksOf()
	case groups[0].count == 2:
		v.Category, v.Ranks = HandOnePair, ranksOf()
	default:
		v.Category, v.Ranks = HandHighCard, ranksOf()
	}
	return v
}

func plural(r card.Rank) string {
	if r == card.Six {
		return "Sixes"
	}
	return r.Name() + "s"
}

func describe(v HandValue) string {
	if len(v.Ranks) == 0 {
		return ""
	}
	r := v.Ranks
	switch v.Category {
	case HandStraightFlush:
		if r[0] == card.Ace {
			return "Royal Flush"
		}
		return fmt.Sprintf("Straight Flush, %s high", r[0].Name())
	case HandFourOfKind:
		return "Four of a Kind, " + plural(r[0])
	case HandFullHouse:
		return fmt.Sprintf("Full House, %s full of %s", plural(r[0]), plural(r[1]))
	case HandFlush:
		return fmt.Sprintf("Flush, %s high", r[0].Name())
	case HandStraight:
		return fmt.Sprintf("Straight, %s high", r[0].Name())
	case HandThreeOfKind:
		return "Three of a Kind, " + plural(r[0])
	case HandTwoPair:
		return fmt.Sprintf("Two Pair, %s and %s", plural(r[0]), plural(r[1]))
	case HandOnePair:
		return "Pair of " + plural(r[0])
	default:
		return "High Card, " + r[0].Name()
	}
}
