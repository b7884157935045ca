package holdem

import "sort"

// Contribution is one seat's total commitment to the hand.
type Contribution struct {
	Chair  uint16
	Amount int64
	Live   bool // inHand && !folded
}

// Pot 底池（主池/边池）
type Pot struct {
	Amount   int64
	Eligible []uint16
}

// BuildPots layers contributions by the smallest positive remaining amount.
// Adjacent layers with the same eligible set merge, and a layer no live seat
// contributed to is folded into the previous pot.
func BuildPots(contribs []Contribution) []Pot {
	remaining := make([]Contribution, len(contribs))
	copy(remaining, contribs)
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Chair < remaining[j].Chair })

	var (
		pots  []Pot
		carry int64 // dead money before any live layer
	)
	for {
		var min int64
		for _, c := range remaining {
			if c.Amount > 0 && (min == 0 || c.Amount < min) {
				min = c.Amount
			}
		}
		if min == 0 {
			break
		}

		var (
			amount   int64
			eligible []uint16
		)
		for i := range remaining {
			if remaining[i].Amount <= 0 {
				continue
			}
			amount += min
			remaining[i].Amount -= min
			if remaining[i].Live {
				eligible = append(eligible, remaining[i].Chair)
			}
		}

		switch {
		case len(eligible) == 0 && len(pots) == 0:
			carry += amount
		case len(eligible) == 0:
			pots[len(pots)-1].Amount += amount
		case len(pots) > 0 && sameChairs(pots[len(pots)-1].Eligible, eligible):
			pots[len(pots)-1].Amount += amount
		default:
			pots = append(pots, Pot{Amount: amount + carry, Eligible: eligible})
			carry = 0
		}
	}
	return pots
}

func sameChairs(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// computeRake: floor(total*bps/10000), capped.
func computeRake(total, bps, cap int64) int64 {
	if total <= 0 || bps <= 0 {
		return 0
	}
	r := total * bps / 10000
	if cap > 0 && r > cap {
		r = cap
	}
	return r
}

// takeRake deducts rake from the pots front to back and returns the per-pot cut.
func takeRake(pots []Pot, rake int64) []int64 {
	cuts := make([]int64, len(pots))
	for i := range pots {
		if rake <= 0 {
			break
		}
		cut := rake
		if cut > pots[i].Amount {
			cut = pots[i].Amount
		}
		pots[i].Amount -= cut
		cuts[i] = cut
		rake -= cut
	}
	return cuts
}
