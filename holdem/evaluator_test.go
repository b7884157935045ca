package holdem

import (
	"testing"

	"github.com/paulhankin/poker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdem-chips/card"
)

func TestEvaluate7_Categories(t *testing.T) {
	cases := []struct {
		cards string
		cat   HandCategory
		ranks []card.Rank
		label string
	}{
		{"Ah Kh Qh Jh Th 2c 3d", HandStraightFlush, []card.Rank{card.Ace}, "Royal Flush"},
		{"9s 8s 7s 6s 5s Ac Ad", HandStraightFlush, []card.Rank{card.Nine}, "Straight Flush, Nine high"},
		{"7c 7d 7h 7s Kd 2c 3c", HandFourOfKind, []card.Rank{card.Seven, card.King}, "Four of a Kind, Sevens"},
		{"2s 2h 2d 9c 9h Kd 4s", HandFullHouse, []card.Rank{card.Two, card.Nine}, "Full House, Twos full of Nines"},
		{"Ad 9d 6d 4d 2d Kc Qs", HandFlush, []card.Rank{card.Ace, card.Nine, card.Six, card.Four, card.Two}, "Flush, Ace high"},
		{"As 2d 3c 4h 5s 9d Jc", HandStraight, []card.Rank{card.Five}, "Straight, Five high"},
		{"6s 6d 6c Jh 4s 9d 2c", HandThreeOfKind, []card.Rank{card.Six, card.Jack, card.Nine}, "Three of a Kind, Sixes"},
		{"Ks Kd 4c 4h 9s 2d 3c", HandTwoPair, []card.Rank{card.King, card.Four, card.Nine}, "Two Pair, Kings and Fours"},
		{"Js Jd 8c 6h 4s 3d 2c", HandOnePair, []card.Rank{card.Jack, card.Eight, card.Six, card.Four}, "Pair of Jacks"},
		{"As Qd 9c 7h 5s 3d 2c", HandHighCard, []card.Rank{card.Ace, card.Queen, card.Nine, card.Seven, card.Five}, "High Card, Ace"},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			v, err := Evaluate7(card.MustParseList(tc.cards))
			require.NoError(t, err)
			assert.Equal(t, tc.cat, v.Category)
			assert.Equal(t, tc.ranks, v.Ranks)
			assert.Equal(t, tc.label, v.Label)
			assert.Len(t, v.Best, 5)
		})
	}
}

func TestEvaluate7_WheelIsLowestStraight(t *testing.T) {
	wheel, err := Evaluate7(card.MustParseList("As 2d 3c 4h 5s Kd Kc"))
	require.NoError(t, err)
	six, err := Evaluate7(card.MustParseList("2d 3c 4h 5s 6d Kd Kc"))
	require.NoError(t, err)
	assert.Equal(t, HandStraight, wheel.Category)
	assert.Equal(t, -1, Compare(wheel, six))
	assert.Equal(t, 1, Compare(six, wheel))
}

func TestEvaluate7_Kickers(t *testing.T) {
	a, _ := Evaluate7(card.MustParseList("Ah Ad Kc 9s 7h 4d 2c"))
	b, _ := Evaluate7(card.MustParseList("As Ac Qc 9d 7c 4s 2d"))
	assert.Equal(t, 1, Compare(a, b))

	// both play the board
	c, _ := Evaluate7(card.MustParseList("2c 3d As Ks Qs Js Ts"))
	d, _ := Evaluate7(card.MustParseList("4c 5d As Ks Qs Js Ts"))
	assert.Equal(t, 0, Compare(c, d))
}

func TestEvaluate7_RejectsMalformedInput(t *testing.T) {
	_, err := Evaluate7(card.MustParseList("As Ks Qs Js Ts 9s"))
	assert.Error(t, err)
	_, err = Evaluate7(card.MustParseList("As As Qs Js Ts 9s 8s"))
	assert.Error(t, err)
	_, err = Evaluate7([]card.Card{card.CardInvalid, 1, 2, 3, 4, 5, 6})
	assert.Error(t, err)
}

func toOracle(t *testing.T, cs []card.Card) [7]poker.Card {
	t.Helper()
	var out [7]poker.Card
	for i, c := range cs {
		r := int(c.Rank())
		if c.Rank() == card.Ace {
			r = 1
		}
		pc, err := poker.MakeCard(poker.Suit(c.Suit()), poker.Rank(r))
		require.NoError(t, err)
		out[i] = pc
	}
	return out
}

// Random hands must order the same way as an independent evaluator.
func TestEvaluate7_MatchesOracle(t *testing.T) {
	sh, err := card.NewShuffler(42)
	require.NoError(t, err)

	for i := 0; i < 2000; i++ {
		deck := sh.ShuffledDeck()
		board := deck[4:9]
		h1 := append(deck[0:2].Clone(), board...)
		h2 := append(deck[2:4].Clone(), board...)

		v1, err := Evaluate7(h1)
		require.NoError(t, err)
		v2, err := Evaluate7(h2)
		require.NoError(t, err)

		o1, o2 := toOracle(t, h1), toOracle(t, h2)
		s1, s2 := poker.Eval7(&o1), poker.Eval7(&o2)
		want := 0
		switch {
		case s1 > s2:
			want = 1
		case s1 < s2:
			want = -1
		}
		if got := Compare(v1, v2); got != want {
			t.Fatalf("hand %d: %s (%s) vs %s (%s): got %d want %d",
				i, card.CardList(h1), v1.Label, card.CardList(h2), v2.Label, got, want)
		}
	}
}
