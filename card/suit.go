package card

// Suit 花色
type Suit byte

const (
	Club Suit = iota
	Diamond
	Heart
	Spade
)

var suitLetters = [...]byte{'c', 'd', 'h', 's'}

func (s Suit) String() string {
	if s > Spade {
		return "?"
	}
	return string(suitLetters[s])
}

// Rank 点数, 2..14 (A=14)
type Rank byte

const (
	Two   Rank = 2
	Three Rank = 3
	Four  Rank = 4
	Five  Rank = 5
	Six   Rank = 6
	Seven Rank = 7
	Eight Rank = 8
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

const rankLetters = "23456789TJQKA"

func (r Rank) Valid() bool { return r >= Two && r <= Ace }

func (r Rank) String() string {
	if !r.Valid() {
		return "?"
	}
	return string(rankLetters[r-Two])
}

// Name is the plural-friendly English name used in hand labels.
func (r Rank) Name() string {
	switch r {
	case Ace:
		return "Ace"
	case King:
		return "King"
	case Queen:
		return "Queen"
	case Jack:
		return "Jack"
	case Ten:
		return "Ten"
	case Nine:
		return "Nine"
	case Eight:
		return "Eight"
	case Seven:
		return "Seven"
	case Six:
		return "Six"
	case Five:
		return "Five"
	case Four:
		return "Four"
	case Three:
		return "Three"
	case Two:
		return "Two"
	}
	return "?"
}
