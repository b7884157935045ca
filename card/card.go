package card

import (
	"fmt"
	"strings"
)

// Card 牌
//
// 编码规则:
// - 高6位: 点数 (2..14, A=14)
// - 低2位: 花色 (0:Club, 1:Diamond, 2:Heart, 3:Spade)
//
// The zero value is CardInvalid.
type Card byte

const CardInvalid Card = 0

func New(r Rank, s Suit) (Card, error) {
	if !r.Valid() || s > Spade {
		return CardInvalid, fmt.Errorf("invalid card rank=%d suit=%d", r, s)
	}
	return Card(byte(r)<<2 | byte(s)), nil
}

func (c Card) Rank() Rank { return Rank(c >> 2) }
func (c Card) Suit() Suit { return Suit(c & 0x03) }

func (c Card) Valid() bool { return c.Rank().Valid() }

func (c Card) String() string {
	if !c.Valid() {
		return "Invalid"
	}
	return c.Rank().String() + c.Suit().String()
}

// Parse 将字符串 (如 "As", "Td", "10h") 转换为 Card
func Parse(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return CardInvalid, fmt.Errorf("invalid card string: %q", s)
	}

	var suit Suit
	switch s[len(s)-1] {
	case 'c', 'C':
		suit = Club
	case 'd', 'D':
		suit = Diamond
	case 'h', 'H':
		suit = Heart
	case 's', 'S':
		suit = Spade
	default:
		return CardInvalid, fmt.Errorf("invalid suit in %q", s)
	}

	rankStr := strings.ToUpper(s[:len(s)-1])
	if rankStr == "10" {
		rankStr = "T"
	}
	idx := strings.Index(rankLetters, rankStr)
	if len(rankStr) != 1 || idx < 0 {
		return CardInvalid, fmt.Errorf("invalid rank in %q", s)
	}
	return New(Two+Rank(idx), suit)
}

func MustParse(s string) Card {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseList parses space or comma separated cards: "Ah Kh,Qh".
func ParseList(s string) (CardList, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	out := make(CardList, 0, len(fields))
	for _, f := range fields {
		c, err := Parse(f)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func MustParseList(s string) CardList {
	l, err := ParseList(s)
	if err != nil {
		panic(err)
	}
	return l
}
