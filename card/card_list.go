package card

import "strings"

type CardList []Card

// NewDeck returns the 52 cards in rank-major order.
func NewDeck() CardList {
	deck := make(CardList, 0, 52)
	for r := Two; r <= Ace; r++ {
		for s := Club; s <= Spade; s++ {
			c, _ := New(r, s)
			deck = append(deck, c)
		}
	}
	return deck
}

func (ds *CardList) Init(cards []Card) {
	*ds = make([]Card, len(cards))
	copy(*ds, cards)
}

// Count 获取总牌数
func (ds CardList) Count() int {
	return len(ds)
}

func (ds *CardList) Add(cards ...Card) {
	*ds = append(*ds, cards...)
}

// PopCards 从牌堆顶部取 size 张
func (ds *CardList) PopCards(size int) ([]Card, bool) {
	if size < 0 || size > ds.Count() {
		return nil, false
	}
	cards := make([]Card, size)
	copy(cards, (*ds)[:size])
	*ds = (*ds)[size:]
	return cards, true
}

func (ds CardList) Contains(c Card) bool {
	for _, cc := range ds {
		if cc == c {
			return true
		}
	}
	return false
}

func (ds CardList) Clone() CardList {
	if ds == nil {
		return nil
	}
	return append(CardList{}, ds...)
}

func (ds CardList) String() string {
	parts := make([]string, len(ds))
	for i, c := range ds {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// Strings is the wire form used by views and hand records.
func (ds CardList) Strings() []string {
	out := make([]string, len(ds))
	for i, c := range ds {
		out[i] = c.String()
	}
	return out
}
