package holdem

import (
	"fmt"

	"holdem-chips/card"
)

const (
	MinSeatCap     = 2
	MaxSeatCap     = 10
	DefaultSeatCap = 9
)

type Config struct {
	// Table
	SeatCap int

	// Blinds
	SmallBlind int64
	BigBlind   int64

	// Buy-in bounds; a stack may never exceed MaxBuyIn through rebuys.
	MinBuyIn int64
	MaxBuyIn int64

	// Rake in basis points, capped per hand. RakeCap 0 means MaxBuyIn.
	RakeBps int64
	RakeCap int64

	// Shuffle seed (0 => crypto/rand key)
	Seed int64

	// Test hooks: fixed deck order and first-hand button.
	DeckOverride card.CardList
	ForcedButton *uint16
}

// WithDefaults fills zero values; the rake cap never exceeds the max buy-in.
func (c Config) WithDefaults() Config {
	if c.SeatCap == 0 {
		c.SeatCap = DefaultSeatCap
	}
	if c.RakeCap <= 0 || c.RakeCap > c.MaxBuyIn {
		c.RakeCap = c.MaxBuyIn
	}
	return c
}

func (c Config) Validate() error {
	if c.SeatCap < MinSeatCap || c.SeatCap > MaxSeatCap {
		return fmt.Errorf("seat cap must be in [%d, %d], got %d", MinSeatCap, MaxSeatCap, c.SeatCap)
	}
	if c.SmallBlind <= 0 || c.BigBlind <= 0 || c.SmallBlind > c.BigBlind {
		return fmt.Errorf("invalid blinds: sb=%d bb=%d", c.SmallBlind, c.BigBlind)
	}
	if c.MinBuyIn < c.BigBlind {
		return fmt.Errorf("min buy-in %d must cover the big blind %d", c.MinBuyIn, c.BigBlind)
	}
	if c.MaxBuyIn < c.MinBuyIn {
		return fmt.Errorf("invalid buy-in range: [%d, %d]", c.MinBuyIn, c.MaxBuyIn)
	}
	if c.RakeBps < 0 || c.RakeBps > 10000 {
		return fmt.Errorf("rake bps must be in [0, 10000], got %d", c.RakeBps)
	}
	if c.RakeCap < 0 || c.RakeCap > c.MaxBuyIn {
		return fmt.Errorf("rake cap %d exceeds max buy-in %d", c.RakeCap, c.MaxBuyIn)
	}
	if c.ForcedButton != nil && int(*c.ForcedButton) >= c.SeatCap {
		return fmt.Errorf("forced button %d outside seat cap %d", *c.ForcedButton, c.SeatCap)
	}
	return nil
}
