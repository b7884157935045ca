package ledger

import (
	"context"
	"fmt"
	"sync"
)

type walletKey struct{ guildID, userID string }

type escrowKey struct {
	table  TableID
	userID string
}

// MemoryStore keeps everything in process. Used by tests and the memory mode.
type MemoryStore struct {
	mu      sync.Mutex
	wallets map[walletKey]int64
	escrow  map[escrowKey]int64
	house   map[string]int64
	pots    map[string]int64
	applied map[string]struct{}
	records map[string][]byte // wire-encoded
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets: make(map[walletKey]int64),
		escrow:  make(map[escrowKey]int64),
		house:   make(map[string]int64),
		pots:    make(map[string]int64),
		applied: make(map[string]struct{}),
		records: make(map[string][]byte),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Grant(_ context.Context, guildID, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := walletKey{guildID, userID}
	m.wallets[k] += amount
	return m.wallets[k], nil
}

func (m *MemoryStore) EnsureAccount(_ context.Context, guildID, userID string, initial int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := walletKey{guildID, userID}
	if bal, ok := m.wallets[k]; ok {
		return bal, nil
	}
	if initial < 0 {
		initial = 0
	}
	m.wallets[k] = initial
	return initial, nil
}

func (m *MemoryStore) Balance(_ context.Context, guildID, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallets[walletKey{guildID, userID}], nil
}

func (m *MemoryStore) EscrowBalance(_ context.Context, table TableID, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrow[escrowKey{table, userID}], nil
}

func (m *MemoryStore) HouseBalance(_ context.Context, guildID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.house[guildID], nil
}

func (m *MemoryStore) PotBalance(_ context.Context, handID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pots[handID], nil
}

func (m *MemoryStore) EscrowAdd(_ context.Context, table TableID, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	wk := walletKey{table.GuildID, userID}
	if m.wallets[wk] < amount {
		return 0, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, m.wallets[wk], amount)
	}
	ek := escrowKey{table, userID}
	m.wallets[wk] -= amount
	m.escrow[ek] += amount
	return m.escrow[ek], nil
}

func (m *MemoryStore) EscrowReturn(_ context.Context, table TableID, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ek := escrowKey{table, userID}
	amount = min(amount, m.escrow[ek])
	m.escrow[ek] -= amount
	m.wallets[walletKey{table.GuildID, userID}] += amount
	remaining := m.escrow[ek]
	if remaining == 0 {
		delete(m.escrow, ek)
	}
	return remaining, nil
}

func (m *MemoryStore) EscrowCommit(_ context.Context, table TableID, userID, handID, street string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := commitKey(handID, userID, street)
	if _, ok := m.applied[key]; ok {
		return nil
	}
	ek := escrowKey{table, userID}
	if m.escrow[ek] < amount {
		return fmt.Errorf("%w: escrow %d, commit %d", ErrInsufficientEscrow, m.escrow[ek], amount)
	}
	m.escrow[ek] -= amount
	m.pots[handID] += amount
	m.applied[key] = struct{}{}
	return nil
}

func (m *MemoryStore) EscrowCreditMany(_ context.Context, table TableID, handID string, payouts []Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	pending := make([]Payout, 0, len(payouts))
	for _, p := range payouts {
		if p.Amount < 0 {
			return ErrInvalidAmount
		}
		if p.Amount == 0 {
			continue
		}
		if _, ok := m.applied[creditKey(handID, p.UserID)]; ok {
			continue
		}
		total += p.Amount
		pending = append(pending, p)
	}
	if total > m.pots[handID] {
		return fmt.Errorf("credit %d exceeds hand pot %d", total, m.pots[handID])
	}
	for _, p := range pending {
		m.escrow[escrowKey{table, p.UserID}] += p.Amount
		m.pots[handID] -= p.Amount
		m.applied[creditKey(handID, p.UserID)] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) SettleRake(_ context.Context, table TableID, handID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.applied[rakeKey(handID)]; ok || amount == 0 {
		return m.house[table.GuildID], nil
	}
	if amount > m.pots[handID] {
		return 0, fmt.Errorf("rake %d exceeds hand pot %d", amount, m.pots[handID])
	}
	m.pots[handID] -= amount
	m.house[table.GuildID] += amount
	m.applied[rakeKey(handID)] = struct{}{}
	return m.house[table.GuildID], nil
}

func (m *MemoryStore) FinalizeHand(_ context.Context, rec *HandRecord) error {
	if rec == nil || rec.HandID == "" {
		return fmt.Errorf("hand record requires a hand id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.HandID]; !ok {
		m.records[rec.HandID] = MarshalHandRecord(rec)
	}
	if m.pots[rec.HandID] == 0 {
		delete(m.pots, rec.HandID)
	}
	return nil
}

func (m *MemoryStore) HandRecord(_ context.Context, handID string) (*HandRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.records[handID]
	if !ok {
		return nil, ErrNotFound
	}
	return UnmarshalHandRecord(raw)
}
