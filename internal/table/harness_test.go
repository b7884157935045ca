package table

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"holdem-chips/card"
	"holdem-chips/holdem"
	"holdem-chips/internal/ledger"

	"github.com/sanity-io/litter"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testID = ledger.TableID{GuildID: "g1", ChannelID: "c1"}

const startingWallet = 1000

func chairPtr(c uint16) *uint16 { return &c }

func testConfig() Config {
	return Config{
		Game: holdem.Config{
			SmallBlind:   1,
			BigBlind:     2,
			MinBuyIn:     20,
			MaxBuyIn:     200,
			Seed:         1,
			ForcedButton: chairPtr(0),
		},
	}
}

func deckWithPrefix(prefix string) card.CardList {
	head := card.MustParseList(prefix)
	out := head.Clone()
	for _, c := range card.NewDeck() {
		if !head.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}

// harness drives a table without its goroutine: events go straight to
// handleEvent and time only moves through advance.
type harness struct {
	t     *testing.T
	tbl   *Table
	store *ledger.MemoryStore
	clock time.Time

	mu      sync.Mutex
	notices []Notice
	closed  []ledger.TableID
}

func newHarness(t *testing.T, cfg Config, wrap func(*ledger.MemoryStore) ledger.Escrow) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		store: ledger.NewMemoryStore(),
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	var escrow ledger.Escrow = h.store
	if wrap != nil {
		escrow = wrap(h.store)
	}
	tbl, err := newTable(testID, "alice", cfg, Options{
		Escrow: escrow,
		Notify: func(n Notice) {
			h.mu.Lock()
			h.notices = append(h.notices, n)
			h.mu.Unlock()
		},
		OnClose: func(id ledger.TableID) { h.closed = append(h.closed, id) },
		Logger:  zaptest.NewLogger(t).Sugar(),
		Clock:   func() time.Time { return h.clock },
	})
	require.NoError(t, err)
	h.tbl = tbl
	return h
}

func (h *harness) do(e Event) error { return h.tbl.handleEvent(e) }

func (h *harness) join(user string, buyIn int64) {
	h.t.Helper()
	_, err := h.store.EnsureAccount(context.Background(), testID.GuildID, user, startingWallet)
	require.NoError(h.t, err)
	require.NoError(h.t, h.do(Event{Type: EventJoin, UserID: user, Amount: buyIn}))
}

func (h *harness) act(user string, a holdem.ActionType, amount int64) {
	h.t.Helper()
	err := h.do(Event{Type: EventAction, UserID: user, Action: a, Amount: amount})
	require.NoError(h.t, err, "act %s %v %d\n%s", user, a, amount, litter.Sdump(h.tbl.Snapshot()))
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
	h.tbl.tick(h.clock)
}

func (h *harness) toActUser() string {
	h.t.Helper()
	s := h.tbl.game.Seat(h.tbl.game.ToAct())
	require.NotNil(h.t, s, "nobody to act")
	return s.UserID
}

func (h *harness) stack(user string) int64 {
	h.t.Helper()
	chair, ok := h.tbl.game.ChairOf(user)
	require.True(h.t, ok, "%s not seated", user)
	return h.tbl.game.Seat(chair).Stack()
}

func (h *harness) wallet(user string) int64 {
	h.t.Helper()
	bal, err := h.store.Balance(context.Background(), testID.GuildID, user)
	require.NoError(h.t, err)
	return bal
}

func (h *harness) escrowOf(user string) int64 {
	h.t.Helper()
	bal, err := h.store.EscrowBalance(context.Background(), testID, user)
	require.NoError(h.t, err)
	return bal
}

func (h *harness) noticesOf(kind NoticeKind) []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Notice
	for _, n := range h.notices {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// flakyEscrow fails the first few credit calls.
type flakyEscrow struct {
	*ledger.MemoryStore
	failCredits int
	calls       int
}

var errLedgerDown = errors.New("ledger unavailable")

func (f *flakyEscrow) EscrowCreditMany(ctx context.Context, table ledger.TableID, handID string, payouts []ledger.Payout) error {
	f.calls++
	if f.failCredits > 0 {
		f.failCredits--
		return errLedgerDown
	}
	return f.MemoryStore.EscrowCreditMany(ctx, table, handID, payouts)
}
