package lobby

import (
	"context"
	"testing"
	"time"

	"holdem-chips/holdem"
	"holdem-chips/internal/ledger"
	"holdem-chips/internal/logger"
	"holdem-chips/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLobby(t *testing.T) (*Lobby, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	l := New(Options{
		Escrow: store,
		Logger: logger.Nop(),
	})
	t.Cleanup(l.Shutdown)
	return l, store
}

func TestLobby_HostOnePerChannel(t *testing.T) {
	l, _ := newTestLobby(t)
	id := ledger.TableID{GuildID: "g1", ChannelID: "c1"}

	tbl, err := l.Host(id, "alice", holdem.Config{})
	require.NoError(t, err)
	assert.Equal(t, "alice", tbl.Host())
	assert.Equal(t, int64(2), tbl.Config.Game.BigBlind, "lobby defaults")

	_, err = l.Host(id, "bob", holdem.Config{})
	assert.ErrorIs(t, err, ErrTableExists)

	other, err := l.Host(ledger.TableID{GuildID: "g1", ChannelID: "c2"}, "bob",
		holdem.Config{SmallBlind: 5, BigBlind: 10, MinBuyIn: 100, MaxBuyIn: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(10), other.Config.Game.BigBlind)

	got, ok := l.Get(id)
	require.True(t, ok)
	assert.Same(t, tbl, got)

	infos := l.List("g1")
	require.Len(t, infos, 2)
	assert.Equal(t, "c1", infos[0].ID.ChannelID)
	assert.Equal(t, "bob", infos[1].Host)
	assert.Empty(t, l.List("g2"))
}

func TestLobby_HostRejectsBadInput(t *testing.T) {
	l, _ := newTestLobby(t)
	_, err := l.Host(ledger.TableID{GuildID: "g1"}, "alice", holdem.Config{})
	assert.Error(t, err)
	_, err = l.Host(ledger.TableID{GuildID: "g1", ChannelID: "c1"}, "", holdem.Config{})
	assert.Error(t, err)
	_, err = l.Host(ledger.TableID{GuildID: "g1", ChannelID: "c1"}, "alice",
		holdem.Config{SmallBlind: 5, BigBlind: 2, MinBuyIn: 10, MaxBuyIn: 20})
	assert.Error(t, err)
	assert.Empty(t, l.List(""))
}

func TestLobby_CloseRemovesTableAndReturnsEscrow(t *testing.T) {
	l, store := newTestLobby(t)
	ctx := context.Background()
	id := ledger.TableID{GuildID: "g1", ChannelID: "c1"}
	_, err := store.EnsureAccount(ctx, "g1", "alice", 500)
	require.NoError(t, err)

	tbl, err := l.Host(id, "alice", holdem.Config{})
	require.NoError(t, err)
	require.NoError(t, tbl.Join("alice", 100))

	bal, err := store.Balance(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(400), bal)

	assert.ErrorIs(t, l.Close(id, "mallory"), table.ErrNotHost)
	require.NoError(t, l.Close(id, "alice"))

	require.Eventually(t, func() bool {
		_, ok := l.Get(id)
		return !ok
	}, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, l.Close(id, "alice"), ErrTableNotFound)

	bal, err = store.Balance(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal)

	// the channel can host again
	_, err = l.Host(id, "bob", holdem.Config{})
	require.NoError(t, err)
}
