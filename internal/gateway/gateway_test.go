package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"holdem-chips/internal/ledger"
	"holdem-chips/internal/lobby"
	"holdem-chips/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *ledger.MemoryStore) {
	t.Helper()
	// actors outlive the test briefly; keep them off t.Log
	log := logger.Nop()
	store := ledger.NewMemoryStore()
	gw := New(Options{Store: store, StartingChips: 1000, Logger: log})
	lby := lobby.New(lobby.Options{Escrow: store, Notify: gw.Notify, Logger: log})
	gw.Bind(lby)
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleWebSocket))
	t.Cleanup(func() {
		lby.Shutdown()
		srv.Close()
		gw.Close()
	})
	return srv, store
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set(ledger.UserHeader, user)
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

// readUntil skips messages until one matches.
func readUntil(t *testing.T, conn *websocket.Conn, match func(ServerMessage) bool) ServerMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var m ServerMessage
		require.NoError(t, conn.ReadJSON(&m))
		if match(m) {
			return m
		}
	}
}

func reply(ref string) func(ServerMessage) bool {
	return func(m ServerMessage) bool {
		return (m.Type == "ok" || m.Type == "error") && m.Ref == ref
	}
}

func TestGateway_RequiresUser(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_HostJoinAndPlayHand(t *testing.T) {
	srv, store := newTestServer(t)
	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	conns := map[string]*websocket.Conn{"alice": alice, "bob": bob}

	send(t, alice, Command{Type: "host", Guild: "g1", Channel: "c1"})
	m := readUntil(t, alice, reply("host"))
	require.Equal(t, "ok", m.Type, m.Error)
	assert.Equal(t, "alice", m.View.Host)

	send(t, alice, Command{Type: "join", Guild: "g1", Channel: "c1", Amount: 100})
	require.Equal(t, "ok", readUntil(t, alice, reply("join")).Type)
	send(t, bob, Command{Type: "join", Guild: "g1", Channel: "c1", Amount: 100})
	require.Equal(t, "ok", readUntil(t, bob, reply("join")).Type)

	send(t, bob, Command{Type: "start", Guild: "g1", Channel: "c1"})
	m = readUntil(t, bob, reply("start"))
	assert.Equal(t, "error", m.Type)

	send(t, alice, Command{Type: "start", Guild: "g1", Channel: "c1"})
	m = readUntil(t, alice, reply("start"))
	require.Equal(t, "ok", m.Type, m.Error)
	require.Len(t, m.View.Seats, 2)

	var actor string
	for _, s := range m.View.Seats {
		if s.Chair == m.View.ToAct {
			actor = s.UserID
		}
		if s.UserID == "alice" {
			assert.Len(t, s.Hole, 2)
		} else {
			assert.Empty(t, s.Hole)
		}
	}
	require.NotEmpty(t, actor)

	send(t, conns[actor], Command{Type: "act", Guild: "g1", Channel: "c1", Action: "fold"})
	require.Equal(t, "ok", readUntil(t, conns[actor], reply("act")).Type)

	result := readUntil(t, alice, func(m ServerMessage) bool {
		return m.Type == "notice" && m.Notice.Kind == "hand_result"
	})
	var paid int64
	for _, amt := range result.Notice.Payouts {
		paid += amt
	}
	assert.Equal(t, int64(2), paid)

	bal, err := store.Balance(context.Background(), "g1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(900), bal)
}

func TestGateway_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := dial(t, srv, "alice")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
	m := readUntil(t, alice, func(m ServerMessage) bool { return m.Type == "error" })
	assert.Equal(t, "invalid message format", m.Error)

	send(t, alice, Command{Type: "join", Guild: "g1", Channel: "nope", Amount: 100})
	m = readUntil(t, alice, reply("join"))
	assert.Equal(t, lobby.ErrTableNotFound.Error(), m.Error)

	send(t, alice, Command{Type: "host", Guild: "g1", Channel: "c1"})
	require.Equal(t, "ok", readUntil(t, alice, reply("host")).Type)

	send(t, alice, Command{Type: "act", Guild: "g1", Channel: "c1", Action: "dance"})
	m = readUntil(t, alice, reply("act"))
	assert.Contains(t, m.Error, "unknown action")

	send(t, alice, Command{Type: "shuffle", Guild: "g1", Channel: "c1"})
	m = readUntil(t, alice, reply("shuffle"))
	assert.Contains(t, m.Error, "unknown command")

	send(t, alice, Command{Type: "balance", Guild: "g1"})
	m = readUntil(t, alice, func(m ServerMessage) bool { return m.Type == "balance" })
	require.NotNil(t, m.Balance)
	assert.Equal(t, int64(1000), *m.Balance)

	send(t, alice, Command{Type: "list", Guild: "g1"})
	m = readUntil(t, alice, func(m ServerMessage) bool { return m.Type == "tables" })
	require.Len(t, m.Tables, 1)
	assert.Equal(t, "c1", m.Tables[0].Channel)
}
