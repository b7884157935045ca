package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"holdem-chips/holdem"
	"holdem-chips/internal/ledger"
	"holdem-chips/internal/logger"
	"holdem-chips/internal/lobby"
	"holdem-chips/internal/table"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// the chat-platform proxy in front of us authenticates the user
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	ledgerWait   = 5 * time.Second
)

// Connection represents a WebSocket client connection
type Connection struct {
	ID      string
	UserID  string
	Conn    *websocket.Conn
	Send    chan []byte
	Gateway *Gateway

	closeOnce sync.Once
}

// Gateway turns client commands into table events and fans table notices
// back out to the connections watching each table.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	subs        map[ledger.TableID]map[*Connection]struct{}
	nextConnID  uint64

	lobby         *lobby.Lobby
	store         ledger.Store
	startingChips int64

	notices chan table.Notice
	done    chan struct{}
	stop    sync.Once
	log     *zap.SugaredLogger
}

type Options struct {
	Store         ledger.Store
	StartingChips int64 // wallet seed for first-time players
	Logger        *zap.SugaredLogger
}

// New creates a new Gateway instance. Bind a lobby before serving.
func New(opts Options) *Gateway {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	g := &Gateway{
		connections:   make(map[string]*Connection),
		subs:          make(map[ledger.TableID]map[*Connection]struct{}),
		store:         opts.Store,
		startingChips: opts.StartingChips,
		notices:       make(chan table.Notice, 1024),
		done:          make(chan struct{}),
		log:           log.Named("gateway"),
	}
	go g.dispatch()
	return g
}

func (g *Gateway) Bind(l *lobby.Lobby) { g.lobby = l }

// Close stops notice dispatch and drops every connection.
func (g *Gateway) Close() {
	g.stop.Do(func() { close(g.done) })
	g.mu.Lock()
	conns := make([]*Connection, 0, len(g.connections))
	for _, c := range g.connections {
		conns = append(conns, c)
	}
	g.mu.Unlock()
	for _, c := range conns {
		_ = c.Conn.Close()
	}
}

// Notify is the tables' notice sink. It runs under a table lock, so it only
// queues.
func (g *Gateway) Notify(n table.Notice) {
	select {
	case g.notices <- n:
	default:
		g.log.Warnf("[Gateway] notice queue full, dropped %s for %s", n.Kind, n.Table)
	}
}

// HandleWebSocket handles WebSocket upgrade and connection
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get(ledger.UserHeader))
	if userID == "" {
		userID = strings.TrimSpace(r.URL.Query().Get("user"))
	}
	if userID == "" {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warnf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:      fmt.Sprintf("conn_%d", g.nextConnID),
		UserID:  userID,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Gateway: g,
	}
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	g.log.Infof("[Gateway] Client connected: %s (user=%s), total: %d", c.ID, userID, total)

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(65536)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Gateway.log.Warnf("[Gateway] Read error: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.connections, c.ID)
	for id, set := range g.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(g.subs, id)
		}
	}
	c.closeOnce.Do(func() { close(c.Send) })
	g.log.Infof("[Gateway] Client disconnected: %s, total: %d", c.ID, len(g.connections))
}

func (g *Gateway) subscribe(id ledger.TableID, c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, live := g.connections[c.ID]; !live {
		return
	}
	set := g.subs[id]
	if set == nil {
		set = make(map[*Connection]struct{})
		g.subs[id] = set
	}
	set[c] = struct{}{}
}

func (g *Gateway) subscribers(id ledger.TableID) []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Connection, 0, len(g.subs[id]))
	for c := range g.subs[id] {
		out = append(out, c)
	}
	return out
}

// send queues a message, dropping it when the client is not keeping up.
func (g *Gateway) send(c *Connection, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		g.log.Errorf("[Gateway] marshal %s: %v", msg.Type, err)
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, live := g.connections[c.ID]; !live {
		return
	}
	select {
	case c.Send <- data:
	default:
		g.log.Warnf("[Gateway] send buffer full for %s, dropped %s", c.ID, msg.Type)
	}
}

// dispatch fans notices out; views are rendered here, off the table lock.
func (g *Gateway) dispatch() {
	for {
		select {
		case n := <-g.notices:
			g.deliver(n)
		case <-g.done:
			return
		}
	}
}

func (g *Gateway) deliver(n table.Notice) {
	msg := noticeMessage(n)
	conns := g.subscribers(n.Table)
	var t *table.Table
	if g.lobby != nil && refreshesView(n.Kind) {
		t, _ = g.lobby.Get(n.Table)
	}
	for _, c := range conns {
		g.send(c, ServerMessage{Type: "notice", Table: n.Table.String(), Notice: msg})
		if t != nil {
			v := t.View(c.UserID)
			g.send(c, ServerMessage{Type: "view", Table: n.Table.String(), View: &v})
		}
	}
	if n.Kind == table.NoticeTableClosed {
		g.mu.Lock()
		delete(g.subs, n.Table)
		g.mu.Unlock()
	}
}

func refreshesView(k table.NoticeKind) bool {
	switch k {
	case table.NoticeActionWarning, table.NoticeSettlementDelayed, table.NoticeTableClosed:
		return false
	}
	return true
}

func (c *Connection) handleMessage(data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.Gateway.send(c, ServerMessage{Type: "error", Error: "invalid message format"})
		return
	}
	c.Gateway.log.Debugf("[Gateway] Received from user %s: %s %s:%s", c.UserID, cmd.Type, cmd.Guild, cmd.Channel)
	if err := c.Gateway.handle(c, cmd); err != nil {
		c.Gateway.send(c, ServerMessage{Type: "error", Ref: cmd.Type, Table: cmd.tableID().String(), Error: err.Error()})
	}
}

func (g *Gateway) handle(c *Connection, cmd Command) error {
	if g.lobby == nil {
		return fmt.Errorf("lobby not ready")
	}
	id := cmd.tableID()

	switch cmd.Type {
	case "list":
		g.send(c, ServerMessage{Type: "tables", Tables: summarize(g.lobby.List(cmd.Guild))})
		return nil
	case "balance":
		if cmd.Guild == "" {
			return fmt.Errorf("missing guild")
		}
		bal, err := g.ensureWallet(cmd.Guild, c.UserID)
		if err != nil {
			return err
		}
		g.send(c, ServerMessage{Type: "balance", Balance: &bal})
		return nil
	case "host":
		t, err := g.lobby.Host(id, c.UserID, cmd.gameConfig())
		if err != nil {
			return err
		}
		g.subscribe(id, c)
		g.ack(c, cmd, t)
		return nil
	}

	t, ok := g.lobby.Get(id)
	if !ok {
		return lobby.ErrTableNotFound
	}
	g.subscribe(id, c)

	var err error
	switch cmd.Type {
	case "view", "watch":
	case "join":
		if _, err = g.ensureWallet(id.GuildID, c.UserID); err == nil {
			err = t.Join(c.UserID, cmd.Amount)
		}
	case "leave":
		err = t.Leave(c.UserID)
	case "rebuy":
		err = t.Rebuy(c.UserID, cmd.Amount)
	case "act":
		a, ok := holdem.ParseAction(cmd.Action)
		if !ok {
			return fmt.Errorf("unknown action %q", cmd.Action)
		}
		err = t.Act(c.UserID, a, cmd.Amount)
	case "start":
		err = t.Start(c.UserID)
	case "sitout":
		err = t.SitOut(c.UserID)
	case "sitin":
		err = t.SitIn(c.UserID)
	case "close":
		return g.lobby.Close(id, c.UserID)
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
	if err != nil {
		return err
	}
	g.ack(c, cmd, t)
	return nil
}

func (g *Gateway) ack(c *Connection, cmd Command, t *table.Table) {
	v := t.View(c.UserID)
	g.send(c, ServerMessage{Type: "ok", Ref: cmd.Type, Table: t.ID.String(), View: &v})
}

func (g *Gateway) ensureWallet(guildID, userID string) (int64, error) {
	if g.store == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerWait)
	defer cancel()
	return g.store.EnsureAccount(ctx, guildID, userID, g.startingChips)
}
