package lobby

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"holdem-chips/holdem"
	"holdem-chips/internal/ledger"
	"holdem-chips/internal/logger"
	"holdem-chips/internal/table"

	"go.uber.org/zap"
)

var (
	ErrTableExists   = errors.New("a table is already running in this channel")
	ErrTableNotFound = errors.New("no table in this channel")
)

// entry is the registry slot; the close hook removes a table only while
// its own slot is still registered.
type entry struct {
	table *table.Table
}

// Lobby manages all tables, at most one per (guild, channel).
type Lobby struct {
	mu     sync.RWMutex
	tables map[ledger.TableID]*entry

	escrow ledger.Escrow
	notify func(table.Notice)
	base   *zap.SugaredLogger
	log    *zap.SugaredLogger

	// Default table config
	defaultConfig table.Config
}

type Options struct {
	Escrow   ledger.Escrow
	Notify   func(table.Notice)
	Logger   *zap.SugaredLogger
	Defaults table.Config
}

// New creates a new lobby
func New(opts Options) *Lobby {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	defaults := opts.Defaults
	if defaults.Game.BigBlind == 0 {
		defaults.Game = holdem.Config{
			SmallBlind: 1,
			BigBlind:   2,
			MinBuyIn:   40,
			MaxBuyIn:   200,
		}
	}
	return &Lobby{
		tables:        make(map[ledger.TableID]*entry),
		escrow:        opts.Escrow,
		notify:        opts.Notify,
		base:          log,
		log:           log.Named("lobby"),
		defaultConfig: defaults,
	}
}

// Host creates the channel's table. A zero game config takes the lobby defaults.
func (l *Lobby) Host(id ledger.TableID, hostID string, game holdem.Config) (*table.Table, error) {
	if id.GuildID == "" || id.ChannelID == "" {
		return nil, fmt.Errorf("invalid table id %q", id)
	}
	if hostID == "" {
		return nil, errors.New("missing host")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.tables[id]; ok {
		return nil, ErrTableExists
	}

	cfg := l.defaultConfig
	if game.BigBlind != 0 {
		cfg.Game = game
	}
	e := &entry{}
	t, err := table.New(id, hostID, cfg, table.Options{
		Escrow:  l.escrow,
		Notify:  l.notify,
		OnClose: func(id ledger.TableID) { l.remove(id, e) },
		Logger:  l.base,
	})
	if err != nil {
		return nil, err
	}
	e.table = t
	l.tables[id] = e

	l.log.Infof("[Lobby] %s hosted table %s (blinds=%d/%d)", hostID, id, t.Config.Game.SmallBlind, t.Config.Game.BigBlind)
	return t, nil
}

func (l *Lobby) remove(id ledger.TableID, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tables[id] == e {
		delete(l.tables, id)
		l.log.Infof("[Lobby] table %s removed", id)
	}
}

// Get returns the channel's table
func (l *Lobby) Get(id ledger.TableID) (*table.Table, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.tables[id]
	if !ok || e.table == nil {
		return nil, false
	}
	return e.table, true
}

// Close tears down the channel's table on behalf of userID ("" for the system).
func (l *Lobby) Close(id ledger.TableID, userID string) error {
	t, ok := l.Get(id)
	if !ok {
		return ErrTableNotFound
	}
	return t.Close(userID)
}

type TableInfo struct {
	ID     ledger.TableID
	Host   string
	Seats  int
	Phase  string
	HandNo uint32
	Blinds [2]int64
}

// List describes every guild table, ordered by channel.
func (l *Lobby) List(guildID string) []TableInfo {
	// collect first: a table closing under its own lock calls back into the lobby
	tables := l.snapshot()
	out := make([]TableInfo, 0, len(tables))
	for _, t := range tables {
		if guildID != "" && t.ID.GuildID != guildID {
			continue
		}
		v := t.View("")
		out = append(out, TableInfo{
			ID:     t.ID,
			Host:   v.Host,
			Seats:  len(v.Seats),
			Phase:  v.Phase,
			HandNo: v.HandNo,
			Blinds: v.Blinds,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.GuildID != out[j].ID.GuildID {
			return out[i].ID.GuildID < out[j].ID.GuildID
		}
		return out[i].ID.ChannelID < out[j].ID.ChannelID
	})
	return out
}

func (l *Lobby) snapshot() []*table.Table {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*table.Table, 0, len(l.tables))
	for _, e := range l.tables {
		if e.table != nil {
			out = append(out, e.table)
		}
	}
	return out
}

// Shutdown closes every table, returning all escrow. A table still waiting
// on the ledger for its last hand stays registered until that settles.
func (l *Lobby) Shutdown() {
	for _, t := range l.snapshot() {
		err := t.Close("")
		switch {
		case err == nil, errors.Is(err, table.ErrTableClosed):
		case errors.Is(err, holdem.ErrSettlementPending):
			l.log.Warnf("[Lobby] %s closes once its last hand settles: %v", t.ID, err)
		default:
			l.log.Warnf("[Lobby] closing %s: %v", t.ID, err)
		}
	}
}
