package table

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"holdem-chips/holdem"
	"holdem-chips/internal/ledger"
	"holdem-chips/internal/logger"

	"go.uber.org/zap"
)

// Table is a single chip table driven by one actor goroutine.
type Table struct {
	ID     ledger.TableID
	Config Config

	mu       sync.RWMutex
	game     *holdem.Game
	host     string
	closed   bool
	closing  string // close reason held until the pending settlement lands
	stopOnce sync.Once

	// Event channel for actor pattern
	events chan Event
	done   chan struct{}

	timers map[timerKind]*timer
	now    func() time.Time

	escrow  ledger.Escrow
	notify  func(Notice)
	onClose func(ledger.TableID)
	log     *zap.SugaredLogger

	// per-hand ledger state
	handID       string
	blinds       map[string]int64 // userID -> blind posted this hand
	pendingLeave map[string]bool
	retryDelay   time.Duration
}

type Config struct {
	Game          holdem.Config
	Timers        Timers
	LedgerTimeout time.Duration
}

// Options carries the table's collaborators. Only Escrow is required.
type Options struct {
	Escrow  ledger.Escrow
	Notify  func(Notice)
	OnClose func(ledger.TableID)
	Logger  *zap.SugaredLogger
	Clock   func() time.Time
}

type EventType int

const (
	EventJoin EventType = iota
	EventLeave
	EventRebuy
	EventAction
	EventStart
	EventSitOut
	EventSitIn
	EventClose
)

var eventNames = map[EventType]string{
	EventJoin:   "join",
	EventLeave:  "leave",
	EventRebuy:  "rebuy",
	EventAction: "action",
	EventStart:  "start",
	EventSitOut: "sitOut",
	EventSitIn:  "sitIn",
	EventClose:  "close",
}

func (e EventType) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Event represents a message to the table actor
type Event struct {
	Type     EventType
	UserID   string
	Amount   int64
	Action   holdem.ActionType
	Response chan error
}

var (
	ErrTableClosed    = errors.New("table closed")
	ErrSeatCap        = errors.New("table is full")
	ErrAlreadySeated  = errors.New("already seated at this table")
	ErrNotSeated      = errors.New("not seated at this table")
	ErrBuyInRange     = errors.New("buy-in out of range")
	ErrNotHost        = errors.New("only the host can do that")
	ErrHandInProgress = errors.New("hand in progress")
)

const tickInterval = 500 * time.Millisecond

// New creates a table owned by host and starts its actor goroutine.
func New(id ledger.TableID, host string, cfg Config, opts Options) (*Table, error) {
	t, err := newTable(id, host, cfg, opts)
	if err != nil {
		return nil, err
	}
	go t.run()
	return t, nil
}

// newTable builds the table without starting the actor; tests drive it directly.
func newTable(id ledger.TableID, host string, cfg Config, opts Options) (*Table, error) {
	if opts.Escrow == nil {
		return nil, errors.New("table: escrow is required")
	}
	cfg.Game = cfg.Game.WithDefaults()
	cfg.Timers = cfg.Timers.withDefaults()
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = 5 * time.Second
	}
	game, err := holdem.NewGame(cfg.Game)
	if err != nil {
		return nil, fmt.Errorf("table config: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(Notice) {}
	}

	t := &Table{
		ID:           id,
		Config:       cfg,
		game:         game,
		host:         host,
		events:       make(chan Event, 256),
		done:         make(chan struct{}),
		timers:       make(map[timerKind]*timer),
		now:          clock,
		escrow:       opts.Escrow,
		notify:       notify,
		onClose:      opts.OnClose,
		log:          log.Named("table").With("table", id.String()),
		pendingLeave: make(map[string]bool),
	}

	t.armLocked(timerEmptyClose, cfg.Timers.EmptyClose, "", 0)
	if host != "" {
		t.armLocked(timerHostIdle, cfg.Timers.HostIdle, host, 0)
	}
	t.log.Infof("[Table %s] Created (seats=%d, blinds=%d/%d, buy-in=%d..%d, host=%s)",
		id, cfg.Game.SeatCap, cfg.Game.SmallBlind, cfg.Game.BigBlind, cfg.Game.MinBuyIn, cfg.Game.MaxBuyIn, host)
	return t, nil
}

// run is the main actor loop
func (t *Table) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-t.events:
			err := t.dispatch(event)
			if event.Response != nil {
				event.Response <- err
			}
		case <-ticker.C:
			t.safely("tick", func() { t.tick(t.now()) })
		case <-t.done:
			t.log.Infof("[Table %s] Actor stopped", t.ID)
			return
		}
	}
}

func (t *Table) dispatch(e Event) (err error) {
	t.safely(e.Type.String(), func() { err = t.handleEvent(e) })
	return err
}

// safely keeps a panic inside one table from taking the process down.
func (t *Table) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Errorw(fmt.Sprintf("[Table %s] recovered panic in %s", t.ID, what), "panic", r)
		}
	}()
	fn()
}

// handleEvent processes a single event
func (t *Table) handleEvent(e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTableClosed
	}
	if t.closing != "" {
		return fmt.Errorf("table closing: %w", holdem.ErrSettlementPending)
	}
	if e.UserID != "" && e.UserID == t.host {
		t.armLocked(timerHostIdle, t.Config.Timers.HostIdle, t.host, 0)
	}

	switch e.Type {
	case EventJoin:
		return t.handleJoin(e.UserID, e.Amount)
	case EventLeave:
		return t.handleLeave(e.UserID, "left")
	case EventRebuy:
		return t.handleRebuy(e.UserID, e.Amount)
	case EventAction:
		return t.handleAction(e.UserID, e.Action, e.Amount)
	case EventStart:
		return t.handleStart(e.UserID)
	case EventSitOut:
		return t.handleSitOut(e.UserID, true)
	case EventSitIn:
		return t.handleSitOut(e.UserID, false)
	case EventClose:
		if e.UserID != "" && e.UserID != t.host {
			return ErrNotHost
		}
		return t.closeLocked("closed by host")
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

func (t *Table) tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.fireDueLocked(now)
}

// SubmitEvent sends an event to the actor and waits for its reply.
func (t *Table) SubmitEvent(e Event) error {
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrTableClosed
	}

	select {
	case t.events <- e:
	case <-t.done:
		return ErrTableClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-t.done:
		return ErrTableClosed
	}
}

func (t *Table) Join(userID string, buyIn int64) error {
	return t.SubmitEvent(Event{Type: EventJoin, UserID: userID, Amount: buyIn})
}

func (t *Table) Leave(userID string) error {
	return t.SubmitEvent(Event{Type: EventLeave, UserID: userID})
}

func (t *Table) Rebuy(userID string, amount int64) error {
	return t.SubmitEvent(Event{Type: EventRebuy, UserID: userID, Amount: amount})
}

func (t *Table) Act(userID string, action holdem.ActionType, amount int64) error {
	return t.SubmitEvent(Event{Type: EventAction, UserID: userID, Action: action, Amount: amount})
}

func (t *Table) Start(userID string) error {
	return t.SubmitEvent(Event{Type: EventStart, UserID: userID})
}

func (t *Table) SitOut(userID string) error {
	return t.SubmitEvent(Event{Type: EventSitOut, UserID: userID})
}

func (t *Table) SitIn(userID string) error {
	return t.SubmitEvent(Event{Type: EventSitIn, UserID: userID})
}

// Close tears the table down. An empty userID is a system close.
func (t *Table) Close(userID string) error {
	return t.SubmitEvent(Event{Type: EventClose, UserID: userID})
}

// Stop shuts down the table actor. A hand the ledger has not accepted yet
// keeps the table alive until its settlement lands.
func (t *Table) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked("stopped")
}

func (t *Table) stopLocked() {
	t.closed = true
	t.cancelAllTimersLocked()
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

func (t *Table) ledgerCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), t.Config.LedgerTimeout)
}

func (t *Table) Host() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.host
}

func (t *Table) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// Done is closed once the actor stops.
func (t *Table) Done() <-chan struct{} { return t.done }

// Snapshot returns the unredacted engine state.
func (t *Table) Snapshot() holdem.Snapshot {
	return t.game.Snapshot()
}

// Seated reports whether userID holds a seat.
func (t *Table) Seated(userID string) bool {
	_, ok := t.game.ChairOf(userID)
	return ok
}
