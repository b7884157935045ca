package table

import (
	"sort"
	"time"
)

type timerKind int

const (
	timerAction timerKind = iota
	timerActionWarn
	timerHostIdle
	timerEmptyClose
	timerIdleLobby
	timerNextHand
	timerSettleRetry
)

var timerNames = map[timerKind]string{
	timerAction:      "action",
	timerActionWarn:  "actionWarn",
	timerHostIdle:    "hostIdle",
	timerEmptyClose:  "emptyClose",
	timerIdleLobby:   "idleLobby",
	timerNextHand:    "nextHand",
	timerSettleRetry: "settleRetry",
}

func (k timerKind) String() string { return timerNames[k] }

// timer is a named handle. The target it was armed for is re-checked on fire,
// so a stale or doubled fire is a no-op.
type timer struct {
	kind     timerKind
	deadline time.Time
	userID   string
	handNo   uint32
}

type Timers struct {
	Action         time.Duration
	ActionWarn     time.Duration // before the action deadline
	HostIdle       time.Duration
	EmptyClose     time.Duration
	IdleLobby      time.Duration
	NextHand       time.Duration
	SettleRetryMin time.Duration
	SettleRetryMax time.Duration
}

func DefaultTimers() Timers {
	return Timers{
		Action:         30 * time.Second,
		ActionWarn:     10 * time.Second,
		HostIdle:       10 * time.Minute,
		EmptyClose:     2 * time.Minute,
		IdleLobby:      10 * time.Minute,
		NextHand:       10 * time.Second,
		SettleRetryMin: time.Second,
		SettleRetryMax: 30 * time.Second,
	}
}

func (tm Timers) withDefaults() Timers {
	def := DefaultTimers()
	fill := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&tm.Action, def.Action)
	fill(&tm.ActionWarn, def.ActionWarn)
	fill(&tm.HostIdle, def.HostIdle)
	fill(&tm.EmptyClose, def.EmptyClose)
	fill(&tm.IdleLobby, def.IdleLobby)
	fill(&tm.NextHand, def.NextHand)
	fill(&tm.SettleRetryMin, def.SettleRetryMin)
	fill(&tm.SettleRetryMax, def.SettleRetryMax)
	if tm.ActionWarn >= tm.Action {
		tm.ActionWarn = tm.Action / 3
	}
	return tm
}

// armLocked replaces any handle of the same kind.
func (t *Table) armLocked(kind timerKind, after time.Duration, userID string, handNo uint32) {
	t.timers[kind] = &timer{
		kind:     kind,
		deadline: t.now().Add(after),
		userID:   userID,
		handNo:   handNo,
	}
}

func (t *Table) cancelLocked(kinds ...timerKind) {
	for _, k := range kinds {
		delete(t.timers, k)
	}
}

func (t *Table) cancelAllTimersLocked() {
	for k := range t.timers {
		delete(t.timers, k)
	}
}

func (t *Table) armedLocked(kind timerKind) (*timer, bool) {
	tm, ok := t.timers[kind]
	return tm, ok
}

// fireDueLocked fires every handle whose deadline passed, in kind order.
// A handle replaced or cancelled by an earlier fire in the same pass is skipped.
func (t *Table) fireDueLocked(now time.Time) {
	var due []*timer
	for _, tm := range t.timers {
		if !now.Before(tm.deadline) {
			due = append(due, tm)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].kind < due[j].kind })

	for _, tm := range due {
		if t.closed {
			return
		}
		if cur, ok := t.timers[tm.kind]; !ok || cur != tm {
			continue
		}
		delete(t.timers, tm.kind)
		t.fireLocked(tm)
	}
}

func (t *Table) fireLocked(tm *timer) {
	switch tm.kind {
	case timerAction:
		t.onActionTimeoutLocked(tm)
	case timerActionWarn:
		t.onActionWarnLocked(tm)
	case timerHostIdle:
		t.onHostIdleLocked(tm)
	case timerEmptyClose:
		t.onEmptyCloseLocked()
	case timerIdleLobby:
		t.onIdleLobbyLocked()
	case timerNextHand:
		t.onNextHandLocked(tm)
	case timerSettleRetry:
		t.onSettleRetryLocked(tm)
	}
}
