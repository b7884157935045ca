package holdem

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfTurn         = errors.New("action out of turn")
	ErrHandNotRunning    = errors.New("no betting round in progress")
	ErrHandInProgress    = errors.New("hand in progress")
	ErrSettlementPending = errors.New("settlement pending")
	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrIllegalAction     = errors.New("illegal action")
	ErrSeatTaken         = errors.New("seat occupied")
	ErrSeatEmpty         = errors.New("seat empty")
	ErrAlreadySeated     = errors.New("user already seated")
)

// IllegalActionError is returned for actions the betting rules reject.
// It matches ErrIllegalAction under errors.Is.
type IllegalActionError struct {
	Action ActionType
	Reason string
}

func (e *IllegalActionError) Error() string {
	return fmt.Sprintf("illegal %s: %s", e.Action, e.Reason)
}

func (e *IllegalActionError) Is(target error) bool { return target == ErrIllegalAction }

func illegal(a ActionType, format string, args ...any) error {
	return &IllegalActionError{Action: a, Reason: fmt.Sprintf(format, args...)}
}

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }
