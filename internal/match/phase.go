package match

import (
	"errors"
	"fmt"

	"github.com/landerlink/lander/internal/command"
)

// Phase is the connection phase of a match. Phases only move forward.
type Phase int32

const (
	Initializing Phase = iota
	HostConfirmed
	Started
	Closed
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "initializing"
	case HostConfirmed:
		return "host_confirmed"
	case Started:
		return "started"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// MarshalText writes the phase name into snapshots and log records.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

var (
	// ErrDropped is the root of every rejected-message error. Callers log it
	// and carry on; it never stops the match.
	ErrDropped = errors.New("message dropped")

	ErrWrongPhase      = fmt.Errorf("%w: not accepted in this phase", ErrDropped)
	ErrDuplicatePlayer = fmt.Errorf("%w: player token already joined", ErrDropped)
	ErrUnknownPlayer   = fmt.Errorf("%w: no such player", ErrDropped)
	ErrBeyondHorizon   = fmt.Errorf("%w: command stamped too far ahead", ErrDropped)

	// ErrBacklogFull is reported together with ErrDropped when a player's
	// backlog has no room left.
	ErrBacklogFull = command.ErrBacklogFull

	// ErrNotReady is returned by Start before the host is confirmed.
	ErrNotReady = errors.New("match not ready to start")
)
