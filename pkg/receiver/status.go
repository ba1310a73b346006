package receiver

import (
	"fmt"
	"strings"
)

// State is the receiver connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event drives state transitions.
type Event int

const (
	// EventConnect is a request to open a session.
	EventConnect Event = iota
	// EventOpened means the socket was opened.
	EventOpened
	// EventError is an open or receive failure.
	EventError
	// EventDisconnect is a request to close the session.
	EventDisconnect
)

func (e Event) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventOpened:
		return "opened"
	case EventError:
		return "error"
	case EventDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Transition returns the state reached from s on event e. The boolean is
// false when the transition is not allowed, in which case s is returned.
//
// Connect is only accepted from Disconnected; callers disconnect first.
// Disconnect is accepted from every state.
func Transition(s State, e Event) (State, bool) {
	switch e {
	case EventConnect:
		if s == StateDisconnected {
			return StateConnecting, true
		}
	case EventOpened:
		if s == StateConnecting {
			return StateConnected, true
		}
	case EventError:
		if s == StateConnecting || s == StateConnected {
			return StateFailed, true
		}
	case EventDisconnect:
		return StateDisconnected, true
	}
	return s, false
}

// Status is the observable connection status. Reason is set only when
// State is StateFailed.
type Status struct {
	State  State
	Reason string
}

// String renders the status for display, e.g. "Failed: connection refused".
func (s Status) String() string {
	if s.State == StateFailed {
		return "Failed: " + s.Reason
	}
	return s.State.String()
}

// IsConnected reports whether a session is receiving.
func (s Status) IsConnected() bool {
	return s.State == StateConnected
}

// MarshalText lets Status appear as its display string in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the display form produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	str := string(text)
	if reason, ok := strings.CutPrefix(str, "Failed: "); ok {
		*s = Status{State: StateFailed, Reason: reason}
		return nil
	}
	for _, st := range []State{StateDisconnected, StateConnecting, StateConnected, StateFailed} {
		if str == st.String() {
			*s = Status{State: st}
			return nil
		}
	}
	return fmt.Errorf("unknown receiver status %q", str)
}
