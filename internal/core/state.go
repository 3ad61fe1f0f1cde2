package core

// SessionState is the connectivity state of a peer session.
// Transitions follow new -> connecting -> connected -> {failed, closed};
// failed and closed are terminal.
type SessionState int

const (
	StateNew SessionState = iota
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Terminal reports whether the state ends the session.
func (s SessionState) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

var transitions = map[SessionState][]SessionState{
	StateNew:        {StateConnecting, StateFailed, StateClosed},
	StateConnecting: {StateConnected, StateFailed, StateClosed},
	StateConnected:  {StateFailed, StateClosed},
	StateFailed:     {},
	StateClosed:     {},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to SessionState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
