package reconcile

import "sync"

type state int

const (
	unknown state = iota
	down
	up
)

func stateOf(v bool) state {
	if v {
		return up
	}
	return down
}

// Transitions turns connectivity and lifecycle observations into pass requests.
// Only edges towards connected or active request a pass; repeated observations do not.
type Transitions struct {
	req Requester

	mu        sync.Mutex
	connected state
	active    state
}

// NewTransitions creates a tracker that sends requests to req.
func NewTransitions(req Requester) *Transitions {
	return &Transitions{req: req}
}

// Connectivity records the connection state and reports whether a pass was requested.
func (t *Transitions) Connectivity(connected bool) bool {
	t.mu.Lock()
	prev := t.connected
	t.connected = stateOf(connected)
	t.mu.Unlock()

	if connected && prev != up {
		return t.req.Request("connected")
	}
	return false
}

// Lifecycle records the foreground state and reports whether a pass was requested.
func (t *Transitions) Lifecycle(active bool) bool {
	t.mu.Lock()
	prev := t.active
	t.active = stateOf(active)
	t.mu.Unlock()

	if active && prev != up {
		return t.req.Request("foreground")
	}
	return false
}
