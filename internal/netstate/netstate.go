// Package netstate reports connectivity and lifecycle changes.
package netstate

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// DefaultDialTimeout bounds one probe.
const DefaultDialTimeout = 3 * time.Second

// Kind is the kind of state an Event reports.
type Kind int

const (
	// Connectivity reports whether the remote store is reachable.
	Connectivity Kind = iota
	// Lifecycle reports whether the process is in the foreground.
	Lifecycle
)

func (k Kind) String() string {
	switch k {
	case Connectivity:
		return "connectivity"
	case Lifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

// Event is a state change.
type Event struct {
	Kind Kind
	Up   bool
}

// Probe checks reachability by opening a TCP connection.
type Probe struct {
	Addr    string
	Timeout time.Duration

	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewProbe creates a probe for addr (host:port).
// An empty addr is always considered connected.
func NewProbe(addr string, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	d := &net.Dialer{}
	return &Probe{Addr: addr, Timeout: timeout, dial: d.DialContext}
}

// Connected dials the target and reports whether it answered.
func (p *Probe) Connected(ctx context.Context) bool {
	if p.Addr == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	conn, err := p.dial(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Checker reports connectivity.
type Checker interface {
	Connected(ctx context.Context) bool
}

// Monitor polls a Checker and emits an Event whenever the result changes.
// The first poll always emits.
type Monitor struct {
	checker  Checker
	interval time.Duration
	logger   *zap.Logger
}

// NewMonitor creates a monitor polling every interval.
func NewMonitor(checker Checker, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{checker: checker, interval: interval, logger: logger}
}

// Run polls until ctx is done, sending changes on events.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var last *bool
	check := func() bool {
		up := m.checker.Connected(ctx)
		if last != nil && *last == up {
			return true
		}
		last = &up
		m.logger.Debug("connectivity changed", zap.Bool("up", up))
		select {
		case events <- Event{Kind: Connectivity, Up: up}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !check() {
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !check() {
				return ctx.Err()
			}
		}
	}
}
