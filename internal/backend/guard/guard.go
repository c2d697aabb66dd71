// Package guard wraps a remote store with a circuit breaker shared by every
// client it creates.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"tasksync/internal/service"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("remote store unavailable (circuit open)")

// Settings configures the breaker.
type Settings struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// Timeout is how long the breaker stays open before letting a probe call through.
	Timeout time.Duration
}

// Guard owns one circuit breaker.
type Guard struct {
	cb     *gobreaker.CircuitBreaker[any]
	logger *zap.Logger
}

// New creates a guard named name.
func New(name string, s Settings, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Failures == 0 {
		s.Failures = 5
	}
	g := &Guard{logger: logger}
	g.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Info("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g
}

// State returns the breaker state.
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}

// Wrap returns a factory whose clients run every call through the breaker.
func (g *Guard) Wrap(next service.Factory) service.Factory {
	return func(ctx context.Context, token string) (service.Service, error) {
		svc, err := next(ctx, token)
		if err != nil {
			return nil, err
		}
		return &client{next: svc, g: g}, nil
	}
}

func (g *Guard) execute(fn func() (any, error)) (any, error) {
	v, err := g.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return v, err
}

type client struct {
	next service.Service
	g    *Guard
}

func (c *client) ListTasks(ctx context.Context) ([]service.Task, error) {
	v, err := c.g.execute(func() (any, error) {
		return c.next.ListTasks(ctx)
	})
	if err != nil {
		return nil, err
	}
	tasks, _ := v.([]service.Task)
	return tasks, nil
}

func (c *client) InsertTasks(ctx context.Context, tasks []service.Task) ([]service.Task, error) {
	v, err := c.g.execute(func() (any, error) {
		return c.next.InsertTasks(ctx, tasks)
	})
	if err != nil {
		return nil, err
	}
	out, _ := v.([]service.Task)
	return out, nil
}

func (c *client) UpdateTasks(ctx context.Context, tasks []service.Task) error {
	_, err := c.g.execute(func() (any, error) {
		return nil, c.next.UpdateTasks(ctx, tasks)
	})
	return err
}
