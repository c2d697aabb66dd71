package reconcile

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// SyncFunc runs one pass.
type SyncFunc func(ctx context.Context) (Result, error)

// Requester accepts pass requests.
type Requester interface {
	Request(reason string) bool
}

// Scheduler runs passes one at a time on a single worker.
// At most one request is pending; further requests coalesce into it.
type Scheduler struct {
	fn     SyncFunc
	logger *zap.Logger

	// OnResult, when set before Run, is called after every pass.
	OnResult func(reason string, res Result, err error)

	pending chan string
	closing chan struct{}
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewScheduler creates a scheduler for fn.
func NewScheduler(fn SyncFunc, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		fn:      fn,
		logger:  logger,
		pending: make(chan string, 1),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Request asks for a pass. It never blocks.
// It returns false once the scheduler is closed.
func (s *Scheduler) Request(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.pending <- reason:
	default:
		s.logger.Debug("sync request coalesced", zap.String("reason", reason))
	}
	return true
}

// Run executes requested passes until Close is called or ctx is done.
// A pass that has started is not cancelled by ctx.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	passCtx := context.WithoutCancel(ctx)

	for {
		select {
		case reason := <-s.pending:
			s.run(passCtx, reason)
		case <-s.closing:
			select {
			case reason := <-s.pending:
				s.run(passCtx, reason)
			default:
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, reason string) {
	s.logger.Debug("sync started", zap.String("reason", reason))
	res, err := s.fn(ctx)
	if err != nil {
		s.logger.Warn("sync failed", zap.String("reason", reason), zap.String("pass_id", res.PassID), zap.Error(err))
	}
	if s.OnResult != nil {
		s.OnResult(reason, res, err)
	}
}

// Close stops accepting requests. The worker runs the pending pass, if any, then exits.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closing)
	}
}

// Wait blocks until Run returns. Run must have been started.
func (s *Scheduler) Wait() {
	<-s.done
}
