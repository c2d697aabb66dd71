// Package reconcile keeps the local task cache and the remote task table
// eventually consistent under a last-write-wins policy on updated_at.
//
// Local mutations are applied to the cache immediately and followed by a
// best-effort pass; passes and mutations are serialized by one engine lock.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tasksync/internal/auth"
	"tasksync/internal/cache"
	"tasksync/internal/service"
)

// DefaultTimeout bounds each remote call.
const DefaultTimeout = 10 * time.Second

// SkipReason explains why a pass did not run.
type SkipReason string

const (
	SkipOffline SkipReason = "offline"
	SkipNoUser  SkipReason = "not logged in"
	SkipNoToken SkipReason = "no usable token"
)

// Connectivity reports whether the remote store is reachable.
type Connectivity interface {
	Connected(ctx context.Context) bool
}

// ConnectivityFunc adapts a function to Connectivity.
type ConnectivityFunc func(ctx context.Context) bool

// Connected implements Connectivity.
func (f ConnectivityFunc) Connected(ctx context.Context) bool {
	return f(ctx)
}

// Always is a Connectivity that always reports connected.
var Always Connectivity = ConnectivityFunc(func(context.Context) bool { return true })

// Result summarizes one pass.
type Result struct {
	PassID  string
	Skipped SkipReason

	Inserted  int
	Updated   int
	Unchanged int
	Total     int

	InsertErr error
	UpdateErr error
}

// Ran reports whether the pass got past its preconditions.
func (r Result) Ran() bool {
	return r.Skipped == ""
}

// String returns a one-line summary.
func (r Result) String() string {
	if !r.Ran() {
		return string(r.Skipped)
	}
	s := fmt.Sprintf("synced %d tasks (%d inserted, %d updated, %d unchanged)",
		r.Total, r.Inserted, r.Updated, r.Unchanged)
	var failed []string
	if r.InsertErr != nil {
		failed = append(failed, "insert")
	}
	if r.UpdateErr != nil {
		failed = append(failed, "update")
	}
	if len(failed) > 0 {
		s += "; failed: " + strings.Join(failed, ", ")
	}
	return s
}

func (r Result) outcome(err error) string {
	switch {
	case !r.Ran():
		return OutcomeSkipped
	case err != nil:
		return OutcomeFailed
	case r.InsertErr != nil || r.UpdateErr != nil:
		return OutcomePartial
	default:
		return OutcomeOK
	}
}

// Options configures an Engine.
type Options struct {
	Cache   *cache.Store
	Auth    auth.Provider
	Network Connectivity
	Remote  service.Factory

	// Now defaults to time.Now.
	Now     func() time.Time
	Logger  *zap.Logger
	Metrics *Metrics
	// Timeout bounds each remote call. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Engine runs reconciliation passes and local mutations.
type Engine struct {
	cache   *cache.Store
	auth    auth.Provider
	network Connectivity
	remote  service.Factory
	now     func() time.Time
	logger  *zap.Logger
	metrics *Metrics
	timeout time.Duration

	sched *Scheduler

	// mu serializes passes and mutations against the cache.
	mu     sync.Mutex
	loaded bool
}

// New creates an Engine. Its scheduler is created but not started.
func New(opts Options) *Engine {
	e := &Engine{
		cache:   opts.Cache,
		auth:    opts.Auth,
		network: opts.Network,
		remote:  opts.Remote,
		now:     opts.Now,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		timeout: opts.Timeout,
	}
	if e.network == nil {
		e.network = Always
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	e.sched = NewScheduler(e.Sync, e.logger)
	return e
}

// Scheduler returns the engine's pass scheduler.
func (e *Engine) Scheduler() *Scheduler {
	return e.sched
}

// Load reads the persisted cache into memory.
// found is false when nothing has been persisted yet.
// A storage failure is logged and reads as an empty, existing cache.
func (e *Engine) Load(ctx context.Context) (tasks []service.Task, found bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tasks, found, err := e.cache.Read(ctx)
	if err != nil {
		e.logger.Warn("failed to load tasks from cache", zap.Error(err))
		return nil, true
	}
	e.loaded = true
	return tasks, found
}

// Visible returns the displayed tasks, newest first.
func (e *Engine) Visible(ctx context.Context) []service.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(ctx); err != nil {
		e.logger.Warn("failed to load tasks from cache", zap.Error(err))
	}
	return e.cache.Visible()
}

// ensureLoaded reads the persisted cache once. It must succeed before the
// in-memory state is saved back, or the save would drop unread tasks.
func (e *Engine) ensureLoaded(ctx context.Context) error {
	if e.loaded {
		return nil
	}
	if _, _, err := e.cache.Read(ctx); err != nil {
		return err
	}
	e.loaded = true
	return nil
}

// Sync runs one full reconciliation pass.
// Unmet preconditions return a skipped Result and no error.
// A returned error means the cache was left untouched.
func (e *Engine) Sync(ctx context.Context) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := Result{PassID: uuid.NewString()}
	logger := e.logger.With(zap.String("pass_id", res.PassID))

	start := time.Now()
	err := e.sync(ctx, logger, &res)
	e.metrics.recordPass(res, err, time.Since(start))
	return res, err
}

func (e *Engine) sync(ctx context.Context, logger *zap.Logger, res *Result) error {
	if !e.network.Connected(ctx) {
		res.Skipped = SkipOffline
		logger.Debug("sync skipped", zap.String("reason", string(res.Skipped)))
		return nil
	}
	userID, ok := e.auth.UserID(ctx)
	if !ok {
		res.Skipped = SkipNoUser
		logger.Debug("sync skipped", zap.String("reason", string(res.Skipped)))
		return nil
	}
	token, err := e.auth.Token(ctx)
	if err != nil {
		res.Skipped = SkipNoToken
		logger.Debug("sync skipped", zap.String("reason", string(res.Skipped)), zap.Error(err))
		return nil
	}

	// Persisted state, not memory, so an interrupted mutation cannot leak in.
	// An unreadable cache aborts the pass: saving the remote copy over it
	// would drop every local-only task.
	local, _, err := e.cache.Read(ctx)
	if err != nil {
		logger.Error("failed to read local tasks", zap.Error(err))
		return err
	}
	e.loaded = true

	client, err := e.remote(ctx, token)
	if err != nil {
		logger.Error("failed to create remote client", zap.Error(err))
		return fmt.Errorf("failed to create remote client: %w", err)
	}

	remote, err := e.list(ctx, client)
	if err != nil {
		logger.Error("failed to fetch remote tasks", zap.Error(err))
		return fmt.Errorf("failed to fetch remote tasks: %w", err)
	}

	plan := Diff(local, remote)
	for i := range plan.Insert {
		if plan.Insert[i].UserID == "" {
			plan.Insert[i].UserID = userID
		}
	}
	res.Unchanged = plan.Unchanged
	logger.Debug("sync planned",
		zap.Int("local", len(local)),
		zap.Int("remote", len(remote)),
		zap.Int("insert", len(plan.Insert)),
		zap.Int("update", len(plan.Update)),
	)

	if len(plan.Insert) > 0 {
		inserted, err := e.insert(ctx, client, plan.Insert)
		e.metrics.recordPush("insert", len(inserted), err)
		if err != nil {
			res.InsertErr = err
			logger.Warn("failed to insert tasks", zap.Int("count", len(plan.Insert)), zap.Error(err))
		} else {
			res.Inserted = len(inserted)
		}
	}
	if len(plan.Update) > 0 {
		err := e.update(ctx, client, plan.Update)
		e.metrics.recordPush("update", len(plan.Update), err)
		if err != nil {
			res.UpdateErr = err
			logger.Warn("failed to update tasks", zap.Int("count", len(plan.Update)), zap.Error(err))
		} else {
			res.Updated = len(plan.Update)
		}
	}

	final, err := e.list(ctx, client)
	if err != nil {
		logger.Error("failed to refetch remote tasks", zap.Error(err))
		return fmt.Errorf("failed to refetch remote tasks: %w", err)
	}
	if err := e.cache.Save(ctx, final); err != nil {
		return err
	}
	res.Total = len(final)

	logger.Info("sync complete",
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("total", res.Total),
	)
	return nil
}

func (e *Engine) list(ctx context.Context, client service.Service) ([]service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return client.ListTasks(ctx)
}

func (e *Engine) insert(ctx context.Context, client service.Service, tasks []service.Task) ([]service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return client.InsertTasks(ctx, tasks)
}

func (e *Engine) update(ctx context.Context, client service.Service, tasks []service.Task) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return client.UpdateTasks(ctx, tasks)
}
