package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasksync/internal/service"
)

var (
	// ErrEmptyText is returned when a task would have no text.
	ErrEmptyText = errors.New("task text is empty")

	// ErrTaskNotFound is returned when no visible task has the given id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNotAuthenticated is returned when a task cannot be attributed to a user.
	ErrNotAuthenticated = errors.New("not logged in")
)

// Add creates a task with a temporary id, saves it and requests a pass.
func (e *Engine) Add(ctx context.Context, text string) (service.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return service.Task{}, ErrEmptyText
	}
	userID, ok := e.auth.UserID(ctx)
	if !ok {
		return service.Task{}, ErrNotAuthenticated
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(ctx); err != nil {
		return service.Task{}, err
	}

	tasks := e.cache.Tasks()
	now := service.Timestamp(e.now())
	task := service.Task{
		ID:        tempID(tasks, now),
		Text:      service.StringPtr(text),
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    userID,
	}
	if err := e.cache.Save(ctx, append(tasks, task)); err != nil {
		return service.Task{}, err
	}

	e.logger.Debug("task added", zap.Int64("id", task.ID))
	e.sched.Request("add")
	return task, nil
}

// Toggle flips the completion flag of a visible task.
func (e *Engine) Toggle(ctx context.Context, id int64) (service.Task, error) {
	return e.mutate(ctx, id, "toggle", func(t *service.Task) {
		t.IsComplete = !t.IsComplete
	})
}

// Dismiss soft-deletes a visible task. The record stays in the cache so the
// deletion can be pushed.
func (e *Engine) Dismiss(ctx context.Context, id int64) (service.Task, error) {
	return e.mutate(ctx, id, "dismiss", func(t *service.Task) {
		t.IsDeleted = true
	})
}

func (e *Engine) mutate(ctx context.Context, id int64, reason string, fn func(*service.Task)) (service.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(ctx); err != nil {
		return service.Task{}, err
	}

	tasks := e.cache.Tasks()
	idx := -1
	for i := range tasks {
		if tasks[i].ID == id && !tasks[i].IsDeleted {
			idx = i
			break
		}
	}
	if idx < 0 {
		return service.Task{}, ErrTaskNotFound
	}

	fn(&tasks[idx])
	tasks[idx].UpdatedAt = touch(tasks[idx].UpdatedAt, e.now())
	if err := e.cache.Save(ctx, tasks); err != nil {
		return service.Task{}, err
	}

	e.logger.Debug("task changed", zap.String("reason", reason), zap.Int64("id", id))
	e.sched.Request(reason)
	return tasks[idx], nil
}

// touch returns the new updated_at for a record last updated at prev.
// It never moves backwards, even if the clock does.
func touch(prev, now time.Time) time.Time {
	now = service.Timestamp(now)
	if prev.After(now) {
		return prev
	}
	return now
}

// tempID returns a negative id derived from now that no task in tasks uses.
func tempID(tasks []service.Task, now time.Time) int64 {
	used := make(map[int64]bool, len(tasks))
	for _, t := range tasks {
		used[t.ID] = true
	}
	id := -now.UnixMilli()
	if id >= 0 {
		id = -1
	}
	for used[id] {
		id--
	}
	return id
}
