// Package cache implements the local task cache: an ordered task list held in
// memory and persisted as one value in a kv.Store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tasksync/internal/kv"
	"tasksync/internal/service"
)

// DefaultKey is the storage key holding the serialized task list.
const DefaultKey = "@todo_tasks"

var (
	// ErrRead is returned by Read when the storage backend fails.
	ErrRead = errors.New("failed to read tasks from cache")

	// ErrWrite is returned when the task list could not be persisted.
	ErrWrite = errors.New("failed to save tasks to cache")
)

// Store is the local cache.
// Save is not internally serialized against concurrent read-modify-write
// cycles; callers that read then save must hold their own lock.
type Store struct {
	kv     kv.Store
	key    string
	logger *zap.Logger

	mu    sync.RWMutex
	tasks []service.Task
}

// New creates a cache over store under key.
func New(store kv.Store, key string, logger *zap.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: store, key: key, logger: logger}
}

// Load reads the persisted task list.
// found is false only when nothing has ever been persisted.
// Storage and decode errors are logged and reported as an empty list; they are never fatal.
// A successful load replaces the in-memory state.
func (s *Store) Load(ctx context.Context) (tasks []service.Task, found bool) {
	tasks, found, err := s.Read(ctx)
	if err != nil {
		s.logger.Warn("failed to load tasks from cache", zap.String("key", s.key), zap.Error(err))
		return nil, true
	}
	return tasks, found
}

// Read is Load for callers that are about to overwrite the cache.
// A storage failure is returned wrapped in ErrRead and leaves the in-memory state alone.
// Undecodable data is still logged and read as an empty list.
func (s *Store) Read(ctx context.Context) (tasks []service.Task, found bool, err error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, fmt.Errorf("%w: %w", ErrRead, err)
	}

	if err := json.Unmarshal(data, &tasks); err != nil {
		s.logger.Warn("failed to decode cached tasks", zap.String("key", s.key), zap.Error(err))
		tasks = nil
	}

	s.mu.Lock()
	s.tasks = service.Clone(tasks)
	s.mu.Unlock()
	return tasks, true, nil
}

// Save sorts tasks newest first, persists the whole collection as a single
// value and then replaces the in-memory state. A failed write leaves both as they were.
func (s *Store) Save(ctx context.Context, tasks []service.Task) error {
	sorted := service.Clone(tasks)
	if sorted == nil {
		sorted = []service.Task{}
	}
	service.SortNewestFirst(sorted)

	data, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.logger.Error("failed to save tasks to cache", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	s.mu.Lock()
	s.tasks = sorted
	s.mu.Unlock()
	return nil
}

// Tasks returns a copy of every in-memory task, soft-deleted ones included.
func (s *Store) Tasks() []service.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return service.Clone(s.tasks)
}

// Visible returns the in-memory tasks that should be displayed.
func (s *Store) Visible() []service.Task {
	return service.Visible(s.Tasks())
}

// Find returns the in-memory task with the given id.
func (s *Store) Find(id int64) (service.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return service.Clone([]service.Task{t})[0], true
		}
	}
	return service.Task{}, false
}
