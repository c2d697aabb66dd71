// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"tasksync/internal/service"
)

// ErrNotFound is returned when an updated row does not exist.
var ErrNotFound = errors.New("not found")

// FakeService is an in-memory remote task table for testing.
// It assigns ids from a sequence starting at 1 and records every call.
type FakeService struct {
	mu     sync.RWMutex
	rows   map[int64]service.Task
	nextID int64

	// Error injection for testing
	ListTasksErr   error
	InsertTasksErr error
	UpdateTasksErr error

	// FailListAfter makes ListTasks fail once it has been called this many times (0 disables).
	FailListAfter int

	// Call counters
	ListCalls   int
	InsertCalls int
	UpdateCalls int

	// Inserted and Updated hold the payloads received, in order.
	Inserted [][]service.Task
	Updated  [][]service.Task
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		rows:   make(map[int64]service.Task),
		nextID: 1,
	}
}

// Factory returns a service.Factory that always yields f.
// Tokens are recorded in the returned slice pointer.
func (f *FakeService) Factory() (service.Factory, *[]string) {
	var tokens []string
	var mu sync.Mutex
	return func(ctx context.Context, token string) (service.Service, error) {
		mu.Lock()
		tokens = append(tokens, token)
		mu.Unlock()
		return f, nil
	}, &tokens
}

// Seed stores a row as-is, keeping its id.
func (f *FakeService) Seed(tasks ...service.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range service.Clone(tasks) {
		f.rows[t.ID] = t
		if t.ID >= f.nextID {
			f.nextID = t.ID + 1
		}
	}
}

// Rows returns all stored rows ordered by id.
func (f *FakeService) Rows() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]service.Task, 0, len(f.rows))
	for _, t := range f.rows {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return service.Clone(out)
}

// Row returns the stored row with id.
func (f *FakeService) Row(id int64) (service.Task, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.rows[id]
	if !ok {
		return service.Task{}, false
	}
	return service.Clone([]service.Task{t})[0], true
}

// Calls returns the total number of remote calls made.
func (f *FakeService) Calls() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ListCalls + f.InsertCalls + f.UpdateCalls
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context) ([]service.Task, error) {
	f.mu.Lock()
	f.ListCalls++
	calls := f.ListCalls
	f.mu.Unlock()

	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	if f.FailListAfter > 0 && calls > f.FailListAfter {
		return nil, errors.New("list failed")
	}
	return f.Rows(), nil
}

// InsertTasks implements service.Service.
func (f *FakeService) InsertTasks(ctx context.Context, tasks []service.Task) ([]service.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InsertCalls++
	f.Inserted = append(f.Inserted, service.Clone(tasks))

	if f.InsertTasksErr != nil {
		return nil, f.InsertTasksErr
	}

	out := make([]service.Task, 0, len(tasks))
	for _, t := range service.Clone(tasks) {
		t.ID = f.nextID
		f.nextID++
		f.rows[t.ID] = t
		out = append(out, t)
	}
	return service.Clone(out), nil
}

// UpdateTasks implements service.Service.
func (f *FakeService) UpdateTasks(ctx context.Context, tasks []service.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	f.Updated = append(f.Updated, service.Clone(tasks))

	if f.UpdateTasksErr != nil {
		return f.UpdateTasksErr
	}

	for _, t := range tasks {
		if _, ok := f.rows[t.ID]; !ok {
			return ErrNotFound
		}
	}
	for _, t := range service.Clone(tasks) {
		f.rows[t.ID] = t
	}
	return nil
}
