// Package service defines the task record and the backend-agnostic remote store interface.
package service

import "context"

// Service defines the remote collection store for one authenticated user.
// All remote calls go through this interface.
// The engine and commands never import a backend SDK directly.
type Service interface {
	// ListTasks returns every task the current user owns, including soft-deleted ones.
	ListTasks(ctx context.Context) ([]Task, error)

	// InsertTasks inserts tasks as new rows.
	// Task ids are ignored; the returned tasks carry the ids the store assigned.
	InsertTasks(ctx context.Context, tasks []Task) ([]Task, error)

	// UpdateTasks replaces the stored fields of existing rows, matched by id.
	UpdateTasks(ctx context.Context, tasks []Task) error
}

// Factory creates a Service scoped to a bearer token.
// Callers request a fresh scoped client per operation.
type Factory func(ctx context.Context, token string) (Service, error)
