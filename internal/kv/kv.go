// Package kv provides the persistent key-value storage behind the local task cache.
//
// Every implementation replaces a value atomically: a reader sees either the
// previous value or the new one, never a partial write.
package kv

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("kv: key not found")

// Store is a minimal key-value store.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set atomically replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases resources held by the store.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	// Backend is one of BackendFile, BackendSQLite, BackendRedis.
	Backend string

	// Dir is the directory for file storage.
	Dir string

	// SQLitePath is the database file for sqlite storage.
	SQLitePath string

	// RedisURL is a redis:// URL for redis storage.
	RedisURL string

	// Prefix namespaces redis keys.
	Prefix string
}

// Open creates the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Dir)
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts.SQLitePath)
	case BackendRedis:
		return NewRedisStoreFromURL(ctx, opts.RedisURL, opts.Prefix)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", opts.Backend)
	}
}
