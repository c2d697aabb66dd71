// Package app assembles the reconciliation engine and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tasksync/internal/auth"
	"tasksync/internal/backend/guard"
	"tasksync/internal/backend/postgres"
	"tasksync/internal/backend/postgrest"
	"tasksync/internal/cache"
	"tasksync/internal/config"
	"tasksync/internal/kv"
	"tasksync/internal/logging"
	"tasksync/internal/netstate"
	"tasksync/internal/reconcile"
	"tasksync/internal/service"
)

// ErrStorage marks failures to open local storage.
var ErrStorage = errors.New("local storage error")

// App holds everything a command needs to work with tasks.
type App struct {
	Config  *config.Config
	Engine  *reconcile.Engine
	Network netstate.Checker
	Logger  *zap.Logger
	// Registry holds the engine's metrics.
	Registry *prometheus.Registry

	closers []func()
}

// New builds an App from cfg. cfg must already be loaded.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("%w: failed to create config directory: %w", ErrStorage, err)
	}

	logger, err := logging.New(cfg.LogPath(), cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &App{Config: cfg, Logger: logger}
	a.onClose(func() { logger.Sync() })

	s := cfg.Settings
	store, err := kv.Open(ctx, kv.Options{
		Backend:    s.Cache.Backend,
		Dir:        cfg.CacheDir(),
		SQLitePath: cfg.SQLitePath(),
		RedisURL:   s.Cache.RedisURL,
		Prefix:     s.Cache.RedisPrefix,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	a.onClose(func() { store.Close() })

	remote, err := a.remote(ctx, s)
	if err != nil {
		a.Close()
		return nil, err
	}
	breaker := guard.New("remote", guard.Settings{
		Failures: s.Sync.BreakerFailures,
		Timeout:  s.Sync.BreakerTimeout,
	}, logger)

	a.Network = netstate.NewProbe(s.ProbeTarget(), 0)
	a.Registry = prometheus.NewRegistry()

	a.Engine = reconcile.New(reconcile.Options{
		Cache:   cache.New(store, s.Cache.Key, logger),
		Auth:    provider(cfg, logger),
		Network: a.Network,
		Remote:  breaker.Wrap(remote),
		Logger:  logger,
		Metrics: reconcile.NewMetrics(a.Registry),
		Timeout: s.Sync.Timeout,
	})

	logger.Debug("app ready",
		zap.String("remote", s.Remote.Backend),
		zap.String("cache", s.Cache.Backend),
		zap.String("probe", s.ProbeTarget()),
	)
	return a, nil
}

func (a *App) remote(ctx context.Context, s config.Settings) (service.Factory, error) {
	switch s.Remote.Backend {
	case "", config.RemotePostgREST:
		return postgrest.Factory(s.Remote), nil
	case config.RemotePostgres:
		store, err := postgres.Open(ctx, s.Remote.DatabaseURL, s.Remote.Table)
		if err != nil {
			return nil, err
		}
		a.onClose(store.Close)
		return store.Factory(), nil
	default:
		return nil, fmt.Errorf("unknown remote backend: %s", s.Remote.Backend)
	}
}

// provider picks the identity provider: a static token when one is configured,
// otherwise the token file written by login.
func provider(cfg *config.Config, logger *zap.Logger) auth.Provider {
	if token := cfg.Settings.Auth.Token; token != "" {
		p, err := auth.NewStatic(token)
		if err == nil {
			return p
		}
		logger.Warn("ignoring invalid TASKSYNC_TOKEN", zap.Error(err))
	}

	oauthCfg, err := auth.OAuthConfig(cfg.Settings.Auth)
	if err != nil {
		logger.Debug("token refresh disabled", zap.Error(err))
		oauthCfg = nil
	}
	return auth.NewTokenFile(cfg.TokenPath(), oauthCfg)
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
