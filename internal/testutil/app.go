package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tasksync/internal/app"
	"tasksync/internal/auth"
	"tasksync/internal/cache"
	"tasksync/internal/config"
	"tasksync/internal/kv"
	"tasksync/internal/reconcile"
)

// Env controls the App built by AppFactory.
type Env struct {
	Remote *FakeService

	// Subject is the signed-in user; empty means signed out.
	Subject string

	// Online is the reported connectivity. It starts true.
	Online atomic.Bool

	// Now overrides the engine clock.
	Now func() time.Time

	// Apps counts the Apps built.
	Apps atomic.Int32
}

// NewEnv creates an online, signed-in Env over an empty fake remote.
func NewEnv() *Env {
	env := &Env{Remote: NewFakeService(), Subject: "user_1"}
	env.Online.Store(true)
	return env
}

// AppFactory returns a factory building Apps over env.
// The cache lives in cfg's cache directory, so successive Apps share it.
func (env *Env) AppFactory() func(ctx context.Context, cfg *config.Config) (*app.App, error) {
	return func(ctx context.Context, cfg *config.Config) (*app.App, error) {
		return env.NewApp(cfg)
	}
}

// NewApp builds an App over env with a file cache under cfg.
func (env *Env) NewApp(cfg *config.Config) (*app.App, error) {
	if err := cfg.EnsureDir(); err != nil {
		return nil, err
	}
	store, err := kv.NewFileStore(cfg.CacheDir())
	if err != nil {
		return nil, err
	}
	env.Apps.Add(1)

	var bearer string
	if env.Subject != "" {
		bearer = "token-" + env.Subject
	}
	factory, _ := env.Remote.Factory()
	registry := prometheus.NewRegistry()
	network := reconcile.ConnectivityFunc(func(context.Context) bool { return env.Online.Load() })
	eng := reconcile.New(reconcile.Options{
		Cache:   cache.New(store, "", nil),
		Auth:    &auth.Static{Subject: env.Subject, Bearer: bearer},
		Network: network,
		Remote:  factory,
		Now:     env.Now,
		Metrics: reconcile.NewMetrics(registry),
	})
	return &app.App{
		Config:   cfg,
		Engine:   eng,
		Network:  network,
		Logger:   zap.NewNop(),
		Registry: registry,
	}, nil
}
