package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/netstate"
	"tasksync/internal/reconcile"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd implements the watch command.
// It stays in the foreground and runs a pass whenever connectivity comes back
// or the process is resumed, until interrupted.
type WatchCmd struct {
	metricsAddr string
}

func (c *WatchCmd) Name() string { return "watch" }
func (c *WatchCmd) Aliases() []string { return nil }
func (c *WatchCmd) Synopsis() string { return "Sync on reconnect and resume until interrupted" }
func (c *WatchCmd) Usage() string { return "tasksync watch [--metrics-addr <addr>]" }
func (c *WatchCmd) NeedsApp() bool { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "")
}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	addr := c.metricsAddr
	if addr == "" {
		addr = cfg.Settings.Sync.MetricsAddr
	}

	sched := a.Engine.Scheduler()
	var outMu sync.Mutex
	sched.OnResult = func(reason string, res reconcile.Result, err error) {
		outMu.Lock()
		defer outMu.Unlock()
		if err != nil {
			fmt.Fprintf(errOut, "error: sync (%s): %v\n", reason, err)
			return
		}
		if !cfg.Quiet {
			fmt.Fprintf(out, "%s: %s\n", reason, res)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	events := make(chan netstate.Event)

	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return netstate.NewMonitor(a.Network, cfg.Settings.Sync.ProbeInterval, a.Logger).Run(gctx, events)
	})
	g.Go(func() error {
		return netstate.WatchLifecycle(gctx, events)
	})
	g.Go(func() error {
		trans := reconcile.NewTransitions(sched)
		trans.Lifecycle(true)
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ev := <-events:
				a.Logger.Debug("state event", zap.Stringer("kind", ev.Kind), zap.Bool("up", ev.Up))
				switch ev.Kind {
				case netstate.Connectivity:
					trans.Connectivity(ev.Up)
				case netstate.Lifecycle:
					trans.Lifecycle(ev.Up)
				}
			}
		}
	})
	if addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsHandler(a), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		a.Logger.Info("serving metrics", zap.String("addr", addr))
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}

func metricsHandler(a *app.App) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	return mux
}
