package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/cache"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/reconcile"
)

func init() {
	Register(&SyncCmd{})
}

// SyncCmd implements the sync command: one reconciliation pass, in the foreground.
type SyncCmd struct{}

func (c *SyncCmd) Name() string { return "sync" }
func (c *SyncCmd) Aliases() []string { return nil }
func (c *SyncCmd) Synopsis() string { return "Reconcile local and remote tasks" }
func (c *SyncCmd) Usage() string { return "tasksync sync" }
func (c *SyncCmd) NeedsApp() bool { return true }

func (c *SyncCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *SyncCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	res, err := a.Engine.Sync(ctx)
	if err != nil {
		if errors.Is(err, cache.ErrWrite) || errors.Is(err, cache.ErrRead) {
			fmt.Fprintf(errOut, "error: local storage error: %v\n", err)
			return exitcode.CacheError
		}
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}
	return reportResult(cfg, res, out, errOut)
}

// reportResult prints a pass summary and maps skips to exit codes.
func reportResult(cfg *config.Config, res reconcile.Result, out, errOut io.Writer) int {
	switch res.Skipped {
	case "":
	case reconcile.SkipOffline:
		fmt.Fprintln(errOut, "error: offline; changes are kept locally")
		return exitcode.BackendError
	default:
		fmt.Fprintf(errOut, "error: %s (run: tasksync login)\n", res.Skipped)
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, res.String())
	}
	if res.InsertErr != nil || res.UpdateErr != nil {
		return exitcode.BackendError
	}
	return exitcode.Success
}
