// Package commands provides the command interface and implementations.
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

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsApp returns true if the command works with tasks.
	// Commands like help, version, login, logout return false.
	NeedsApp() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths, settings).
	// a is nil if NeedsApp() returns false.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int
}

// drain runs the pass requested by a mutation, if any, and waits for it.
// Sync failures are logged by the engine and never change the exit code.
func drain(ctx context.Context, eng *reconcile.Engine) {
	s := eng.Scheduler()
	go s.Run(ctx)
	s.Close()
	s.Wait()
}

// mutationError reports a failed mutation and returns its exit code.
func mutationError(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, reconcile.ErrEmptyText):
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	case errors.Is(err, reconcile.ErrNotAuthenticated):
		fmt.Fprintln(errOut, "error: not logged in (run: tasksync login)")
		return exitcode.AuthError
	case errors.Is(err, cache.ErrWrite), errors.Is(err, cache.ErrRead):
		fmt.Fprintf(errOut, "error: local storage error: %v\n", err)
		return exitcode.CacheError
	default:
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
}
