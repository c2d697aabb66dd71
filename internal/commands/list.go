package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/output"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `tasksync` (no args) and `tasksync list`.
//
// Tasks come from the local cache. When nothing has been cached yet,
// one pass runs first so a fresh install shows the remote tasks.
type ListCmd struct {
	sync bool
}

func (c *ListCmd) Name() string { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string { return "List tasks" }
func (c *ListCmd) Usage() string { return "tasksync list [--sync]" }
func (c *ListCmd) NeedsApp() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.sync, "sync", false, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	if _, found := a.Engine.Load(ctx); !found || c.sync {
		// A failed pass leaves the cache as it was; list whatever is there.
		if _, err := a.Engine.Sync(ctx); err != nil && cfg.Debug {
			fmt.Fprintf(errOut, "warning: sync failed: %v\n", err)
		}
	}

	tasks := a.Engine.Visible(ctx)
	if len(tasks) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}
	output.FormatTasks(out, tasks)
	return exitcode.Success
}
