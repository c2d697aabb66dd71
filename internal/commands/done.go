package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/reconcile"
	"tasksync/internal/service"
)

func init() {
	Register(&DoneCmd{})
}

// DoneCmd implements the done command.
// It flips completion, so running it twice reopens the task.
type DoneCmd struct{}

func (c *DoneCmd) Name() string { return "done" }
func (c *DoneCmd) Aliases() []string { return []string{"toggle"} }
func (c *DoneCmd) Synopsis() string { return "Toggle a task's completion" }
func (c *DoneCmd) Usage() string { return "tasksync done <n>" }
func (c *DoneCmd) NeedsApp() bool { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	return runRef(ctx, cfg, a, args, out, errOut, a.Engine.Toggle)
}

// runRef resolves a task number and applies a mutation to it.
// Shared by done and rm.
func runRef(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer,
	mutate func(context.Context, int64) (service.Task, error)) int {
	n, err := ParseTaskNum(args)
	if err != nil {
		if err == ErrTaskRefRequired {
			fmt.Fprintln(errOut, "error: task number required")
		} else {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
		return exitcode.UserError
	}

	task, err := visibleTask(ctx, a.Engine, n)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if _, err := mutate(ctx, task.ID); err != nil {
		if err == reconcile.ErrTaskNotFound {
			fmt.Fprintf(errOut, "error: %v\n", errOutOfRange(n))
			return exitcode.UserError
		}
		return mutationError(errOut, err)
	}
	drain(ctx, a.Engine)

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
