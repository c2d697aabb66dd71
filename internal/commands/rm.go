package commands

import (
	"context"
	"flag"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/config"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
// The task is soft-deleted and hidden from list once dismissed.
type RmCmd struct{}

func (c *RmCmd) Name() string { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"dismiss"} }
func (c *RmCmd) Synopsis() string { return "Delete a task" }
func (c *RmCmd) Usage() string { return "tasksync rm <n>" }
func (c *RmCmd) NeedsApp() bool { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	return runRef(ctx, cfg, a, args, out, errOut, a.Engine.Dismiss)
}
