package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string { return "Print usage" }
func (c *HelpCmd) Usage() string { return "tasksync help" }
func (c *HelpCmd) NeedsApp() bool { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, _ *app.App, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  tasksync                                   List tasks
  tasksync list [common flags] [--sync]      List tasks, reconciling first with --sync
  tasksync add [common flags] <text...>      Create a task
  tasksync done [common flags] <n>           Toggle completion of task n
  tasksync rm [common flags] <n>             Delete task n
  tasksync sync [common flags]               Reconcile local and remote tasks
  tasksync watch [common flags] [--metrics-addr <addr>]
  tasksync login [common flags]
  tasksync logout [common flags]
  tasksync help
  tasksync version

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
