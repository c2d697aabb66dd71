package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tasksync/internal/reconcile"
	"tasksync/internal/service"
)

// ErrTaskRefRequired indicates no task number was provided.
var ErrTaskRefRequired = errors.New("task number required")

// ParseTaskNum parses the 1-based task number shown by list.
// Exactly one argument made of ASCII digits is accepted.
func ParseTaskNum(args []string) (int, error) {
	if len(args) == 0 {
		return 0, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return 0, fmt.Errorf("unexpected argument: %s", args[1])
	}

	ref := args[0]
	if ref == "" || strings.TrimLeft(ref, "0123456789") != "" {
		return 0, fmt.Errorf("invalid task number: %s", ref)
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid task number: %s", ref)
	}
	return n, nil
}

// errOutOfRange is returned when n does not name a visible task.
type errOutOfRange int

func (e errOutOfRange) Error() string {
	return fmt.Sprintf("task number out of range: %d", int(e))
}

// visibleTask returns the n-th task in list order.
func visibleTask(ctx context.Context, eng *reconcile.Engine, n int) (service.Task, error) {
	tasks := eng.Visible(ctx)
	if n < 1 || n > len(tasks) {
		return service.Task{}, errOutOfRange(n)
	}
	return tasks[n-1], nil
}
