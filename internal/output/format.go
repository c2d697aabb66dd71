// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"tasksync/internal/service"
)

// FormatTask formats a task line.
// Format: "{N:>4}  [{X}] {TEXT}\n" where X is "x" for completed tasks and a space otherwise.
func FormatTask(w io.Writer, num int, task service.Task) {
	mark := " "
	if task.IsComplete {
		mark = "x"
	}
	fmt.Fprintf(w, "%4d  [%s] %s\n", num, mark, normalizeTitle(task.Title()))
}

// FormatTasks formats tasks numbered from 1.
func FormatTasks(w io.Writer, tasks []service.Task) {
	for i, t := range tasks {
		FormatTask(w, i+1, t)
	}
}

// normalizeTitle normalizes a task text for display.
// - Null, empty or whitespace-only text becomes "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
