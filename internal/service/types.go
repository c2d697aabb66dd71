// Package service defines the task record and the backend-agnostic remote store interface.
package service

import (
	"sort"
	"time"
)

// Task represents a single to-do record.
// The JSON field names are shared by the local cache and the remote table.
type Task struct {
	ID         int64     `json:"id"`
	Text       *string   `json:"text"`
	IsComplete bool      `json:"is_complete"`
	IsDeleted  bool      `json:"is_deleted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	UserID     string    `json:"user_id"`
}

// IsTemporary reports whether the task still carries a locally generated id.
// Temporary ids are negative; remote ids are positive.
func (t Task) IsTemporary() bool {
	return t.ID < 0
}

// Title returns the text or an empty string when the text is null.
func (t Task) Title() string {
	if t.Text == nil {
		return ""
	}
	return *t.Text
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Timestamp normalizes a time to the precision the remote store keeps (UTC, microseconds).
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Visible returns tasks that are not soft-deleted, preserving order.
func Visible(tasks []Task) []Task {
	var out []Task
	for _, t := range tasks {
		if !t.IsDeleted {
			out = append(out, t)
		}
	}
	return out
}

// SortNewestFirst sorts tasks by created_at descending.
// Ties are broken by id so the order is deterministic.
func SortNewestFirst(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
}

// Clone returns a copy of tasks that does not share text pointers with the input.
func Clone(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		if t.Text != nil {
			t.Text = StringPtr(*t.Text)
		}
		out[i] = t
	}
	return out
}
