package reconcile

import "tasksync/internal/service"

// Plan is the set of local changes one pass pushes to the remote store.
type Plan struct {
	// Insert holds local records unknown to the remote store, ids zeroed.
	Insert []service.Task
	// Update holds local records strictly newer than their remote copy.
	Update []service.Task
	// Unchanged counts local records whose remote copy is as new or newer.
	Unchanged int
}

// Empty reports whether the plan pushes nothing.
func (p Plan) Empty() bool {
	return len(p.Insert) == 0 && len(p.Update) == 0
}

// Diff partitions local against remote by id, last write wins on updated_at.
// Soft-deleted records are planned like any other so deletions propagate.
func Diff(local, remote []service.Task) Plan {
	byID := make(map[int64]service.Task, len(remote))
	for _, r := range remote {
		byID[r.ID] = r
	}

	var p Plan
	for _, l := range service.Clone(local) {
		r, ok := byID[l.ID]
		switch {
		case !ok:
			l.ID = 0
			p.Insert = append(p.Insert, l)
		case l.UpdatedAt.After(r.UpdatedAt):
			p.Update = append(p.Update, l)
		default:
			p.Unchanged++
		}
	}
	return p
}
