package netstate

import "context"

// WatchLifecycle has no job-control signals to watch on Windows; it blocks until ctx is done.
func WatchLifecycle(ctx context.Context, events chan<- Event) error {
	<-ctx.Done()
	return ctx.Err()
}
