//go:build !windows

package netstate

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WatchLifecycle maps job-control signals to lifecycle events until ctx is done:
// SIGCONT (resumed) is active and SIGTSTP (suspended) is inactive.
//
// SIGTSTP is caught, so the process re-raises a stop on itself after the event is sent.
func WatchLifecycle(ctx context.Context, events chan<- Event) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGCONT, syscall.SIGTSTP)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sigs:
			up := sig == syscall.SIGCONT
			select {
			case events <- Event{Kind: Lifecycle, Up: up}:
			case <-ctx.Done():
				return ctx.Err()
			}
			if !up {
				syscall.Kill(os.Getpid(), syscall.SIGSTOP)
			}
		}
	}
}
