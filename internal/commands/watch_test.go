package commands_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/commands"
	"tasksync/internal/exitcode"
)

func TestWatchCommand_SyncsOnStartUntilCancelled(t *testing.T) {
	h := newHarness(t)
	h.seedRemote()

	a, err := h.env.NewApp(h.cfg)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var outBuf, errBuf bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- (&commands.WatchCmd{}).Run(ctx, h.cfg, a, nil, &outBuf, &errBuf)
	}()

	require.Eventually(t, func() bool {
		return h.env.Remote.Calls() >= 2
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case code := <-done:
		assert.Equal(t, exitcode.Success, code)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Empty(t, errBuf.String())
	assert.Contains(t, outBuf.String(), "foreground: synced 2 tasks (0 inserted, 0 updated, 0 unchanged)\n")
	assert.Len(t, h.cached(t), 2)
}
