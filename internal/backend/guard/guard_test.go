package guard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/backend/guard"
	"tasksync/internal/service"
	"tasksync/internal/testutil"
)

func TestGuard_PassesThrough(t *testing.T) {
	fake := testutil.NewFakeService()
	factory, _ := fake.Factory()
	g := guard.New("test", guard.Settings{Failures: 2, Timeout: time.Minute}, nil)

	svc, err := g.Wrap(factory)(context.Background(), "tok")
	require.NoError(t, err)

	inserted, err := svc.InsertTasks(context.Background(), []service.Task{{Text: service.StringPtr("a")}})
	require.NoError(t, err)
	require.Len(t, inserted, 1)

	inserted[0].IsComplete = true
	require.NoError(t, svc.UpdateTasks(context.Background(), inserted))

	tasks, err := svc.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsComplete)
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGuard_OpensAfterConsecutiveFailures(t *testing.T) {
	fake := testutil.NewFakeService()
	fake.ListTasksErr = errors.New("connection refused")
	factory, _ := fake.Factory()
	g := guard.New("test", guard.Settings{Failures: 2, Timeout: time.Minute}, nil)

	// The breaker is shared across clients.
	for i := 0; i < 2; i++ {
		svc, err := g.Wrap(factory)(context.Background(), "tok")
		require.NoError(t, err)
		_, err = svc.ListTasks(context.Background())
		assert.EqualError(t, err, "connection refused")
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	svc, err := g.Wrap(factory)(context.Background(), "tok")
	require.NoError(t, err)
	calls := fake.ListCalls

	_, err = svc.ListTasks(context.Background())
	assert.ErrorIs(t, err, guard.ErrOpen)
	err = svc.UpdateTasks(context.Background(), nil)
	assert.ErrorIs(t, err, guard.ErrOpen)
	assert.Equal(t, calls, fake.ListCalls, "open breaker does not reach the remote")
}

func TestGuard_HalfOpenRecovers(t *testing.T) {
	fake := testutil.NewFakeService()
	fake.ListTasksErr = errors.New("boom")
	factory, _ := fake.Factory()
	g := guard.New("test", guard.Settings{Failures: 1, Timeout: 10 * time.Millisecond}, nil)

	svc, err := g.Wrap(factory)(context.Background(), "tok")
	require.NoError(t, err)
	_, err = svc.ListTasks(context.Background())
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, g.State())

	time.Sleep(20 * time.Millisecond)
	fake.ListTasksErr = nil

	_, err = svc.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGuard_FactoryErrorPassesThrough(t *testing.T) {
	g := guard.New("test", guard.Settings{}, nil)
	factory := func(context.Context, string) (service.Service, error) {
		return nil, errors.New("bad config")
	}

	_, err := g.Wrap(factory)(context.Background(), "tok")
	assert.EqualError(t, err, "bad config")
}
