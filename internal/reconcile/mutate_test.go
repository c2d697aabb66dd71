package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/auth"
	"tasksync/internal/cache"
	"tasksync/internal/kv"
	"tasksync/internal/reconcile"
)

func TestAdd_RejectsEmptyTextWithoutWriting(t *testing.T) {
	env := newEnv(t)

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := env.eng.Add(context.Background(), text)
		assert.ErrorIs(t, err, reconcile.ErrEmptyText)
	}

	_, err := env.store.Get(context.Background(), cache.DefaultKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestAdd_RequiresUser(t *testing.T) {
	env := newEnv(t, func(o *reconcile.Options) { o.Auth = &auth.Static{} })

	_, err := env.eng.Add(context.Background(), "buy milk")
	assert.ErrorIs(t, err, reconcile.ErrNotAuthenticated)
}

func TestAdd_SavesOptimistically(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.online.Store(false)
	now := env.clock.Now()

	added, err := env.eng.Add(ctx, "  buy milk ")
	require.NoError(t, err)

	assert.True(t, added.IsTemporary())
	assert.Equal(t, -now.UnixMilli(), added.ID)
	assert.Equal(t, "buy milk", added.Title())
	assert.Equal(t, "user_1", added.UserID)
	assert.True(t, added.CreatedAt.Equal(now))
	assert.True(t, added.UpdatedAt.Equal(now))

	// Persisted before any sync.
	reloaded := cache.New(env.store, "", nil)
	tasks, found := reloaded.Load(ctx)
	require.True(t, found)
	require.Len(t, tasks, 1)
	assert.Equal(t, added.ID, tasks[0].ID)
	assert.Zero(t, env.remote.Calls())
}

func TestAdd_TemporaryIDsAreUnique(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	a, err := env.eng.Add(ctx, "one")
	require.NoError(t, err)
	b, err := env.eng.Add(ctx, "two")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Negative(t, b.ID)
	assert.Len(t, env.eng.Visible(ctx), 2)
}

func TestAdd_KeepsExistingCache(t *testing.T) {
	env := newEnv(t)
	env.seedCache(t, task(1, "existing", t1))

	// A fresh engine has not loaded the cache yet.
	eng := reconcile.New(reconcile.Options{
		Cache: cache.New(env.store, "", nil),
		Auth:  &auth.Static{Subject: "user_1", Bearer: "token-1"},
		Now:   env.clock.Now,
	})
	_, err := eng.Add(context.Background(), "new")
	require.NoError(t, err)

	assert.Len(t, eng.Visible(context.Background()), 2)
}

func TestAdd_ThenSyncInsertsRemotely(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	added, err := env.eng.Add(ctx, "buy milk")
	require.NoError(t, err)

	_, err = env.eng.Sync(ctx)
	require.NoError(t, err)

	rows := env.remote.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "buy milk", rows[0].Title())
	_, stillTemp := env.cache.Find(added.ID)
	assert.False(t, stillTemp, "temporary record is replaced by the remote copy")
}

func TestToggle(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.seedCache(t, task(5, "a", t1))

	got, err := env.eng.Toggle(ctx, 5)
	require.NoError(t, err)
	assert.True(t, got.IsComplete)
	assert.True(t, got.UpdatedAt.Equal(env.clock.Now()))

	got, err = env.eng.Toggle(ctx, 5)
	require.NoError(t, err)
	assert.False(t, got.IsComplete)

	_, err = env.eng.Toggle(ctx, 99)
	assert.ErrorIs(t, err, reconcile.ErrTaskNotFound)
}

func TestToggle_UpdatedAtNeverDecreases(t *testing.T) {
	env := newEnv(t)
	future := env.clock.Now().Add(24 * time.Hour)
	env.seedCache(t, task(5, "a", future))

	got, err := env.eng.Toggle(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(future))
}

func TestToggle_ThenSyncPushesUpdate(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.remote.Seed(task(5, "a", t1))
	_, err := env.eng.Sync(ctx)
	require.NoError(t, err)

	_, err = env.eng.Toggle(ctx, 5)
	require.NoError(t, err)
	_, err = env.eng.Sync(ctx)
	require.NoError(t, err)

	row, _ := env.remote.Row(5)
	assert.True(t, row.IsComplete)
}

func TestDismiss(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.seedCache(t, task(5, "a", t1), task(6, "b", t1))

	got, err := env.eng.Dismiss(ctx, 5)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	visible := env.eng.Visible(ctx)
	require.Len(t, visible, 1)
	assert.Equal(t, int64(6), visible[0].ID)

	kept, ok := env.cache.Find(5)
	require.True(t, ok, "dismissed records are kept for sync")
	assert.True(t, kept.IsDeleted)

	_, err = env.eng.Dismiss(ctx, 5)
	assert.ErrorIs(t, err, reconcile.ErrTaskNotFound)
	_, err = env.eng.Toggle(ctx, 5)
	assert.ErrorIs(t, err, reconcile.ErrTaskNotFound)
}

func TestMutation_RequestsPass(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.remote.Seed(task(5, "a", t1))
	env.seedCache(t, task(5, "a", t1))

	sched := env.eng.Scheduler()
	var reasons []string
	sched.OnResult = func(reason string, res reconcile.Result, err error) {
		reasons = append(reasons, reason)
	}
	go sched.Run(ctx)

	_, err := env.eng.Toggle(ctx, 5)
	require.NoError(t, err)
	sched.Close()
	sched.Wait()

	assert.Equal(t, []string{"toggle"}, reasons)
	row, ok := env.remote.Row(5)
	require.True(t, ok, "the requested pass pushed the record")
	assert.True(t, row.IsComplete)
}

func TestMutation_SaveFailure(t *testing.T) {
	env := newEnv(t, func(o *reconcile.Options) {
		o.Cache = cache.New(failingKV{}, "", nil)
	})
	ctx := context.Background()

	_, err := env.eng.Add(ctx, "x")
	require.ErrorIs(t, err, cache.ErrWrite)
	assert.Empty(t, env.eng.Visible(ctx), "a failed save leaves memory unchanged")
	assert.Empty(t, env.cache.Tasks())
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, error) { return nil, kv.ErrNotFound }

func (failingKV) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func (failingKV) Close() error { return nil }
