package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UsesXDGConfigHome(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	cfg, err := New("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(xdg, AppName), cfg.Dir)
	assert.Equal(t, filepath.Join(xdg, AppName, TokenFile), cfg.TokenPath())
	assert.Equal(t, DefaultSettings(), cfg.Settings)
}

func TestNew_ExplicitDir(t *testing.T) {
	dir := t.TempDir()

	cfg, err := New(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, filepath.Join(dir, "cache.db"), cfg.SQLitePath())
	assert.Equal(t, filepath.Join(dir, "tasksync.log"), cfg.LogPath())
}

func TestLoad_DefaultsWithoutFiles(t *testing.T) {
	cfg, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cfg.Load())

	assert.Equal(t, RemotePostgREST, cfg.Settings.Remote.Backend)
	assert.Equal(t, "tasks", cfg.Settings.Remote.Table)
	assert.Equal(t, "file", cfg.Settings.Cache.Backend)
	assert.Equal(t, 10*time.Second, cfg.Settings.Sync.Timeout)
}

func TestLoad_ReadsYAML(t *testing.T) {
	dir := t.TempDir()
	yml := `
remote:
  url: https://example.supabase.co
  api_key: anon-key
auth:
  client_id: abc
  scopes: [openid]
cache:
  backend: sqlite
sync:
  timeout: 3s
  breaker_failures: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte(yml), 0600))

	cfg, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Load())

	s := cfg.Settings
	assert.Equal(t, "https://example.supabase.co", s.Remote.URL)
	assert.Equal(t, "anon-key", s.Remote.APIKey)
	assert.Equal(t, "tasks", s.Remote.Table, "unset keys keep defaults")
	assert.Equal(t, "abc", s.Auth.ClientID)
	assert.Equal(t, []string{"openid"}, s.Auth.Scopes)
	assert.Equal(t, "sqlite", s.Cache.Backend)
	assert.Equal(t, 3*time.Second, s.Sync.Timeout)
	assert.Equal(t, uint32(2), s.Sync.BreakerFailures)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte("remote: ["), 0600))

	cfg, err := New(dir)
	require.NoError(t, err)

	assert.Error(t, cfg.Load())
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte("remote:\n  table: yaml_tasks\n"), 0600))
	t.Setenv("TASKSYNC_REMOTE_TABLE", "env_tasks")
	t.Setenv("TASKSYNC_SYNC_TIMEOUT", "250ms")
	t.Setenv("TASKSYNC_OAUTH_SCOPES", "openid,email")

	cfg, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Load())

	assert.Equal(t, "env_tasks", cfg.Settings.Remote.Table)
	assert.Equal(t, 250*time.Millisecond, cfg.Settings.Sync.Timeout)
	assert.Equal(t, []string{"openid", "email"}, cfg.Settings.Auth.Scopes)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFile), []byte("TASKSYNC_REDIS_URL=redis://localhost:6379/3\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("TASKSYNC_REDIS_URL") })

	cfg, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Load())

	assert.Equal(t, "redis://localhost:6379/3", cfg.Settings.Cache.RedisURL)
}

func TestProbeTarget(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     string
	}{
		{
			name:     "explicit probe address",
			settings: Settings{Sync: SyncSettings{ProbeAddr: "1.1.1.1:53"}},
			want:     "1.1.1.1:53",
		},
		{
			name:     "https remote url",
			settings: Settings{Remote: RemoteSettings{Backend: RemotePostgREST, URL: "https://abc.supabase.co"}},
			want:     "abc.supabase.co:443",
		},
		{
			name:     "http remote url with port",
			settings: Settings{Remote: RemoteSettings{Backend: RemotePostgREST, URL: "http://localhost:54321"}},
			want:     "localhost:54321",
		},
		{
			name:     "postgres database url",
			settings: Settings{Remote: RemoteSettings{Backend: RemotePostgres, DatabaseURL: "postgres://u:p@db.internal/app"}},
			want:     "db.internal:5432",
		},
		{
			name:     "nothing configured",
			settings: Settings{},
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.settings.ProbeTarget())
		})
	}
}

func TestTokenFileHelpers(t *testing.T) {
	cfg, err := New(filepath.Join(t.TempDir(), "nested"))
	require.NoError(t, err)
	assert.False(t, cfg.HasToken())

	require.NoError(t, cfg.EnsureDir())
	require.NoError(t, os.WriteFile(cfg.TokenPath(), []byte("{}"), 0600))
	assert.True(t, cfg.HasToken())

	require.NoError(t, cfg.RemoveToken())
	assert.False(t, cfg.HasToken())
}
