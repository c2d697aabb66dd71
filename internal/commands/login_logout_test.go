package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/commands"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
)

func authConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)
	cfg.Settings.Auth.ClientID = "client"
	cfg.Settings.Auth.AuthURL = "http://127.0.0.1:1/authorize"
	cfg.Settings.Auth.TokenURL = "http://127.0.0.1:1/token"
	return cfg
}

func writeTokenFile(t *testing.T, cfg *config.Config, v map[string]any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.TokenPath(), data, 0600))
}

func TestLoginCommand_NoClientID(t *testing.T) {
	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)

	var outBuf, errBuf bytes.Buffer
	code := (&commands.LoginCmd{}).Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)

	assert.Equal(t, exitcode.AuthError, code)
	assert.Empty(t, outBuf.String())
	assert.Contains(t, errBuf.String(), "error: auth.client_id is not configured\n")
}

func TestLoginCommand_AlreadyLoggedIn(t *testing.T) {
	cfg := authConfig(t)
	writeTokenFile(t, cfg, map[string]any{
		"access_token": "still-good",
		"token_type":   "Bearer",
		"expiry":       time.Now().Add(time.Hour),
	})

	var outBuf, errBuf bytes.Buffer
	code := (&commands.LoginCmd{}).Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)

	assert.Equal(t, exitcode.Success, code)
	assert.Empty(t, errBuf.String())
	assert.Equal(t, "already logged in\n", outBuf.String())
}

// An expired token without a refresh token must start a new login.
func TestLoginCommand_ExpiredToken(t *testing.T) {
	cfg := authConfig(t)
	writeTokenFile(t, cfg, map[string]any{
		"access_token": "expired",
		"token_type":   "Bearer",
		"expiry":       "2020-01-01T00:00:00Z",
	})

	// Cancelled so the command does not wait for a browser.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var outBuf, errBuf bytes.Buffer
	code := (&commands.LoginCmd{}).Run(ctx, cfg, nil, nil, &outBuf, &errBuf)

	assert.Equal(t, exitcode.AuthError, code)
	assert.NotEqual(t, "already logged in\n", outBuf.String())
}

func TestLogoutCommand_KeepsCache(t *testing.T) {
	cfg := authConfig(t)
	writeTokenFile(t, cfg, map[string]any{"access_token": "test", "refresh_token": "test"})
	require.NoError(t, os.MkdirAll(cfg.CacheDir(), 0700))
	cachePath := filepath.Join(cfg.CacheDir(), "@todo_tasks.json")
	require.NoError(t, os.WriteFile(cachePath, []byte("[]"), 0600))

	var outBuf, errBuf bytes.Buffer
	code := (&commands.LogoutCmd{}).Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)

	assert.Equal(t, exitcode.Success, code)
	assert.Empty(t, errBuf.String())
	assert.Equal(t, "ok\n", outBuf.String())
	assert.NoFileExists(t, cfg.TokenPath())
	assert.FileExists(t, cachePath)
}

func TestLogoutCommand_NotLoggedIn(t *testing.T) {
	for _, quiet := range []bool{false, true} {
		cfg, err := config.New(t.TempDir())
		require.NoError(t, err)
		cfg.Quiet = quiet

		var outBuf, errBuf bytes.Buffer
		code := (&commands.LogoutCmd{}).Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)

		assert.Equal(t, exitcode.Success, code)
		assert.Empty(t, errBuf.String())
		if quiet {
			assert.Empty(t, outBuf.String())
		} else {
			assert.Equal(t, "not logged in\n", outBuf.String())
		}
	}
}
