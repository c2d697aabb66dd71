package commands

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/config"
	"tasksync/internal/testutil"
)

func TestMetricsHandler(t *testing.T) {
	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)
	a, err := testutil.NewEnv().NewApp(cfg)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Engine.Sync(context.Background())
	require.NoError(t, err)

	srv := httptest.NewServer(metricsHandler(a))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `tasksync_passes_total{outcome="ok"} 1`)
}
