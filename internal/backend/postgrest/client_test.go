package postgrest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/backend/postgrest"
	"tasksync/internal/config"
	"tasksync/internal/service"
)

// fakeREST serves a single table the way PostgREST does for the calls the client makes.
type fakeREST struct {
	t *testing.T

	mu       sync.Mutex
	rows     map[int64]map[string]any
	nextID   int64
	requests []*http.Request
	status   int
}

func newFakeREST(t *testing.T) (*fakeREST, *httptest.Server) {
	f := &fakeREST{t: t, rows: map[int64]map[string]any{}, nextID: 1}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Clone(context.Background()))

	if f.status != 0 {
		w.WriteHeader(f.status)
		json.NewEncoder(w).Encode(map[string]string{"code": "42501", "message": "permission denied"})
		return
	}
	if r.URL.Path != "/rest/v1/tasks" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		out := []map[string]any{}
		for id := int64(1); id < f.nextID; id++ {
			if row, ok := f.rows[id]; ok {
				out = append(out, row)
			}
		}
		json.NewEncoder(w).Encode(out)

	case http.MethodPost:
		var in []map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&in))

		if r.URL.Query().Get("on_conflict") == "id" {
			for _, row := range in {
				id := int64(row["id"].(float64))
				existing := f.rows[id]
				if existing == nil {
					existing = map[string]any{}
				}
				for k, v := range row {
					existing[k] = v
				}
				f.rows[id] = existing
			}
			w.WriteHeader(http.StatusCreated)
			return
		}

		var out []map[string]any
		for _, row := range in {
			_, hasID := row["id"]
			assert.False(f.t, hasID, "insert payload must not carry an id")
			row["id"] = f.nextID
			f.rows[f.nextID] = row
			f.nextID++
			out = append(out, row)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(out)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeREST) lastRequest() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newClient(t *testing.T, url string) service.Service {
	t.Helper()
	c, err := postgrest.New(context.Background(), config.RemoteSettings{URL: url + "/", APIKey: "anon"}, "jwt-token")
	require.NoError(t, err)
	return c
}

func TestClient_InsertListUpdate(t *testing.T) {
	fake, srv := newFakeREST(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 9, 0, 0, 123456789, time.UTC)
	inserted, err := c.InsertTasks(ctx, []service.Task{
		{ID: -5, Text: service.StringPtr("buy milk"), CreatedAt: created, UpdatedAt: created, UserID: "user_1"},
		{ID: -6, Text: nil, IsDeleted: true, CreatedAt: created, UpdatedAt: created, UserID: "user_1"},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 2)
	assert.Equal(t, int64(1), inserted[0].ID)
	assert.Equal(t, int64(2), inserted[1].ID)
	assert.Nil(t, inserted[1].Text)
	assert.True(t, inserted[1].IsDeleted)
	assert.Equal(t, "return=representation", fake.lastRequest().Header.Get("Prefer"))

	updated := inserted[0]
	updated.IsComplete = true
	updated.UpdatedAt = created.Add(time.Minute)
	require.NoError(t, c.UpdateTasks(ctx, []service.Task{updated}))

	req := fake.lastRequest()
	assert.Equal(t, "id", req.URL.Query().Get("on_conflict"))
	assert.Contains(t, req.Header.Get("Prefer"), "resolution=merge-duplicates")

	tasks, err := c.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.True(t, tasks[0].IsComplete)
	assert.True(t, tasks[0].UpdatedAt.Equal(service.Timestamp(created.Add(time.Minute))))
	assert.Equal(t, 123456000, tasks[0].CreatedAt.Nanosecond(), "timestamps are truncated to microseconds")

	req = fake.lastRequest()
	assert.Equal(t, "*", req.URL.Query().Get("select"))
	assert.Equal(t, "Bearer jwt-token", req.Header.Get("Authorization"))
	assert.Equal(t, "anon", req.Header.Get("apikey"))
}

func TestClient_EmptyBatchesMakeNoRequest(t *testing.T) {
	fake, srv := newFakeREST(t)
	c := newClient(t, srv.URL)

	out, err := c.InsertTasks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	require.NoError(t, c.UpdateTasks(context.Background(), nil))
	assert.Empty(t, fake.requests)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, postgrest.ErrUnauthorized)
			},
		},
		{
			name:   "api error",
			status: http.StatusBadRequest,
			check: func(t *testing.T, err error) {
				var apiErr *postgrest.APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusBadRequest, apiErr.Status)
				assert.Equal(t, "42501", apiErr.Code)
				assert.Equal(t, "permission denied", apiErr.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, srv := newFakeREST(t)
			fake.status = tt.status
			c := newClient(t, srv.URL)

			_, err := c.ListTasks(context.Background())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ListTasks(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request timed out")
}

func TestNew_Validation(t *testing.T) {
	_, err := postgrest.New(context.Background(), config.RemoteSettings{}, "tok")
	assert.Error(t, err)

	_, err = postgrest.New(context.Background(), config.RemoteSettings{URL: "http://localhost"}, "")
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	_, srv := newFakeREST(t)
	factory := postgrest.Factory(config.RemoteSettings{URL: srv.URL})

	svc, err := factory(context.Background(), "tok")
	require.NoError(t, err)

	tasks, err := svc.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
