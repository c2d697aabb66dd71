// Package postgrest implements the service.Service interface over a
// PostgREST (Supabase) endpoint.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"tasksync/internal/config"
	"tasksync/internal/service"
)

// DefaultTable is the table holding task rows.
const DefaultTable = "tasks"

// ErrUnauthorized is returned for 401 and 403 responses.
var ErrUnauthorized = errors.New("token expired or revoked (run: tasksync login)")

// APIError is a non-2xx PostgREST response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote store returned %d", e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("remote store returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("remote store returned %d: %s", e.Status, e.Message)
}

// Client implements service.Service against one table for one bearer token.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	table   string
}

// New creates a client that authenticates as token.
// The token is sent as a bearer credential; the project api key goes in the apikey header.
func New(ctx context.Context, s config.RemoteSettings, token string) (*Client, error) {
	if s.URL == "" {
		return nil, errors.New("remote.url is not configured")
	}
	if token == "" {
		return nil, errors.New("missing bearer token")
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	return NewWithHTTPClient(httpClient, s)
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(httpClient *http.Client, s config.RemoteSettings) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(s.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote.url: %w", err)
	}
	table := s.Table
	if table == "" {
		table = DefaultTable
	}
	return &Client{
		http:    httpClient,
		baseURL: base.String(),
		apiKey:  s.APIKey,
		table:   table,
	}, nil
}

// Factory returns a service.Factory building a client per token.
func Factory(s config.RemoteSettings) service.Factory {
	return func(ctx context.Context, token string) (service.Service, error) {
		return New(ctx, s, token)
	}
}

// ListTasks implements service.Service.
// Row isolation is enforced server-side, so no user filter is sent.
func (c *Client) ListTasks(ctx context.Context) ([]service.Task, error) {
	var out []service.Task
	if err := c.do(ctx, http.MethodGet, url.Values{"select": {"*"}}, nil, nil, &out); err != nil {
		return nil, err
	}
	return normalize(out), nil
}

// newRow is the insert payload. It omits id so the store assigns one.
type newRow struct {
	Text       *string   `json:"text"`
	IsComplete bool      `json:"is_complete"`
	IsDeleted  bool      `json:"is_deleted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	UserID     string    `json:"user_id"`
}

// InsertTasks implements service.Service.
func (c *Client) InsertTasks(ctx context.Context, tasks []service.Task) ([]service.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	rows := make([]newRow, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, newRow{
			Text:       t.Text,
			IsComplete: t.IsComplete,
			IsDeleted:  t.IsDeleted,
			CreatedAt:  t.CreatedAt,
			UpdatedAt:  t.UpdatedAt,
			UserID:     t.UserID,
		})
	}

	headers := http.Header{"Prefer": {"return=representation"}}
	var out []service.Task
	if err := c.do(ctx, http.MethodPost, nil, headers, rows, &out); err != nil {
		return nil, err
	}
	return normalize(out), nil
}

// UpdateTasks implements service.Service.
// The bulk update is an upsert keyed by id that merges into existing rows.
func (c *Client) UpdateTasks(ctx context.Context, tasks []service.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	headers := http.Header{"Prefer": {"resolution=merge-duplicates,return=minimal"}}
	return c.do(ctx, http.MethodPost, url.Values{"on_conflict": {"id"}}, headers, tasks, nil)
}

func (c *Client) endpoint(query url.Values) string {
	u := c.baseURL + "/rest/v1/" + url.PathEscape(c.table)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method string, query url.Values, headers http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(query), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(data) > 0 {
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr.Message = strings.TrimSpace(string(data))
		}
	}
	return apiErr
}

// wrapError wraps transport errors with user-friendly messages.
func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	return err
}

// normalize brings timestamps to the precision used for comparisons.
func normalize(tasks []service.Task) []service.Task {
	for i := range tasks {
		tasks[i].CreatedAt = service.Timestamp(tasks[i].CreatedAt)
		tasks[i].UpdatedAt = service.Timestamp(tasks[i].UpdatedAt)
	}
	return tasks
}
