// Package postgres implements the service.Service interface directly against
// a Postgres database, scoping every statement to the token's user.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tasksync/internal/auth"
	"tasksync/internal/service"
)

const columns = "id, text, is_complete, is_deleted, created_at, updated_at, user_id"

// Store owns the connection pool shared by all scoped clients.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Open connects to databaseURL. Rows live in table.
func Open(ctx context.Context, databaseURL, table string) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("remote.database_url is not configured")
	}
	if table == "" {
		table = "tasks"
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &Store{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
	}, nil
}

// Pool returns the underlying pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Factory returns a service.Factory that scopes clients to the token's subject.
func (s *Store) Factory() service.Factory {
	return func(ctx context.Context, token string) (service.Service, error) {
		return s.Client(token)
	}
}

// Client returns a client scoped to the user the token belongs to.
func (s *Store) Client(token string) (*Client, error) {
	userID, err := auth.Subject(token)
	if err != nil {
		return nil, err
	}
	claims, err := json.Marshal(map[string]string{"sub": userID, "role": "authenticated"})
	if err != nil {
		return nil, err
	}
	return &Client{store: s, userID: userID, claims: string(claims)}, nil
}

// Client implements service.Service for one user.
type Client struct {
	store  *Store
	userID string
	claims string
}

// inTx runs fn in a transaction carrying the request claims, so row level
// security policies written for PostgREST apply here too.
func (c *Client) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := c.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('request.jwt.claims', $1, true)", c.claims); err != nil {
		return fmt.Errorf("failed to set request claims: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListTasks implements service.Service.
func (c *Client) ListTasks(ctx context.Context) ([]service.Task, error) {
	var tasks []service.Task
	err := c.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			"SELECT "+columns+" FROM "+c.store.table+" WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
			c.userID)
		if err != nil {
			return err
		}
		tasks, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (service.Task, error) {
			return scanTask(row)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// InsertTasks implements service.Service.
// Rows are always owned by the client's user.
func (c *Client) InsertTasks(ctx context.Context, tasks []service.Task) ([]service.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	out := make([]service.Task, 0, len(tasks))
	err := c.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, t := range tasks {
			batch.Queue(
				"INSERT INTO "+c.store.table+" (text, is_complete, is_deleted, created_at, updated_at, user_id)"+
					" VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+columns,
				t.Text, t.IsComplete, t.IsDeleted, t.CreatedAt, t.UpdatedAt, c.userID,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range tasks {
			row, err := scanTask(br.QueryRow())
			if err != nil {
				br.Close()
				return err
			}
			out = append(out, row)
		}
		return br.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert tasks: %w", err)
	}
	return out, nil
}

// UpdateTasks implements service.Service.
// Either every row is updated or none is.
func (c *Client) UpdateTasks(ctx context.Context, tasks []service.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	err := c.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, t := range tasks {
			batch.Queue(
				"UPDATE "+c.store.table+" SET text = $2, is_complete = $3, is_deleted = $4, updated_at = $5"+
					" WHERE id = $1 AND user_id = $6",
				t.ID, t.Text, t.IsComplete, t.IsDeleted, t.UpdatedAt, c.userID,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for _, t := range tasks {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return err
			}
			if tag.RowsAffected() == 0 {
				br.Close()
				return fmt.Errorf("task %d not found", t.ID)
			}
		}
		return br.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to update tasks: %w", err)
	}
	return nil
}

func scanTask(row pgx.Row) (service.Task, error) {
	var t service.Task
	if err := row.Scan(&t.ID, &t.Text, &t.IsComplete, &t.IsDeleted, &t.CreatedAt, &t.UpdatedAt, &t.UserID); err != nil {
		return service.Task{}, err
	}
	t.CreatedAt = service.Timestamp(t.CreatedAt)
	t.UpdatedAt = service.Timestamp(t.UpdatedAt)
	return t, nil
}
