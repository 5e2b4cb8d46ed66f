package ordersdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marquee/internal/orders/txn"
)

// TaskStore is the Postgres-backed task queue. A task is unique per
// (transaction_id, name) so a re-run export never duplicates work.
type TaskStore struct {
	db *sql.DB
}

// NewTaskStore constructs a TaskStore backed by Postgres.
func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

// NewTaskStoreWithSchema initializes the schema then returns the store.
func NewTaskStoreWithSchema(ctx context.Context, db *sql.DB) (*TaskStore, error) {
	store := NewTaskStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the tasks table if it does not exist.
func (s *TaskStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			transaction_id TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			runs_at TIMESTAMPTZ NOT NULL,
			last_tried_at TIMESTAMPTZ,
			number_of_tried INTEGER NOT NULL DEFAULT 0,
			max_number_of_try INTEGER NOT NULL,
			execution_results JSONB NOT NULL DEFAULT '[]'::jsonb,
			data JSONB NOT NULL,
			UNIQUE (transaction_id, name)
		)`,
		`CREATE INDEX IF NOT EXISTS tasks_claim_idx ON tasks (name, status, runs_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

const taskColumns = `id, name, status, runs_at, last_tried_at, number_of_tried, max_number_of_try, execution_results, data`

func scanTask(row rowScanner) (txn.Task, error) {
	var (
		t             txn.Task
		name, status  string
		lastTriedAt   sql.NullTime
		results, data []byte
	)
	if err := row.Scan(&t.ID, &name, &status, &t.RunsAt, &lastTriedAt, &t.NumberOfTried, &t.MaxNumberOfTry, &results, &data); err != nil {
		return txn.Task{}, err
	}
	t.Name = txn.TaskName(name)
	t.Status = txn.TaskStatus(status)
	t.LastTriedAt = nullTime(lastTriedAt)
	t.ExecutionResults = []txn.ExecutionResult{}
	if err := decodeJSON(results, &t.ExecutionResults); err != nil {
		return txn.Task{}, fmt.Errorf("decode execution results: %w", err)
	}
	decoded, err := txn.DecodeTaskData(t.Name, data)
	if err != nil {
		return txn.Task{}, err
	}
	t.Data = decoded
	return t, nil
}

// CreateMany inserts tasks in one transaction, keeping any task already
// stored for the same (transaction_id, name), and returns the stored rows.
func (s *TaskStore) CreateMany(ctx context.Context, tasks []txn.Task) ([]txn.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]txn.Task, 0, len(tasks))
	for _, t := range tasks {
		if err := t.Data.Validate(t.Name); err != nil {
			return nil, err
		}
		data, err := jsonValue(t.Data)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, transaction_id, name, status, runs_at, number_of_tried, max_number_of_try, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (transaction_id, name) DO NOTHING`,
			t.ID, t.Data.TransactionID, t.Name, t.Status, t.RunsAt, t.NumberOfTried, t.MaxNumberOfTry, data,
		); err != nil {
			return nil, err
		}

		row := tx.QueryRowContext(ctx, `
			SELECT `+taskColumns+`
			FROM tasks
			WHERE transaction_id = $1 AND name = $2`,
			t.Data.TransactionID, t.Name,
		)
		stored, err := scanTask(row)
		if err != nil {
			return nil, mapError(err, fmt.Sprintf("task %s of %s", t.Name, t.Data.TransactionID))
		}
		out = append(out, stored)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *TaskStore) Get(ctx context.Context, id string) (txn.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		return txn.Task{}, mapError(err, "task "+id)
	}
	return t, nil
}

// ClaimOne moves the earliest due Ready task of name to Running and counts
// the attempt. Rows locked by another worker are skipped.
func (s *TaskStore) ClaimOne(ctx context.Context, name txn.TaskName, now time.Time) (txn.Task, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET status = $1, last_tried_at = $2, number_of_tried = number_of_tried + 1
		WHERE id = (
			SELECT id FROM tasks
			WHERE name = $3 AND status = $4 AND runs_at <= $2 AND number_of_tried < max_number_of_try
			ORDER BY runs_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns,
		txn.TaskRunning, now, name, txn.TaskReady,
	)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return txn.Task{}, false, nil
	}
	if err != nil {
		return txn.Task{}, false, err
	}
	return t, true, nil
}

func (s *TaskStore) PushExecutionResult(ctx context.Context, id string, status txn.TaskStatus, res txn.ExecutionResult) error {
	entry, err := jsonValue([]txn.ExecutionResult{res})
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $2, execution_results = execution_results || $3::jsonb
		WHERE id = $1 AND status = $4`,
		id, status, entry, txn.TaskRunning,
	)
	if err != nil {
		return err
	}
	return requireAffected(result, "running task "+id)
}

func (s *TaskStore) RetryStalled(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1
		WHERE status = $2 AND last_tried_at < $3 AND number_of_tried < max_number_of_try`,
		txn.TaskReady, txn.TaskRunning, before,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TaskStore) AbortExhausted(ctx context.Context, before time.Time) ([]txn.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE tasks
		SET status = $1
		WHERE status = $2 AND last_tried_at < $3 AND number_of_tried >= max_number_of_try
		RETURNING `+taskColumns,
		txn.TaskAborted, txn.TaskRunning, before,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aborted []txn.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		aborted = append(aborted, t)
	}
	return aborted, rows.Err()
}
