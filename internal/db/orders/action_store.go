package ordersdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"marquee/internal/orders/txn"
)

// ActionStore persists the authorize-action ledger in Postgres.
type ActionStore struct {
	db *sql.DB
}

// NewActionStore constructs an ActionStore backed by Postgres.
func NewActionStore(db *sql.DB) *ActionStore {
	return &ActionStore{db: db}
}

// NewActionStoreWithSchema initializes the schema then returns the store.
func NewActionStoreWithSchema(ctx context.Context, db *sql.DB) (*ActionStore, error) {
	store := NewActionStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the authorize_actions table if it does not exist.
func (s *ActionStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS authorize_actions (
			id TEXT PRIMARY KEY,
			transaction_id TEXT NOT NULL,
			type_of TEXT NOT NULL,
			action_status TEXT NOT NULL,
			agent JSONB NOT NULL,
			recipient JSONB NOT NULL,
			object JSONB NOT NULL,
			result JSONB,
			canceled_result JSONB,
			error JSONB,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS authorize_actions_transaction_idx ON authorize_actions (transaction_id, start_date)`,
		// One live seat hold and one live voucher set per transaction.
		`CREATE UNIQUE INDEX IF NOT EXISTS authorize_actions_live_seat_idx ON authorize_actions (transaction_id)
			WHERE object->>'typeOf' = 'SeatReservation' AND action_status IN ('ActiveActionStatus', 'CompletedActionStatus')`,
		`CREATE UNIQUE INDEX IF NOT EXISTS authorize_actions_live_mvtk_idx ON authorize_actions (transaction_id)
			WHERE object->>'typeOf' = 'Mvtk' AND action_status IN ('ActiveActionStatus', 'CompletedActionStatus')`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

const actionColumns = `id, type_of, action_status, agent, recipient, object, result, canceled_result, error, start_date, end_date`

func scanAction(row rowScanner) (txn.AuthorizeAction, error) {
	var (
		a                                 txn.AuthorizeAction
		status                            string
		agent, recipient, object          []byte
		result, canceledResult, actionErr []byte
		endDate                           sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.TypeOf, &status, &agent, &recipient, &object, &result, &canceledResult, &actionErr, &a.StartDate, &endDate); err != nil {
		return txn.AuthorizeAction{}, err
	}
	a.ActionStatus = txn.ActionStatus(status)
	a.EndDate = nullTime(endDate)

	if err := decodeJSON(agent, &a.Agent); err != nil {
		return txn.AuthorizeAction{}, fmt.Errorf("decode agent: %w", err)
	}
	if err := decodeJSON(recipient, &a.Recipient); err != nil {
		return txn.AuthorizeAction{}, fmt.Errorf("decode recipient: %w", err)
	}
	if err := decodeJSON(object, &a.Object); err != nil {
		return txn.AuthorizeAction{}, fmt.Errorf("decode object: %w", err)
	}
	if len(result) > 0 {
		a.Result = &txn.ActionResult{}
		if err := decodeJSON(result, a.Result); err != nil {
			return txn.AuthorizeAction{}, fmt.Errorf("decode result: %w", err)
		}
	}
	if len(canceledResult) > 0 {
		a.CanceledResult = &txn.ActionResult{}
		if err := decodeJSON(canceledResult, a.CanceledResult); err != nil {
			return txn.AuthorizeAction{}, fmt.Errorf("decode canceled result: %w", err)
		}
	}
	if len(actionErr) > 0 {
		a.Error = &txn.ActionError{}
		if err := decodeJSON(actionErr, a.Error); err != nil {
			return txn.AuthorizeAction{}, fmt.Errorf("decode error: %w", err)
		}
	}
	return a, nil
}

func (s *ActionStore) Insert(ctx context.Context, a txn.AuthorizeAction) error {
	agent, err := jsonValue(a.Agent)
	if err != nil {
		return err
	}
	recipient, err := jsonValue(a.Recipient)
	if err != nil {
		return err
	}
	object, err := jsonValue(a.Object)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO authorize_actions (id, transaction_id, type_of, action_status, agent, recipient, object, start_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.TransactionID(), a.TypeOf, a.ActionStatus, agent, recipient, object, a.StartDate,
	)
	return mapError(err, "action "+a.ID)
}

func (s *ActionStore) Get(ctx context.Context, id string) (txn.AuthorizeAction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM authorize_actions WHERE id = $1`, id)
	a, err := scanAction(row)
	if err != nil {
		return txn.AuthorizeAction{}, mapError(err, "action "+id)
	}
	return a, nil
}

// Transition is a single conditional update. Canceling moves the current
// result into canceled_result; any other target replaces result.
func (s *ActionStore) Transition(ctx context.Context, tr txn.ActionTransition) (txn.AuthorizeAction, error) {
	var result *txn.ActionResult
	if tr.To == txn.ActionCompleted {
		result = tr.Result
	}
	resultValue, err := jsonValue(result)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	errValue, err := jsonValue(tr.Error)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	from := make([]string, 0, len(tr.From))
	for _, status := range tr.From {
		from = append(from, string(status))
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE authorize_actions
		SET action_status = $2,
			end_date = $3,
			error = $4,
			canceled_result = CASE WHEN $5 THEN result ELSE canceled_result END,
			result = $6
		WHERE id = $1
			AND action_status = ANY(string_to_array($7, ','))
			AND ($8 = '' OR transaction_id = $8)
		RETURNING `+actionColumns,
		tr.ID, tr.To, tr.EndDate, errValue, tr.To == txn.ActionCanceled, resultValue, strings.Join(from, ","), tr.TransactionID,
	)
	a, err := scanAction(row)
	if err != nil {
		return txn.AuthorizeAction{}, mapError(err, fmt.Sprintf("action %s in status %v", tr.ID, tr.From))
	}
	return a, nil
}

func (s *ActionStore) FindByTransactionID(ctx context.Context, transactionID string) ([]txn.AuthorizeAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+`
		FROM authorize_actions
		WHERE transaction_id = $1
		ORDER BY start_date, id`,
		transactionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]txn.AuthorizeAction, 0)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
