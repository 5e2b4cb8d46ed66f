package ordersdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marquee/internal/orders/txn"
)

// TransactionStore persists place-order transactions in Postgres. Nested
// parts of the aggregate live in JSONB columns; everything the state machine
// filters on is a plain column.
type TransactionStore struct {
	db *sql.DB
}

// NewTransactionStore constructs a TransactionStore backed by Postgres.
func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// NewTransactionStoreWithSchema initializes the schema then returns the store.
func NewTransactionStoreWithSchema(ctx context.Context, db *sql.DB) (*TransactionStore, error) {
	store := NewTransactionStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the transactions table if it does not exist.
func (s *TransactionStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			type_of TEXT NOT NULL,
			status TEXT NOT NULL,
			agent JSONB NOT NULL,
			seller JSONB NOT NULL,
			object JSONB NOT NULL,
			result JSONB,
			passport_token TEXT UNIQUE,
			expires TIMESTAMPTZ NOT NULL,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ,
			tasks_exportation_status TEXT NOT NULL,
			tasks_export_started_at TIMESTAMPTZ,
			tasks_exported_at TIMESTAMPTZ,
			tasks JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS transactions_status_expires_idx ON transactions (status, expires)`,
		`CREATE INDEX IF NOT EXISTS transactions_export_idx ON transactions (status, tasks_exportation_status, start_date)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

const transactionColumns = `id, type_of, status, agent, seller, object, result, expires, start_date, end_date,
	tasks_exportation_status, tasks_export_started_at, tasks_exported_at, tasks`

func scanTransaction(row rowScanner) (txn.Transaction, error) {
	var (
		t                                    txn.Transaction
		status, exportStatus                 string
		agent, seller, object, result, tasks []byte
		endDate, exportStartedAt, exportedAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.TypeOf, &status, &agent, &seller, &object, &result, &t.Expires, &t.StartDate, &endDate,
		&exportStatus, &exportStartedAt, &exportedAt, &tasks); err != nil {
		return txn.Transaction{}, err
	}
	t.Status = txn.TransactionStatus(status)
	t.TasksExportationStatus = txn.ExportationStatus(exportStatus)
	t.EndDate = nullTime(endDate)
	t.TasksExportStartedAt = nullTime(exportStartedAt)
	t.TasksExportedAt = nullTime(exportedAt)

	if err := decodeJSON(agent, &t.Agent); err != nil {
		return txn.Transaction{}, fmt.Errorf("decode agent: %w", err)
	}
	if err := decodeJSON(seller, &t.Seller); err != nil {
		return txn.Transaction{}, fmt.Errorf("decode seller: %w", err)
	}
	if err := decodeJSON(object, &t.Object); err != nil {
		return txn.Transaction{}, fmt.Errorf("decode object: %w", err)
	}
	if len(result) > 0 {
		t.Result = &txn.TransactionResult{}
		if err := decodeJSON(result, t.Result); err != nil {
			return txn.Transaction{}, fmt.Errorf("decode result: %w", err)
		}
	}
	if err := decodeJSON(tasks, &t.Tasks); err != nil {
		return txn.Transaction{}, fmt.Errorf("decode tasks: %w", err)
	}
	return t, nil
}

// Create inserts t. A reused passport token yields ErrAlreadyInUse.
func (s *TransactionStore) Create(ctx context.Context, t txn.Transaction) error {
	agent, err := jsonValue(t.Agent)
	if err != nil {
		return err
	}
	seller, err := jsonValue(t.Seller)
	if err != nil {
		return err
	}
	object, err := jsonValue(t.Object)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, type_of, status, agent, seller, object, passport_token, expires, start_date, tasks_exportation_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.TypeOf, t.Status, agent, seller, object, nullString(t.Object.PassportToken), t.Expires, t.StartDate, t.TasksExportationStatus,
	)
	return mapError(err, "transaction "+t.ID)
}

func (s *TransactionStore) Get(ctx context.Context, id string) (txn.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return txn.Transaction{}, mapError(err, "transaction "+id)
	}
	return t, nil
}

func (s *TransactionStore) SetCustomerContact(ctx context.Context, id string, contact txn.CustomerContact) error {
	value, err := jsonValue(contact)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET object = jsonb_set(object, '{customerContact}', $2::jsonb)
		WHERE id = $1 AND status = $3`,
		id, value, txn.TransactionInProgress,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, "in-progress transaction "+id)
}

// Confirm flips an InProgress transaction to Confirmed in a single
// conditional update.
func (s *TransactionStore) Confirm(ctx context.Context, id string, endDate time.Time, actions []txn.AuthorizeAction, result txn.TransactionResult) (txn.Transaction, error) {
	snapshot, err := jsonValue(actions)
	if err != nil {
		return txn.Transaction{}, err
	}
	value, err := jsonValue(result)
	if err != nil {
		return txn.Transaction{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE transactions
		SET status = $2, end_date = $3, object = jsonb_set(object, '{authorizeActions}', $4::jsonb), result = $5
		WHERE id = $1 AND status = $6
		RETURNING `+transactionColumns,
		id, txn.TransactionConfirmed, endDate, snapshot, value, txn.TransactionInProgress,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return txn.Transaction{}, mapError(err, "in-progress transaction "+id)
	}
	return t, nil
}

func (s *TransactionStore) MakeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, end_date = $2
		WHERE status = $3 AND expires < $2`,
		txn.TransactionExpired, now, txn.TransactionInProgress,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StartExport claims the oldest Unexported transaction in status. Concurrent
// exporters skip rows another exporter has locked.
func (s *TransactionStore) StartExport(ctx context.Context, status txn.TransactionStatus, now time.Time) (txn.Transaction, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE transactions
		SET tasks_exportation_status = $1, tasks_export_started_at = $2
		WHERE id = (
			SELECT id FROM transactions
			WHERE status = $3 AND tasks_exportation_status = $4
			ORDER BY start_date
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+transactionColumns,
		txn.ExportExporting, now, status, txn.ExportUnexported,
	)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return txn.Transaction{}, false, nil
	}
	if err != nil {
		return txn.Transaction{}, false, err
	}
	return t, true, nil
}

func (s *TransactionStore) ReexportStalled(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET tasks_exportation_status = $1, tasks_export_started_at = NULL
		WHERE tasks_exportation_status = $2 AND tasks_export_started_at < $3`,
		txn.ExportUnexported, txn.ExportExporting, olderThan,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TransactionStore) MarkExported(ctx context.Context, id string, taskIDs []string, at time.Time) error {
	tasks, err := jsonValue(taskIDs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET tasks_exportation_status = $2, tasks_exported_at = $3, tasks = $4
		WHERE id = $1 AND tasks_exportation_status = $5`,
		id, txn.ExportExported, at, tasks, txn.ExportExporting,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, "exporting transaction "+id)
}
