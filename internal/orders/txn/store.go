package txn

import (
	"context"
	"time"
)

// TransactionStore persists Transaction roots. Every state-changing method is
// a conditional write on the expected prior status and returns ErrNotFound
// when the condition no longer holds.
type TransactionStore interface {
	// Create inserts a new InProgress transaction. A reused passport token
	// yields ErrAlreadyInUse.
	Create(ctx context.Context, t Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)
	SetCustomerContact(ctx context.Context, id string, contact CustomerContact) error
	// Confirm flips InProgress to Confirmed, attaching the completed action
	// snapshot and the result.
	Confirm(ctx context.Context, id string, endDate time.Time, actions []AuthorizeAction, result TransactionResult) (Transaction, error)
	// MakeExpired flips every InProgress transaction whose expires < now.
	MakeExpired(ctx context.Context, now time.Time) (int64, error)
	// StartExport claims one Unexported transaction in status and marks it
	// Exporting. ok is false when nothing is waiting.
	StartExport(ctx context.Context, status TransactionStatus, now time.Time) (t Transaction, ok bool, err error)
	// ReexportStalled resets Exporting transactions whose export started
	// before olderThan.
	ReexportStalled(ctx context.Context, olderThan time.Time) (int64, error)
	MarkExported(ctx context.Context, id string, taskIDs []string, at time.Time) error
}

// ActionStore is the persistence behind the authorize-action ledger.
type ActionStore interface {
	Insert(ctx context.Context, a AuthorizeAction) error
	Get(ctx context.Context, id string) (AuthorizeAction, error)
	// Transition applies tr only if the action belongs to tr.TransactionID
	// (when set) and its current status is in tr.From.
	Transition(ctx context.Context, tr ActionTransition) (AuthorizeAction, error)
	FindByTransactionID(ctx context.Context, transactionID string) ([]AuthorizeAction, error)
}

// TaskStore is the durable task queue.
type TaskStore interface {
	// CreateMany inserts tasks, skipping any (transactionId, name) pair that
	// already exists, and returns the stored set for the given tasks.
	CreateMany(ctx context.Context, tasks []Task) ([]Task, error)
	Get(ctx context.Context, id string) (Task, error)
	// ClaimOne moves one due Ready task of the name to Running. ok is false
	// when none is available.
	ClaimOne(ctx context.Context, name TaskName, now time.Time) (t Task, ok bool, err error)
	// PushExecutionResult appends res to a Running task and sets status.
	PushExecutionResult(ctx context.Context, id string, status TaskStatus, res ExecutionResult) error
	// RetryStalled resets Running tasks tried before the cutoff that still
	// have retries left.
	RetryStalled(ctx context.Context, before time.Time) (int64, error)
	// AbortExhausted aborts Running tasks tried before the cutoff whose
	// retries are used up, returning them.
	AbortExhausted(ctx context.Context, before time.Time) ([]Task, error)
}

// OrderStore persists the orders produced by confirmed transactions.
type OrderStore interface {
	// Create stores the order and its ownership infos. Storing the same order
	// number again is a no-op.
	Create(ctx context.Context, order Order, infos []OwnershipInfo) error
	Get(ctx context.Context, orderNumber string) (Order, []OwnershipInfo, error)
}
