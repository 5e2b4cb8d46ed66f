package orders

import (
	"context"
	"fmt"
	"time"

	"marquee/internal/orders/txn"
)

// Ledger records authorize actions. It never calls external systems: callers
// perform the external call between Start and Complete/GiveUp, using the
// object and result captured here to replay or compensate later.
type Ledger struct {
	store txn.ActionStore
	now   func() time.Time
	newID func() string
}

func NewLedger(store txn.ActionStore, now func() time.Time, newID func() string) *Ledger {
	return &Ledger{store: store, now: now, newID: newID}
}

// Start records a new Active action. The transaction is taken from
// object.TransactionID.
func (l *Ledger) Start(ctx context.Context, agent, recipient txn.Party, object txn.ActionObject) (txn.AuthorizeAction, error) {
	if object.TransactionID == "" {
		return txn.AuthorizeAction{}, fmt.Errorf("%w: action object transactionId", txn.ErrArgumentNull)
	}
	if err := object.Validate(); err != nil {
		return txn.AuthorizeAction{}, err
	}
	action := txn.AuthorizeAction{
		ID:           l.newID(),
		TypeOf:       txn.ActionType,
		ActionStatus: txn.ActionActive,
		Agent:        agent,
		Recipient:    recipient,
		Object:       object,
		StartDate:    l.now(),
	}
	if err := l.store.Insert(ctx, action); err != nil {
		return txn.AuthorizeAction{}, err
	}
	return action, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (txn.AuthorizeAction, error) {
	return l.store.Get(ctx, id)
}

// Complete moves an Active action to Completed with result.
func (l *Ledger) Complete(ctx context.Context, id string, result txn.ActionResult) (txn.AuthorizeAction, error) {
	current, err := l.store.Get(ctx, id)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	if err := result.Validate(current.Object.TypeOf); err != nil {
		return txn.AuthorizeAction{}, err
	}
	return l.store.Transition(ctx, txn.ActionTransition{
		ID:      id,
		From:    []txn.ActionStatus{txn.ActionActive},
		To:      txn.ActionCompleted,
		EndDate: l.now(),
		Result:  &result,
	})
}

// GiveUp moves an Active action to Failed, keeping cause for diagnostics.
func (l *Ledger) GiveUp(ctx context.Context, id string, cause error) (txn.AuthorizeAction, error) {
	return l.store.Transition(ctx, txn.ActionTransition{
		ID:      id,
		From:    []txn.ActionStatus{txn.ActionActive},
		To:      txn.ActionFailed,
		EndDate: l.now(),
		Error:   txn.NewActionError(cause),
	})
}

// Cancel moves an Active or Completed action of transactionID to Canceled.
// The returned action carries the prior result in CanceledResult.
func (l *Ledger) Cancel(ctx context.Context, id, transactionID string) (txn.AuthorizeAction, error) {
	return l.store.Transition(ctx, txn.ActionTransition{
		ID:            id,
		TransactionID: transactionID,
		From:          []txn.ActionStatus{txn.ActionActive, txn.ActionCompleted},
		To:            txn.ActionCanceled,
		EndDate:       l.now(),
	})
}

func (l *Ledger) FindByTransactionID(ctx context.Context, transactionID string) ([]txn.AuthorizeAction, error) {
	return l.store.FindByTransactionID(ctx, transactionID)
}
