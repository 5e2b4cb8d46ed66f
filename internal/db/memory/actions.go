package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"marquee/internal/orders/txn"
)

// ActionStore keeps authorize actions in memory.
type ActionStore struct {
	mu   sync.Mutex
	byID map[string]txn.AuthorizeAction
}

func NewActionStore() *ActionStore {
	return &ActionStore{byID: make(map[string]txn.AuthorizeAction)}
}

func (s *ActionStore) Insert(_ context.Context, a txn.AuthorizeAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; ok {
		return fmt.Errorf("%w: action %s", txn.ErrAlreadyInUse, a.ID)
	}
	if singleLive(a.Object.TypeOf) {
		for _, other := range s.byID {
			if other.TransactionID() == a.TransactionID() && other.Object.TypeOf == a.Object.TypeOf && live(other.ActionStatus) {
				return fmt.Errorf("%w: %s action %s is live for transaction %s", txn.ErrAlreadyInUse, a.Object.TypeOf, other.ID, a.TransactionID())
			}
		}
	}
	s.byID[a.ID] = a
	return nil
}

// singleLive reports whether a transaction may hold only one Active or
// Completed action of this type.
func singleLive(typeOf txn.ObjectType) bool {
	return typeOf == txn.ObjectSeatReservation || typeOf == txn.ObjectMvtk
}

func live(status txn.ActionStatus) bool {
	return status == txn.ActionActive || status == txn.ActionCompleted
}

func (s *ActionStore) Get(_ context.Context, id string) (txn.AuthorizeAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return txn.AuthorizeAction{}, fmt.Errorf("%w: action %s", txn.ErrNotFound, id)
	}
	return a, nil
}

func (s *ActionStore) Transition(_ context.Context, tr txn.ActionTransition) (txn.AuthorizeAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[tr.ID]
	if !ok || (tr.TransactionID != "" && a.TransactionID() != tr.TransactionID) || !slices.Contains(tr.From, a.ActionStatus) {
		return txn.AuthorizeAction{}, fmt.Errorf("%w: action %s in status %v", txn.ErrNotFound, tr.ID, tr.From)
	}
	end := tr.EndDate
	a.EndDate = &end
	a.Error = tr.Error
	switch tr.To {
	case txn.ActionCompleted:
		a.Result = tr.Result
	case txn.ActionCanceled:
		a.CanceledResult = a.Result
		a.Result = nil
	default:
		a.Result = nil
	}
	a.ActionStatus = tr.To
	s.byID[tr.ID] = a
	return a, nil
}

func (s *ActionStore) FindByTransactionID(_ context.Context, transactionID string) ([]txn.AuthorizeAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]txn.AuthorizeAction, 0)
	for _, a := range s.byID {
		if a.TransactionID() == transactionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}
