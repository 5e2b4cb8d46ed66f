package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"marquee/internal/orders/txn"
)

// TransactionStore keeps transactions in memory with the same conditional
// write semantics as the Postgres store.
type TransactionStore struct {
	mu        sync.Mutex
	byID      map[string]txn.Transaction
	passports map[string]string
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		byID:      make(map[string]txn.Transaction),
		passports: make(map[string]string),
	}
}

func (s *TransactionStore) Create(_ context.Context, t txn.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[t.ID]; ok {
		return fmt.Errorf("%w: transaction %s", txn.ErrAlreadyInUse, t.ID)
	}
	if token := t.Object.PassportToken; token != "" {
		if _, ok := s.passports[token]; ok {
			return fmt.Errorf("%w: passport token", txn.ErrAlreadyInUse)
		}
		s.passports[token] = t.ID
	}
	s.byID[t.ID] = t
	return nil
}

func (s *TransactionStore) Get(_ context.Context, id string) (txn.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return txn.Transaction{}, fmt.Errorf("%w: transaction %s", txn.ErrNotFound, id)
	}
	return t, nil
}

func (s *TransactionStore) SetCustomerContact(_ context.Context, id string, contact txn.CustomerContact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok || t.Status != txn.TransactionInProgress {
		return fmt.Errorf("%w: in-progress transaction %s", txn.ErrNotFound, id)
	}
	t.Object.CustomerContact = &contact
	s.byID[id] = t
	return nil
}

func (s *TransactionStore) Confirm(_ context.Context, id string, endDate time.Time, actions []txn.AuthorizeAction, result txn.TransactionResult) (txn.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok || t.Status != txn.TransactionInProgress {
		return txn.Transaction{}, fmt.Errorf("%w: in-progress transaction %s", txn.ErrNotFound, id)
	}
	t.Status = txn.TransactionConfirmed
	t.EndDate = &endDate
	t.Object.AuthorizeActions = actions
	t.Result = &result
	s.byID[id] = t
	return t, nil
}

func (s *TransactionStore) MakeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.byID {
		if t.Status != txn.TransactionInProgress || !t.Expires.Before(now) {
			continue
		}
		end := now
		t.Status = txn.TransactionExpired
		t.EndDate = &end
		s.byID[id] = t
		n++
	}
	return n, nil
}

func (s *TransactionStore) StartExport(_ context.Context, status txn.TransactionStatus, now time.Time) (txn.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Oldest first, matching the Postgres ORDER BY.
	candidates := make([]txn.Transaction, 0)
	for _, t := range s.byID {
		if t.Status == status && t.TasksExportationStatus == txn.ExportUnexported {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return txn.Transaction{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].StartDate.Before(candidates[j].StartDate)
	})
	t := candidates[0]
	started := now
	t.TasksExportationStatus = txn.ExportExporting
	t.TasksExportStartedAt = &started
	s.byID[t.ID] = t
	return t, true, nil
}

func (s *TransactionStore) ReexportStalled(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.byID {
		if t.TasksExportationStatus != txn.ExportExporting || t.TasksExportStartedAt == nil || !t.TasksExportStartedAt.Before(olderThan) {
			continue
		}
		t.TasksExportationStatus = txn.ExportUnexported
		t.TasksExportStartedAt = nil
		s.byID[id] = t
		n++
	}
	return n, nil
}

func (s *TransactionStore) MarkExported(_ context.Context, id string, taskIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok || t.TasksExportationStatus != txn.ExportExporting {
		return fmt.Errorf("%w: exporting transaction %s", txn.ErrNotFound, id)
	}
	exportedAt := at
	t.TasksExportationStatus = txn.ExportExported
	t.TasksExportedAt = &exportedAt
	t.Tasks = append([]string(nil), taskIDs...)
	s.byID[id] = t
	return nil
}
