package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marquee/internal/admission"
	"marquee/internal/orders/txn"
	"marquee/internal/settlement"

	"github.com/google/uuid"
)

// Recorder receives transaction status changes for metrics.
type Recorder interface {
	RecordTransition(status txn.TransactionStatus, n int64)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(txn.TransactionStatus, int64) {}

// Service is the place-order state machine. All transitions are conditional
// writes in the stores; the service holds no locks.
type Service struct {
	transactions txn.TransactionStore
	ledger       *Ledger
	gate         *admission.Gate
	adapters     settlement.Adapters
	logger       *slog.Logger
	recorder     Recorder
	now          func() time.Time
	newID        func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService constructs a Service. gate may be nil to disable admission control.
func NewService(transactions txn.TransactionStore, actions txn.ActionStore, gate *admission.Gate, adapters settlement.Adapters, opts ...Option) *Service {
	s := &Service{
		transactions: transactions,
		gate:         gate,
		adapters:     adapters,
		logger:       slog.Default(),
		recorder:     nopRecorder{},
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = NewLedger(actions, s.now, s.newID)
	return s
}

// Ledger exposes the authorize-action ledger.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// Transaction returns a transaction owned by agentID.
func (s *Service) Transaction(ctx context.Context, agentID, transactionID string) (txn.Transaction, error) {
	t, err := s.transactions.Get(ctx, transactionID)
	if err != nil {
		return txn.Transaction{}, err
	}
	if !t.OwnedBy(agentID) {
		return txn.Transaction{}, fmt.Errorf("%w: transaction %s", txn.ErrForbidden, transactionID)
	}
	return t, nil
}

// inProgress loads a transaction owned by agentID that is still InProgress.
// Ownership is checked first so a foreign agent learns nothing about status.
func (s *Service) inProgress(ctx context.Context, agentID, transactionID string) (txn.Transaction, error) {
	t, err := s.Transaction(ctx, agentID, transactionID)
	if err != nil {
		return txn.Transaction{}, err
	}
	if t.Status != txn.TransactionInProgress {
		return txn.Transaction{}, fmt.Errorf("%w: in-progress transaction %s", txn.ErrNotFound, transactionID)
	}
	return t, nil
}

// ensureAction checks that actionID is an action of transactionID with the
// given object type.
func (s *Service) ensureAction(ctx context.Context, transactionID, actionID string, typeOf txn.ObjectType) error {
	a, err := s.ledger.Get(ctx, actionID)
	if err != nil {
		return err
	}
	if a.TransactionID() != transactionID || a.Object.TypeOf != typeOf {
		return fmt.Errorf("%w: %s action %s", txn.ErrNotFound, typeOf, actionID)
	}
	return nil
}

// giveUp records the failure of an external call and returns the classified
// error for the caller.
func (s *Service) giveUp(ctx context.Context, action txn.AuthorizeAction, classified error) error {
	if _, err := s.ledger.GiveUp(ctx, action.ID, classified); err != nil {
		s.logger.Error("give up authorize action",
			"transaction_id", action.TransactionID(),
			"action_id", action.ID,
			"cause", classified,
			"err", err,
		)
	}
	return classified
}

// compensate runs a compensating external call. Failures are logged only:
// the local cancel stands and exported cancel tasks reconcile later.
func (s *Service) compensate(action txn.AuthorizeAction, fn func() error) {
	if err := fn(); err != nil {
		s.logger.Warn("compensating call failed",
			"transaction_id", action.TransactionID(),
			"action_id", action.ID,
			"object_type", action.Object.TypeOf,
			"kind", txn.Kind(err),
			"err", err,
		)
	}
}

// MakeExpired expires every InProgress transaction past its deadline.
func (s *Service) MakeExpired(ctx context.Context) (int64, error) {
	n, err := s.transactions.MakeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.recorder.RecordTransition(txn.TransactionExpired, n)
		s.logger.Info("transactions expired", "count", n)
	}
	return n, nil
}
