package orders

import (
	"context"
	"fmt"
	"time"

	"marquee/internal/orders/txn"
)

// StartParams describes a new place-order transaction. ScopeKey and
// MaxCountPerUnit drive admission control; PassportToken, when set, may be
// used by one transaction only.
type StartParams struct {
	Expires         time.Time
	ScopeKey        string
	MaxCountPerUnit int64
	Agent           txn.Party
	Seller          txn.Party
	PassportToken   string
	ClientID        string
}

// Start admits and creates an InProgress transaction.
func (s *Service) Start(ctx context.Context, p StartParams) (txn.Transaction, error) {
	now := s.now()
	switch {
	case p.Agent.ID == "":
		return txn.Transaction{}, fmt.Errorf("%w: agent id", txn.ErrArgumentNull)
	case p.Seller.ID == "":
		return txn.Transaction{}, fmt.Errorf("%w: seller id", txn.ErrArgumentNull)
	case !p.Expires.After(now):
		return txn.Transaction{}, fmt.Errorf("%w: expires must be in the future", txn.ErrArgument)
	}

	if s.gate != nil {
		if _, err := s.gate.Admit(ctx, p.ScopeKey, p.MaxCountPerUnit); err != nil {
			return txn.Transaction{}, err
		}
	}

	agent := p.Agent
	if agent.TypeOf == "" {
		agent.TypeOf = txn.PartyPerson
	}
	seller := p.Seller
	if seller.TypeOf == "" {
		seller.TypeOf = txn.PartyMovieTheater
	}
	t := txn.Transaction{
		ID:     s.newID(),
		TypeOf: txn.TransactionType,
		Status: txn.TransactionInProgress,
		Agent:  agent,
		Seller: seller,
		Object: txn.TransactionObject{
			PassportToken: p.PassportToken,
			ClientID:      p.ClientID,
		},
		Expires:                p.Expires,
		StartDate:              now,
		TasksExportationStatus: txn.ExportUnexported,
	}
	if err := s.transactions.Create(ctx, t); err != nil {
		return txn.Transaction{}, err
	}
	s.recorder.RecordTransition(txn.TransactionInProgress, 1)
	s.logger.Info("transaction started", "transaction_id", t.ID, "seller_id", seller.ID, "expires", t.Expires)
	return t, nil
}
