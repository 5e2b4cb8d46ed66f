package orders

import (
	"context"
	"fmt"

	"marquee/internal/orders/txn"
	"marquee/internal/settlement"
)

// AuthorizeAccount withdraws points from the buyer's account as a pending
// points transaction.
func (s *Service) AuthorizeAccount(ctx context.Context, agentID, transactionID string, req txn.AccountObject) (txn.AuthorizeAction, error) {
	t, err := s.inProgress(ctx, agentID, transactionID)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	switch {
	case req.AccountNumber == "":
		return txn.AuthorizeAction{}, fmt.Errorf("%w: account number", txn.ErrArgumentNull)
	case req.Amount <= 0:
		return txn.AuthorizeAction{}, fmt.Errorf("%w: points amount must be > 0", txn.ErrArgument)
	}
	if req.Notes == "" {
		req.Notes = "place order " + transactionID
	}

	action, err := s.ledger.Start(ctx, t.Agent, t.Seller, txn.ActionObject{
		TypeOf:        txn.ObjectAccount,
		TransactionID: transactionID,
		Account:       &req,
	})
	if err != nil {
		return txn.AuthorizeAction{}, err
	}

	pointsTxID, err := s.adapters.Points.Withdraw(ctx, req.AccountNumber, req.Amount, req.Notes)
	if err != nil {
		return txn.AuthorizeAction{}, s.giveUp(ctx, action, settlement.ClassifyAccountError(err))
	}

	return s.ledger.Complete(ctx, action.ID, txn.ActionResult{
		Price:   req.Amount,
		Account: &txn.AccountResult{PointsTransactionID: pointsTxID},
	})
}

// CancelAccountAuthorization cancels the action and the pending withdrawal.
func (s *Service) CancelAccountAuthorization(ctx context.Context, agentID, transactionID, actionID string) (txn.AuthorizeAction, error) {
	if _, err := s.inProgress(ctx, agentID, transactionID); err != nil {
		return txn.AuthorizeAction{}, err
	}
	if err := s.ensureAction(ctx, transactionID, actionID, txn.ObjectAccount); err != nil {
		return txn.AuthorizeAction{}, err
	}
	action, err := s.ledger.Cancel(ctx, actionID, transactionID)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	if res := action.CanceledResult; res != nil && res.Account != nil {
		s.compensate(action, func() error {
			return settlement.ClassifyAccountError(s.adapters.Points.Cancel(ctx, res.Account.PointsTransactionID))
		})
	}
	return action, nil
}
