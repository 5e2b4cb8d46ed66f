package orders

import (
	"context"
	"fmt"
	"strings"

	"marquee/internal/orders/txn"
	"marquee/internal/settlement"
)

// CreditCardRequest authorizes amount on a card. Card details are forwarded
// to the gateway and only a masked number is recorded.
type CreditCardRequest struct {
	OrderID string
	Amount  int64
	Card    settlement.CardDetails
}

// AuthorizeCreditCard registers and authorizes a card trade for the seller.
func (s *Service) AuthorizeCreditCard(ctx context.Context, agentID, transactionID string, req CreditCardRequest) (txn.AuthorizeAction, error) {
	t, err := s.inProgress(ctx, agentID, transactionID)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	switch {
	case req.OrderID == "":
		return txn.AuthorizeAction{}, fmt.Errorf("%w: card order id", txn.ErrArgumentNull)
	case req.Amount <= 0:
		return txn.AuthorizeAction{}, fmt.Errorf("%w: card amount must be > 0", txn.ErrArgument)
	}

	shop := s.adapters.Shop
	action, err := s.ledger.Start(ctx, t.Agent, t.Seller, txn.ActionObject{
		TypeOf:        txn.ObjectCreditCard,
		TransactionID: transactionID,
		CreditCard: &txn.CreditCardObject{
			OrderID:          req.OrderID,
			Amount:           req.Amount,
			Method:           req.Card.Method,
			ShopID:           shop.ShopID,
			MaskedCardNumber: maskCardNumber(req.Card.CardNo),
		},
	})
	if err != nil {
		return txn.AuthorizeAction{}, err
	}

	token, err := s.adapters.Cards.EntryTran(ctx, shop, req.OrderID, req.Amount)
	if err != nil {
		return txn.AuthorizeAction{}, s.giveUp(ctx, action, settlement.ClassifyCardError(err))
	}
	exec, err := s.adapters.Cards.ExecTran(ctx, token, req.OrderID, req.Card)
	if err != nil {
		return txn.AuthorizeAction{}, s.giveUp(ctx, action, settlement.ClassifyCardError(err))
	}

	return s.ledger.Complete(ctx, action.ID, txn.ActionResult{
		Price: req.Amount,
		CreditCard: &txn.CreditCardResult{
			AccessID:   token.AccessID,
			AccessPass: token.AccessPass,
			Approve:    exec.Approve,
			TranID:     exec.TranID,
		},
	})
}

// CancelCreditCardAuthorization cancels the action and voids the trade.
func (s *Service) CancelCreditCardAuthorization(ctx context.Context, agentID, transactionID, actionID string) (txn.AuthorizeAction, error) {
	if _, err := s.inProgress(ctx, agentID, transactionID); err != nil {
		return txn.AuthorizeAction{}, err
	}
	if err := s.ensureAction(ctx, transactionID, actionID, txn.ObjectCreditCard); err != nil {
		return txn.AuthorizeAction{}, err
	}
	action, err := s.ledger.Cancel(ctx, actionID, transactionID)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	if res := action.CanceledResult; res != nil && res.CreditCard != nil {
		token := settlement.AccessToken{AccessID: res.CreditCard.AccessID, AccessPass: res.CreditCard.AccessPass}
		s.compensate(action, func() error {
			return settlement.ClassifyCardError(s.adapters.Cards.AlterTran(ctx, s.adapters.Shop, token, settlement.JobVoid, 0))
		})
	}
	return action, nil
}

func maskCardNumber(cardNo string) string {
	cardNo = strings.ReplaceAll(cardNo, " ", "")
	if len(cardNo) <= 4 {
		return cardNo
	}
	return strings.Repeat("*", len(cardNo)-4) + cardNo[len(cardNo)-4:]
}
