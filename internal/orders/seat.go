package orders

import (
	"context"
	"fmt"

	"marquee/internal/orders/txn"
	"marquee/internal/settlement"
)

// AuthorizeSeatReservation holds seats for the buyer. The seller is the agent
// of the resulting action and its price is the total of the offers.
func (s *Service) AuthorizeSeatReservation(ctx context.Context, agentID, transactionID string, req txn.SeatReservationObject) (txn.AuthorizeAction, error) {
	t, err := s.inProgress(ctx, agentID, transactionID)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	if len(req.Offers) == 0 {
		return txn.AuthorizeAction{}, fmt.Errorf("%w: seat offers", txn.ErrArgumentNull)
	}
	var price int64
	for _, offer := range req.Offers {
		if offer.SeatNumber == "" || offer.TicketCode == "" {
			return txn.AuthorizeAction{}, fmt.Errorf("%w: seat offer requires seatNumber and ticketCode", txn.ErrArgument)
		}
		if offer.Price < 0 || offer.MvtkAppPrice < 0 || offer.MvtkAppPrice > offer.Price {
			return txn.AuthorizeAction{}, fmt.Errorf("%w: invalid price for seat %s", txn.ErrArgument, offer.SeatNumber)
		}
		price += offer.Price
	}

	existing, err := s.ledger.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	for _, a := range existing {
		if a.Object.TypeOf == txn.ObjectSeatReservation && (a.ActionStatus == txn.ActionActive || a.ActionStatus == txn.ActionCompleted) {
			return txn.AuthorizeAction{}, fmt.Errorf("%w: seat reservation already authorized by action %s", txn.ErrArgument, a.ID)
		}
	}

	action, err := s.ledger.Start(ctx, t.Seller, t.Agent, txn.ActionObject{
		TypeOf:          txn.ObjectSeatReservation,
		TransactionID:   transactionID,
		SeatReservation: &req,
	})
	if err != nil {
		return txn.AuthorizeAction{}, err
	}

	holdToken, err := s.adapters.Seats.Hold(ctx, settlement.HoldRequest{Screening: req.Screening, Seats: req.Offers})
	if err != nil {
		return txn.AuthorizeAction{}, s.giveUp(ctx, action, settlement.ClassifySeatError(err))
	}

	return s.ledger.Complete(ctx, action.ID, txn.ActionResult{
		Price:           price,
		SeatReservation: &txn.SeatReservationResult{HoldToken: holdToken},
	})
}

// CancelSeatReservationAuthorization cancels the action and releases the hold.
func (s *Service) CancelSeatReservationAuthorization(ctx context.Context, agentID, transactionID, actionID string) (txn.AuthorizeAction, error) {
	if _, err := s.inProgress(ctx, agentID, transactionID); err != nil {
		return txn.AuthorizeAction{}, err
	}
	if err := s.ensureAction(ctx, transactionID, actionID, txn.ObjectSeatReservation); err != nil {
		return txn.AuthorizeAction{}, err
	}
	action, err := s.ledger.Cancel(ctx, actionID, transactionID)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	if err := s.cancelVouchersOf(ctx, transactionID, actionID); err != nil {
		// Confirm rejects vouchers whose seat action is gone.
		s.logger.Warn("cancel mvtk authorizations", "transaction_id", transactionID, "seat_action_id", actionID, "err", err)
	}
	if res := action.CanceledResult; res != nil && res.SeatReservation != nil {
		s.compensate(action, func() error {
			return settlement.ClassifySeatError(s.adapters.Seats.Release(ctx, res.SeatReservation.HoldToken))
		})
	}
	return action, nil
}
