package orders

import (
	"context"
	"fmt"
	"slices"

	"marquee/internal/orders/txn"
)

type voucherTicket struct {
	number   string
	typeCode string
}

// AuthorizeMvtk records discount vouchers against the completed seat
// reservation. The vouchers are reconciled locally and redeemed later by the
// SettleDiscountTicket task, so no external call is made here.
func (s *Service) AuthorizeMvtk(ctx context.Context, agentID, transactionID string, req txn.MvtkObject) (txn.AuthorizeAction, error) {
	t, err := s.inProgress(ctx, agentID, transactionID)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	if len(req.Vouchers) == 0 {
		return txn.AuthorizeAction{}, fmt.Errorf("%w: mvtk vouchers", txn.ErrArgumentNull)
	}

	actions, err := s.ledger.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	var seat *txn.AuthorizeAction
	for i := range actions {
		a := actions[i]
		switch {
		case a.Object.TypeOf == txn.ObjectMvtk && (a.ActionStatus == txn.ActionActive || a.ActionStatus == txn.ActionCompleted):
			return txn.AuthorizeAction{}, fmt.Errorf("%w: mvtk already authorized by action %s", txn.ErrArgument, a.ID)
		case a.Object.TypeOf == txn.ObjectSeatReservation && a.ActionStatus == txn.ActionCompleted:
			seat = &a
		}
	}
	if seat == nil {
		return txn.AuthorizeAction{}, fmt.Errorf("%w: mvtk requires a completed seat reservation", txn.ErrArgument)
	}
	if err := ReconcileMvtk(*seat.Object.SeatReservation, req); err != nil {
		return txn.AuthorizeAction{}, err
	}
	req.SeatActionID = seat.ID

	action, err := s.ledger.Start(ctx, t.Agent, t.Seller, txn.ActionObject{
		TypeOf:        txn.ObjectMvtk,
		TransactionID: transactionID,
		Mvtk:          &req,
	})
	if err != nil {
		return txn.AuthorizeAction{}, err
	}
	numbers := make([]string, 0, len(req.Vouchers))
	for _, v := range req.Vouchers {
		numbers = append(numbers, v.Number)
	}
	return s.ledger.Complete(ctx, action.ID, txn.ActionResult{
		Price: req.Price,
		Mvtk:  &txn.MvtkResult{VoucherNumbers: numbers},
	})
}

// ReconcileMvtk checks a voucher redemption against the seat reservation:
// ticket counts per voucher and type, screening codes, seats and price must
// all match the offers that carry a voucher number.
func ReconcileMvtk(seat txn.SeatReservationObject, req txn.MvtkObject) error {
	want := make(map[voucherTicket]int)
	var seats []string
	var price int64
	for _, offer := range seat.Offers {
		if offer.MvtkNumber == "" {
			continue
		}
		want[voucherTicket{number: offer.MvtkNumber, typeCode: offer.MvtkTicketType}]++
		seats = append(seats, offer.SeatNumber)
		price += offer.MvtkAppPrice
	}

	got := make(map[voucherTicket]int)
	for _, v := range req.Vouchers {
		if v.Number == "" {
			return fmt.Errorf("%w: voucher number", txn.ErrArgumentNull)
		}
		if len(v.Tickets) == 0 {
			return fmt.Errorf("%w: voucher %s has no tickets", txn.ErrArgument, v.Number)
		}
		for _, ticket := range v.Tickets {
			if ticket.Count <= 0 {
				return fmt.Errorf("%w: voucher %s ticket count must be > 0", txn.ErrArgument, v.Number)
			}
			got[voucherTicket{number: v.Number, typeCode: ticket.TypeCode}] += ticket.Count
		}
	}
	if len(got) != len(want) {
		return fmt.Errorf("%w: mvtk ticket counts do not match the seat reservation", txn.ErrArgument)
	}
	for key, n := range want {
		if got[key] != n {
			return fmt.Errorf("%w: voucher %s type %s has %d tickets, seats need %d", txn.ErrArgument, key.number, key.typeCode, got[key], n)
		}
	}

	sc := seat.Screening
	switch {
	case req.SiteCode != siteCode(sc.TheaterCode):
		return fmt.Errorf("%w: mvtk site code %q does not match theater %q", txn.ErrArgument, req.SiteCode, sc.TheaterCode)
	case req.TitleCode != sc.TitleCode+sc.TitleBranch:
		return fmt.Errorf("%w: mvtk title code %q does not match screening", txn.ErrArgument, req.TitleCode)
	case req.ScreeningDate != sc.DateCode:
		return fmt.Errorf("%w: mvtk screening date %q does not match screening", txn.ErrArgument, req.ScreeningDate)
	case req.ScreeningTime != sc.TimeBegin:
		return fmt.Errorf("%w: mvtk screening time %q does not match screening", txn.ErrArgument, req.ScreeningTime)
	case req.ScreenCode != sc.ScreenCode:
		return fmt.Errorf("%w: mvtk screen code %q does not match screening", txn.ErrArgument, req.ScreenCode)
	}

	requested := slices.Clone(req.SeatNumbers)
	slices.Sort(requested)
	slices.Sort(seats)
	if !slices.Equal(requested, seats) {
		return fmt.Errorf("%w: mvtk seats %v do not match reserved seats %v", txn.ErrArgument, req.SeatNumbers, seats)
	}
	if req.Price != price {
		return fmt.Errorf("%w: mvtk price %d does not match seat offers %d", txn.ErrArgument, req.Price, price)
	}
	return nil
}

// siteCode is the discount service's two-digit theater code.
func siteCode(theaterCode string) string {
	if len(theaterCode) <= 2 {
		return theaterCode
	}
	return theaterCode[len(theaterCode)-2:]
}

// CancelMvtkAuthorization cancels the action. Vouchers are only redeemed at
// settlement, so there is nothing to compensate.
func (s *Service) CancelMvtkAuthorization(ctx context.Context, agentID, transactionID, actionID string) (txn.AuthorizeAction, error) {
	if _, err := s.inProgress(ctx, agentID, transactionID); err != nil {
		return txn.AuthorizeAction{}, err
	}
	if err := s.ensureAction(ctx, transactionID, actionID, txn.ObjectMvtk); err != nil {
		return txn.AuthorizeAction{}, err
	}
	return s.ledger.Cancel(ctx, actionID, transactionID)
}

// cancelVouchersOf cancels the mvtk actions reconciled against seatActionID.
// A voucher never outlives the seats it was checked against.
func (s *Service) cancelVouchersOf(ctx context.Context, transactionID, seatActionID string) error {
	actions, err := s.ledger.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return err
	}
	for _, a := range actions {
		if a.Object.TypeOf != txn.ObjectMvtk || a.Object.Mvtk.SeatActionID != seatActionID {
			continue
		}
		if a.ActionStatus != txn.ActionActive && a.ActionStatus != txn.ActionCompleted {
			continue
		}
		if _, err := s.ledger.Cancel(ctx, a.ID, transactionID); err != nil {
			return err
		}
		s.logger.Info("mvtk authorization canceled with its seats",
			"transaction_id", transactionID,
			"action_id", a.ID,
			"seat_action_id", seatActionID,
		)
	}
	return nil
}

// checkVouchers reconciles every completed mvtk action against the seat
// action being confirmed.
func checkVouchers(seat txn.AuthorizeAction, completed []txn.AuthorizeAction) error {
	vouchers := 0
	for _, a := range completed {
		if a.Object.TypeOf != txn.ObjectMvtk {
			continue
		}
		vouchers++
		if vouchers > 1 {
			return fmt.Errorf("%w: more than one mvtk authorization", txn.ErrArgument)
		}
		if a.Object.Mvtk.SeatActionID != seat.ID {
			return fmt.Errorf("%w: mvtk action %s was not authorized for seat action %s", txn.ErrArgument, a.ID, seat.ID)
		}
		if err := ReconcileMvtk(*seat.Object.SeatReservation, *a.Object.Mvtk); err != nil {
			return err
		}
	}
	return nil
}
