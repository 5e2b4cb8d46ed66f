package orders

import (
	"context"
	"fmt"
	"time"

	"marquee/internal/orders/txn"
)

// Sums returns the prices of completed actions attributed to the buyer and to
// the seller of t. Actions of any other agent count toward neither side.
func Sums(t txn.Transaction, completed []txn.AuthorizeAction) (buyer, seller int64) {
	for _, a := range completed {
		if a.ActionStatus != txn.ActionCompleted || a.Result == nil {
			continue
		}
		switch a.Agent.ID {
		case t.Agent.ID:
			buyer += a.Result.Price
		case t.Seller.ID:
			seller += a.Result.Price
		}
	}
	return buyer, seller
}

// CanBeClosed reports whether the buyer's payments balance the seller's
// goods and both are positive.
func CanBeClosed(t txn.Transaction, completed []txn.AuthorizeAction) bool {
	buyer, seller := Sums(t, completed)
	return buyer > 0 && buyer == seller
}

// Confirm closes an InProgress transaction: it checks the price balance of the
// completed actions, builds the order and ownership infos and flips the
// transaction to Confirmed. Losing the race against expiry or another confirm
// yields ErrNotFound.
func (s *Service) Confirm(ctx context.Context, agentID, transactionID string) (txn.TransactionResult, error) {
	t, err := s.inProgress(ctx, agentID, transactionID)
	if err != nil {
		return txn.TransactionResult{}, err
	}
	if t.Object.CustomerContact == nil {
		return txn.TransactionResult{}, fmt.Errorf("%w: customer contact not set", txn.ErrArgument)
	}

	now := s.now()
	actions, err := s.ledger.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return txn.TransactionResult{}, err
	}
	completed := make([]txn.AuthorizeAction, 0, len(actions))
	for _, a := range actions {
		// Actions finishing concurrently with this call are left out.
		if a.ActionStatus == txn.ActionCompleted && a.EndDate != nil && a.EndDate.Before(now) {
			completed = append(completed, a)
		}
	}

	if !CanBeClosed(t, completed) {
		buyer, seller := Sums(t, completed)
		return txn.TransactionResult{}, fmt.Errorf("%w: prices not matched (buyer %d, seller %d)", txn.ErrArgument, buyer, seller)
	}

	result, err := BuildResult(t, completed, now)
	if err != nil {
		return txn.TransactionResult{}, err
	}

	if _, err := s.transactions.Confirm(ctx, transactionID, now, completed, result); err != nil {
		return txn.TransactionResult{}, err
	}
	s.recorder.RecordTransition(txn.TransactionConfirmed, 1)
	s.logger.Info("transaction confirmed",
		"transaction_id", transactionID,
		"order_number", result.Order.OrderNumber,
		"price", result.Order.Price,
	)
	return result, nil
}

// BuildResult derives the order and ownership infos from the completed
// actions. Exactly one seat reservation must be among them.
func BuildResult(t txn.Transaction, completed []txn.AuthorizeAction, now time.Time) (txn.TransactionResult, error) {
	var seats []txn.AuthorizeAction
	for _, a := range completed {
		if a.Object.TypeOf == txn.ObjectSeatReservation {
			seats = append(seats, a)
		}
	}
	if len(seats) != 1 {
		return txn.TransactionResult{}, fmt.Errorf("%w: expected one seat reservation, found %d", txn.ErrArgument, len(seats))
	}
	seat := seats[0]
	if err := checkVouchers(seat, completed); err != nil {
		return txn.TransactionResult{}, err
	}
	reservation := seat.Object.SeatReservation
	holdToken := seat.Result.SeatReservation.HoldToken
	orderNumber := reservation.Screening.TheaterCode + "-" + holdToken

	order := txn.Order{
		OrderNumber:        orderNumber,
		ConfirmationNumber: holdToken,
		TransactionID:      t.ID,
		Seller:             t.Seller,
		Customer:           txn.Customer{Party: t.Agent},
		Price:              seat.Result.Price,
		PriceCurrency:      txn.PriceCurrencyJPY,
		OrderDate:          now,
		OrderStatus:        txn.OrderStatusDelivered,
	}
	if t.Object.CustomerContact != nil {
		order.Customer.Contact = *t.Object.CustomerContact
	}

	ownedThrough := now.AddDate(0, 1, 0)
	infos := make([]txn.OwnershipInfo, 0, len(reservation.Offers))
	for _, offer := range reservation.Offers {
		ticket := txn.ReservedTicket{
			TicketToken: fmt.Sprintf("%s:%s:%s", orderNumber, offer.SeatSection, offer.SeatNumber),
			Screening:   reservation.Screening,
			Seat:        offer,
		}
		order.AcceptedOffers = append(order.AcceptedOffers, txn.AcceptedOffer{
			ItemOffered:   ticket,
			Price:         offer.Price,
			PriceCurrency: txn.PriceCurrencyJPY,
			SellerID:      t.Seller.ID,
		})
		infos = append(infos, txn.OwnershipInfo{
			Identifier:   ticket.TicketToken,
			OwnedBy:      t.Agent,
			AcquiredFrom: t.Seller,
			OwnedFrom:    now,
			OwnedThrough: ownedThrough,
			TypeOfGood:   ticket,
		})
	}

	for _, a := range completed {
		switch a.Object.TypeOf {
		case txn.ObjectCreditCard:
			order.PaymentMethods = append(order.PaymentMethods, txn.PaymentMethod{
				Name:            "CreditCard",
				TypeOf:          txn.PaymentCreditCard,
				PaymentMethodID: a.Object.CreditCard.OrderID,
				Amount:          a.Result.Price,
			})
		case txn.ObjectAccount:
			order.PaymentMethods = append(order.PaymentMethods, txn.PaymentMethod{
				Name:            "Points",
				TypeOf:          txn.PaymentPoints,
				PaymentMethodID: a.Object.Account.AccountNumber,
				Amount:          a.Result.Price,
			})
		case txn.ObjectMvtk:
			for _, v := range a.Object.Mvtk.Vouchers {
				amount := voucherAmount(reservation.Offers, v.Number)
				order.PaymentMethods = append(order.PaymentMethods, txn.PaymentMethod{
					Name:            "Mvtk",
					TypeOf:          txn.PaymentMvtk,
					PaymentMethodID: v.Number,
					Amount:          amount,
				})
				order.DiscountCodes = append(order.DiscountCodes, txn.DiscountCode{
					Name:         "Mvtk",
					DiscountCode: v.Number,
					Amount:       amount,
				})
			}
		}
	}

	return txn.TransactionResult{Order: order, OwnershipInfos: infos}, nil
}

func voucherAmount(offers []txn.SeatOffer, voucherNumber string) int64 {
	var amount int64
	for _, offer := range offers {
		if offer.MvtkNumber == voucherNumber {
			amount += offer.MvtkAppPrice
		}
	}
	return amount
}
