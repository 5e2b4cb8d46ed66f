package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"marquee/internal/notify"
	"marquee/internal/orders/txn"
	"marquee/internal/settlement"
)

// Handlers holds the settle and cancel handlers. Every handler is safe to
// run again after a partial failure: it re-reads the transaction and asks
// the external system for its current state before changing it.
type Handlers struct {
	transactions txn.TransactionStore
	actions      txn.ActionStore
	orders       txn.OrderStore
	adapters     settlement.Adapters
	sender       notify.Sender
	logger       *slog.Logger
	now          func() time.Time
}

func NewHandlers(transactions txn.TransactionStore, actions txn.ActionStore, orders txn.OrderStore, adapters settlement.Adapters, sender notify.Sender, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		transactions: transactions,
		actions:      actions,
		orders:       orders,
		adapters:     adapters,
		sender:       sender,
		logger:       logger,
		now:          time.Now,
	}
}

// Map returns a handler for every task name.
func (h *Handlers) Map() map[txn.TaskName]Handler {
	return map[txn.TaskName]Handler{
		txn.TaskSettleCreditCard:      h.SettleCreditCard,
		txn.TaskSettleSeatReservation: h.SettleSeatReservation,
		txn.TaskSettleDiscountTicket:  h.SettleDiscountTicket,
		txn.TaskSettleAccount:         h.SettleAccount,
		txn.TaskCreateOrder:           h.CreateOrder,
		txn.TaskSendEmailNotification: h.SendEmailNotification,
		txn.TaskCancelCreditCard:      h.CancelCreditCard,
		txn.TaskCancelSeatReservation: h.CancelSeatReservation,
		txn.TaskCancelDiscountTicket:  h.CancelDiscountTicket,
		txn.TaskCancelAccount:         h.CancelAccount,
	}
}

func (h *Handlers) transaction(ctx context.Context, id string, allowed ...txn.TransactionStatus) (txn.Transaction, error) {
	t, err := h.transactions.Get(ctx, id)
	if err != nil {
		return txn.Transaction{}, err
	}
	for _, status := range allowed {
		if t.Status == status {
			return t, nil
		}
	}
	return txn.Transaction{}, fmt.Errorf("%w: transaction %s is %s", txn.ErrArgument, id, t.Status)
}

func (h *Handlers) confirmed(ctx context.Context, id string) (txn.Transaction, error) {
	t, err := h.transaction(ctx, id, txn.TransactionConfirmed)
	if err != nil {
		return txn.Transaction{}, err
	}
	if t.Result == nil {
		return txn.Transaction{}, fmt.Errorf("%w: confirmed transaction %s has no result", txn.ErrArgument, id)
	}
	return t, nil
}

func completedOf(snapshot []txn.AuthorizeAction, typeOf txn.ObjectType) []txn.AuthorizeAction {
	var out []txn.AuthorizeAction
	for _, a := range snapshot {
		if a.Object.TypeOf == typeOf && a.Result != nil {
			out = append(out, a)
		}
	}
	return out
}

// authorizedResult is the result an action left at the vendor, whether or
// not it was later canceled locally.
func authorizedResult(a txn.AuthorizeAction) *txn.ActionResult {
	if a.Result != nil {
		return a.Result
	}
	return a.CanceledResult
}

// SettleCreditCard captures every card authorization the order was paid
// with and voids card authorizations that were canceled during checkout.
func (h *Handlers) SettleCreditCard(ctx context.Context, data txn.TaskData) error {
	t, err := h.confirmed(ctx, data.TransactionID)
	if err != nil {
		return err
	}
	for _, a := range completedOf(t.Object.AuthorizeActions, txn.ObjectCreditCard) {
		if err := h.alterIfNeeded(ctx, a, settlement.JobSales); err != nil {
			return err
		}
	}

	actions, err := h.actions.FindByTransactionID(ctx, t.ID)
	if err != nil {
		return err
	}
	for _, a := range actions {
		if a.Object.TypeOf != txn.ObjectCreditCard || a.ActionStatus != txn.ActionCanceled {
			continue
		}
		if err := h.alterIfNeeded(ctx, a, settlement.JobVoid); err != nil {
			return err
		}
	}
	return nil
}

// alterIfNeeded moves a trade still in AUTH to job. Trades already sold or
// voided are left alone.
func (h *Handlers) alterIfNeeded(ctx context.Context, a txn.AuthorizeAction, job settlement.JobCode) error {
	res := authorizedResult(a)
	if res == nil || res.CreditCard == nil || a.Object.CreditCard == nil {
		return nil
	}
	shop := h.adapters.Shop
	trade, err := h.adapters.Cards.SearchTrade(ctx, shop, a.Object.CreditCard.OrderID)
	if err != nil {
		return settlement.ClassifyCardError(err)
	}
	if trade.Status != settlement.JobAuth {
		h.logger.Info("card trade left unchanged", "order_id", trade.OrderID, "status", trade.Status, "wanted", job)
		return nil
	}
	token := settlement.AccessToken{AccessID: res.CreditCard.AccessID, AccessPass: res.CreditCard.AccessPass}
	if err := h.adapters.Cards.AlterTran(ctx, shop, token, job, a.Object.CreditCard.Amount); err != nil {
		return settlement.ClassifyCardError(err)
	}
	return nil
}

// SettleSeatReservation turns the seat hold into a sale.
func (h *Handlers) SettleSeatReservation(ctx context.Context, data txn.TaskData) error {
	t, err := h.confirmed(ctx, data.TransactionID)
	if err != nil {
		return err
	}
	contact := t.Result.Order.Customer.Contact
	for _, a := range completedOf(t.Object.AuthorizeActions, txn.ObjectSeatReservation) {
		buyer := settlement.BuyerInfo{
			Name:      contact.FamilyName + " " + contact.GivenName,
			Email:     contact.Email,
			Telephone: contact.Telephone,
			Price:     a.Result.Price,
		}
		number, err := h.adapters.Seats.Confirm(ctx, a.Result.SeatReservation.HoldToken, buyer)
		if err != nil {
			return settlement.ClassifySeatError(err)
		}
		h.logger.Info("seat reservation settled", "transaction_id", t.ID, "reservation_number", number)
	}
	return nil
}

// SettleDiscountTicket redeems the vouchers recorded at authorization.
func (h *Handlers) SettleDiscountTicket(ctx context.Context, data txn.TaskData) error {
	t, err := h.confirmed(ctx, data.TransactionID)
	if err != nil {
		return err
	}
	for _, a := range completedOf(t.Object.AuthorizeActions, txn.ObjectMvtk) {
		m := a.Object.Mvtk
		res, err := h.adapters.Discount.ValidateAndRedeem(ctx, settlement.RedeemRequest{
			Vouchers:      m.Vouchers,
			SiteCode:      m.SiteCode,
			TitleCode:     m.TitleCode,
			ScreeningDate: m.ScreeningDate,
			ScreeningTime: m.ScreeningTime,
			ScreenCode:    m.ScreenCode,
			SeatNumbers:   m.SeatNumbers,
			Telephone:     t.Result.Order.Customer.Contact.Telephone,
		})
		if err != nil {
			return settlement.ClassifyDiscountError(err)
		}
		h.logger.Info("discount tickets redeemed", "transaction_id", t.ID, "redemption_number", res.RedemptionNumber)
	}
	return nil
}

// SettleAccount confirms the pending points withdrawals.
func (h *Handlers) SettleAccount(ctx context.Context, data txn.TaskData) error {
	t, err := h.confirmed(ctx, data.TransactionID)
	if err != nil {
		return err
	}
	for _, a := range completedOf(t.Object.AuthorizeActions, txn.ObjectAccount) {
		if err := h.adapters.Points.Confirm(ctx, a.Result.Account.PointsTransactionID); err != nil {
			return settlement.ClassifyAccountError(err)
		}
	}
	return nil
}

// CreateOrder stores the order built at confirm time.
func (h *Handlers) CreateOrder(ctx context.Context, data txn.TaskData) error {
	t, err := h.confirmed(ctx, data.TransactionID)
	if err != nil {
		return err
	}
	return h.orders.Create(ctx, t.Result.Order, t.Result.OwnershipInfos)
}

func (h *Handlers) SendEmailNotification(ctx context.Context, data txn.TaskData) error {
	if data.Email == nil {
		return fmt.Errorf("%w: email message", txn.ErrArgumentNull)
	}
	return h.sender.Send(ctx, notify.Email(data.TransactionID, *data.Email, h.now()))
}

// cancelable returns the actions of a terminated transaction that may have
// left state at a vendor.
func (h *Handlers) cancelable(ctx context.Context, transactionID string, typeOf txn.ObjectType) ([]txn.AuthorizeAction, error) {
	if _, err := h.transaction(ctx, transactionID, txn.TransactionExpired, txn.TransactionCanceled); err != nil {
		return nil, err
	}
	actions, err := h.actions.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	var out []txn.AuthorizeAction
	for _, a := range actions {
		if a.Object.TypeOf == typeOf && authorizedResult(a) != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

// CancelCreditCard voids every card trade still authorized.
func (h *Handlers) CancelCreditCard(ctx context.Context, data txn.TaskData) error {
	actions, err := h.cancelable(ctx, data.TransactionID, txn.ObjectCreditCard)
	if err != nil {
		return err
	}
	for _, a := range actions {
		if err := h.alterIfNeeded(ctx, a, settlement.JobVoid); err != nil {
			return err
		}
	}
	return nil
}

// CancelSeatReservation releases every seat hold.
func (h *Handlers) CancelSeatReservation(ctx context.Context, data txn.TaskData) error {
	actions, err := h.cancelable(ctx, data.TransactionID, txn.ObjectSeatReservation)
	if err != nil {
		return err
	}
	for _, a := range actions {
		res := authorizedResult(a)
		if res.SeatReservation == nil {
			continue
		}
		if err := h.adapters.Seats.Release(ctx, res.SeatReservation.HoldToken); err != nil {
			// the vendor already dropped an expired hold
			var vendorErr *settlement.SeatVendorError
			if errors.As(err, &vendorErr) && vendorErr.StatusCode == http.StatusNotFound {
				continue
			}
			return settlement.ClassifySeatError(err)
		}
	}
	return nil
}

// CancelDiscountTicket has nothing to undo: vouchers are only redeemed when
// an order settles.
func (h *Handlers) CancelDiscountTicket(ctx context.Context, data txn.TaskData) error {
	actions, err := h.cancelable(ctx, data.TransactionID, txn.ObjectMvtk)
	if err != nil {
		return err
	}
	if len(actions) > 0 {
		h.logger.Info("discount authorizations dropped", "transaction_id", data.TransactionID, "count", len(actions))
	}
	return nil
}

// CancelAccount cancels every pending points withdrawal.
func (h *Handlers) CancelAccount(ctx context.Context, data txn.TaskData) error {
	actions, err := h.cancelable(ctx, data.TransactionID, txn.ObjectAccount)
	if err != nil {
		return err
	}
	for _, a := range actions {
		res := authorizedResult(a)
		if res.Account == nil {
			continue
		}
		if err := h.adapters.Points.Cancel(ctx, res.Account.PointsTransactionID); err != nil {
			return settlement.ClassifyAccountError(err)
		}
	}
	return nil
}
