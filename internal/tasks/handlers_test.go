package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"marquee/internal/notify"
	"marquee/internal/orders/txn"
	"marquee/internal/settlement"
)

var settleNames = []txn.TaskName{
	txn.TaskSettleCreditCard,
	txn.TaskSettleSeatReservation,
	txn.TaskSettleDiscountTicket,
	txn.TaskSettleAccount,
	txn.TaskCreateOrder,
	txn.TaskSendEmailNotification,
}

var cancelNames = []txn.TaskName{
	txn.TaskCancelCreditCard,
	txn.TaskCancelSeatReservation,
	txn.TaskCancelDiscountTicket,
	txn.TaskCancelAccount,
}

func TestSettleTasks_ConfirmedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, seat, card := f.authorized(t)
	result, err := f.svc.Confirm(ctx, buyerID, tr.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	exported, ok, err := f.exporter.ExportOne(ctx, txn.TransactionConfirmed)
	if err != nil || !ok {
		t.Fatalf("ExportOne: ok=%v err=%v", ok, err)
	}
	f.drain(t, settleNames...)

	for _, id := range exported.Tasks {
		task := f.task(t, id)
		if task.Status != txn.TaskExecuted || task.NumberOfTried != 1 || len(task.ExecutionResults) != 1 {
			t.Fatalf("task %s not executed once: %+v", task.Name, task)
		}
	}

	if got := f.cards.Status(card.Object.CreditCard.OrderID); got != settlement.JobSales {
		t.Fatalf("expected card trade SALES, got %s", got)
	}
	if !f.seats.WasConfirmed(seat.Result.SeatReservation.HoldToken) {
		t.Fatalf("expected seat hold confirmed")
	}
	order, infos, err := f.orders.Get(ctx, result.Order.OrderNumber)
	if err != nil {
		t.Fatalf("orders.Get: %v", err)
	}
	if order.Price != 1800 || len(infos) != 1 {
		t.Fatalf("unexpected stored order: %+v %+v", order, infos)
	}

	sent := f.sender.Messages()
	if len(sent) != 1 || sent[0].Kind != notify.KindEmail || sent[0].Key != tr.ID || sent[0].To != "taro@example.com" {
		t.Fatalf("unexpected notifications: %+v", sent)
	}
	if f.recorder.Outcome("executed") != len(exported.Tasks) {
		t.Fatalf("expected %d executed outcomes, got %d", len(exported.Tasks), f.recorder.Outcome("executed"))
	}
}

// Settling twice leaves the external systems as they were after the first run.
func TestSettleTasks_RerunIsHarmless(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, _, card := f.authorized(t)
	result, err := f.svc.Confirm(ctx, buyerID, tr.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	handlers := f.handlers()
	data := txn.TaskData{TransactionID: tr.ID}

	for i := 0; i < 2; i++ {
		if err := handlers.SettleCreditCard(ctx, data); err != nil {
			t.Fatalf("SettleCreditCard run %d: %v", i, err)
		}
		if err := handlers.SettleSeatReservation(ctx, data); err != nil {
			t.Fatalf("SettleSeatReservation run %d: %v", i, err)
		}
		if err := handlers.CreateOrder(ctx, data); err != nil {
			t.Fatalf("CreateOrder run %d: %v", i, err)
		}
	}
	if got := f.cards.Status(card.Object.CreditCard.OrderID); got != settlement.JobSales {
		t.Fatalf("expected card trade SALES, got %s", got)
	}
	if _, _, err := f.orders.Get(ctx, result.Order.OrderNumber); err != nil {
		t.Fatalf("orders.Get: %v", err)
	}
}

func TestSettleCreditCard_VoidsCanceledAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, _, _ := f.authorized(t)

	// A second card whose void fails at cancel time stays in AUTH.
	extra, err := f.svc.AuthorizeCreditCard(ctx, buyerID, tr.ID, cardRequest("extra-"+tr.ID, 500))
	if err != nil {
		t.Fatalf("AuthorizeCreditCard: %v", err)
	}
	f.cards.AlterErr = errors.New("gateway down")
	if _, err := f.svc.CancelCreditCardAuthorization(ctx, buyerID, tr.ID, extra.ID); err != nil {
		t.Fatalf("CancelCreditCardAuthorization: %v", err)
	}
	f.cards.AlterErr = nil
	if got := f.cards.Status("extra-" + tr.ID); got != settlement.JobAuth {
		t.Fatalf("expected extra trade AUTH, got %s", got)
	}

	if _, err := f.svc.Confirm(ctx, buyerID, tr.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := f.handlers().SettleCreditCard(ctx, txn.TaskData{TransactionID: tr.ID}); err != nil {
		t.Fatalf("SettleCreditCard: %v", err)
	}
	if got := f.cards.Status("extra-" + tr.ID); got != settlement.JobVoid {
		t.Fatalf("expected extra trade VOID, got %s", got)
	}
	if got := f.cards.Status("order-" + tr.ID); got != settlement.JobSales {
		t.Fatalf("expected paying trade SALES, got %s", got)
	}
}

func TestSettleTasks_RejectUnconfirmedTransaction(t *testing.T) {
	f := newFixture(t)
	tr, _, _ := f.authorized(t)
	err := f.handlers().SettleSeatReservation(context.Background(), txn.TaskData{TransactionID: tr.ID})
	wantKind(t, err, txn.ErrArgument)

	err = f.handlers().CancelSeatReservation(context.Background(), txn.TaskData{TransactionID: tr.ID})
	wantKind(t, err, txn.ErrArgument)
}

func TestCancelTasks_ExpiredTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, seat, card := f.authorized(t)

	f.clock.Advance(time.Hour)
	n, err := f.svc.MakeExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("MakeExpired: n=%d err=%v", n, err)
	}

	exported, ok, err := f.exporter.ExportOne(ctx, txn.TransactionExpired)
	if err != nil || !ok {
		t.Fatalf("ExportOne: ok=%v err=%v", ok, err)
	}
	if exported.ID != tr.ID || len(exported.Tasks) != len(cancelNames) {
		t.Fatalf("unexpected export: %+v", exported)
	}
	f.drain(t, cancelNames...)

	for _, id := range exported.Tasks {
		if task := f.task(t, id); task.Status != txn.TaskExecuted {
			t.Fatalf("task %s not executed: %+v", task.Name, task)
		}
	}
	if !f.seats.WasReleased(seat.Result.SeatReservation.HoldToken) {
		t.Fatalf("expected seat hold released")
	}
	if got := f.cards.Status(card.Object.CreditCard.OrderID); got != settlement.JobVoid {
		t.Fatalf("expected card trade VOID, got %s", got)
	}

	// Running the cancel tasks again finds nothing left to undo.
	if err := f.handlers().CancelSeatReservation(ctx, txn.TaskData{TransactionID: tr.ID}); err != nil {
		t.Fatalf("CancelSeatReservation rerun: %v", err)
	}
	if err := f.handlers().CancelCreditCard(ctx, txn.TaskData{TransactionID: tr.ID}); err != nil {
		t.Fatalf("CancelCreditCard rerun: %v", err)
	}
}

func TestSendEmailNotification_RequiresMessage(t *testing.T) {
	f := newFixture(t)
	err := f.handlers().SendEmailNotification(context.Background(), txn.TaskData{TransactionID: "tx-1"})
	wantKind(t, err, txn.ErrArgumentNull)
}
