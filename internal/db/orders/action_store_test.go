package ordersdb

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"marquee/internal/orders/txn"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var actionColumnNames = []string{
	"id", "type_of", "action_status", "agent", "recipient", "object", "result", "canceled_result", "error", "start_date", "end_date",
}

const cardObjectJSON = `{"typeOf":"CreditCard","transactionId":"tx-1","creditCard":{"orderId":"order-1","amount":1000,"method":"1","shopId":"shop"}}`

func actionRow(id string, status txn.ActionStatus, result, canceled any, end any) []driver.Value {
	return []driver.Value{
		id, txn.ActionType, string(status),
		`{"id":"person-1","typeOf":"Person"}`,
		`{"id":"theater-118","typeOf":"MovieTheater"}`,
		cardObjectJSON, result, canceled, nil, testStart, end,
	}
}

func TestActionStore_InitSchema(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS authorize_actions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS authorize_actions_transaction_idx").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS authorize_actions_live_seat_idx").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS authorize_actions_live_mvtk_idx").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	if _, err := NewActionStoreWithSchema(context.Background(), db); err != nil {
		t.Fatalf("WithSchema: %v", err)
	}
}

func TestActionStore_Insert(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("INSERT INTO authorize_actions").
		WithArgs("act-1", "tx-1", txn.ActionType, "ActiveActionStatus", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), testStart).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	store := NewActionStore(db)
	err := store.Insert(context.Background(), txn.AuthorizeAction{
		ID:           "act-1",
		TypeOf:       txn.ActionType,
		ActionStatus: txn.ActionActive,
		Agent:        txn.Party{ID: "person-1"},
		Recipient:    txn.Party{ID: "theater-118"},
		Object: txn.ActionObject{
			TypeOf:        txn.ObjectCreditCard,
			TransactionID: "tx-1",
			CreditCard:    &txn.CreditCardObject{OrderID: "order-1", Amount: 1000},
		},
		StartDate: testStart,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func TestActionStore_Insert_SecondLiveSeatHold(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("INSERT INTO authorize_actions").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "authorize_actions_live_seat_idx"})
	mock.ExpectClose()

	store := NewActionStore(db)
	err := store.Insert(context.Background(), txn.AuthorizeAction{
		ID:           "act-2",
		TypeOf:       txn.ActionType,
		ActionStatus: txn.ActionActive,
		Object: txn.ActionObject{
			TypeOf:          txn.ObjectSeatReservation,
			TransactionID:   "tx-1",
			SeatReservation: &txn.SeatReservationObject{},
		},
		StartDate: testStart,
	})
	if !errors.Is(err, txn.ErrAlreadyInUse) {
		t.Fatalf("expected already in use, got %v", err)
	}
}

func TestActionStore_Get_NotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectQuery("FROM authorize_actions WHERE id =").
		WithArgs("act-404").
		WillReturnRows(sqlmock.NewRows(actionColumnNames))
	mock.ExpectClose()

	store := NewActionStore(db)
	if _, err := store.Get(context.Background(), "act-404"); !errors.Is(err, txn.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActionStore_Transition_Complete(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	end := testStart.Add(time.Second)
	result := `{"price":1000,"creditCard":{"accessId":"a","accessPass":"p","approve":"ok","tranId":"t"}}`
	mock.ExpectQuery("UPDATE authorize_actions SET action_status = ").
		WithArgs("act-1", "CompletedActionStatus", end, nil, false, sqlmock.AnyArg(), "ActiveActionStatus", "").
		WillReturnRows(sqlmock.NewRows(actionColumnNames).
			AddRow(actionRow("act-1", txn.ActionCompleted, result, nil, end)...))
	mock.ExpectClose()

	store := NewActionStore(db)
	got, err := store.Transition(context.Background(), txn.ActionTransition{
		ID:      "act-1",
		From:    []txn.ActionStatus{txn.ActionActive},
		To:      txn.ActionCompleted,
		EndDate: end,
		Result:  &txn.ActionResult{Price: 1000, CreditCard: &txn.CreditCardResult{AccessID: "a", AccessPass: "p"}},
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.ActionStatus != txn.ActionCompleted || got.Result == nil || got.Result.CreditCard.TranID != "t" {
		t.Fatalf("unexpected action: %+v", got)
	}
	if got.EndDate == nil || !got.EndDate.Equal(end) {
		t.Fatalf("expected end date %v, got %v", end, got.EndDate)
	}
}

func TestActionStore_Transition_CancelKeepsResult(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	end := testStart.Add(time.Minute)
	canceled := `{"price":1000,"creditCard":{"accessId":"a","accessPass":"p","approve":"","tranId":""}}`
	mock.ExpectQuery("UPDATE authorize_actions SET action_status = ").
		WithArgs("act-1", "CanceledActionStatus", end, nil, true, nil, "ActiveActionStatus,CompletedActionStatus", "tx-1").
		WillReturnRows(sqlmock.NewRows(actionColumnNames).
			AddRow(actionRow("act-1", txn.ActionCanceled, nil, canceled, end)...))
	mock.ExpectQuery("UPDATE authorize_actions SET action_status = ").
		WithArgs("act-1", "CanceledActionStatus", end, nil, true, nil, "ActiveActionStatus,CompletedActionStatus", "tx-1").
		WillReturnRows(sqlmock.NewRows(actionColumnNames))
	mock.ExpectClose()

	store := NewActionStore(db)
	tr := txn.ActionTransition{
		ID:            "act-1",
		TransactionID: "tx-1",
		From:          []txn.ActionStatus{txn.ActionActive, txn.ActionCompleted},
		To:            txn.ActionCanceled,
		EndDate:       end,
	}
	got, err := store.Transition(context.Background(), tr)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Result != nil || got.CanceledResult == nil || got.CanceledResult.CreditCard.AccessID != "a" {
		t.Fatalf("expected canceled result kept, got %+v", got)
	}

	if _, err := store.Transition(context.Background(), tr); !errors.Is(err, txn.ErrNotFound) {
		t.Fatalf("expected not found on second cancel, got %v", err)
	}
}

func TestActionStore_FindByTransactionID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	failure := `{"kind":"Argument","message":"declined"}`
	rows := sqlmock.NewRows(actionColumnNames).
		AddRow(actionRow("act-1", txn.ActionActive, nil, nil, nil)...)
	failed := actionRow("act-2", txn.ActionFailed, nil, nil, testStart.Add(time.Second))
	failed[8] = failure
	rows.AddRow(failed...)

	mock.ExpectQuery("FROM authorize_actions WHERE transaction_id = ").
		WithArgs("tx-1").
		WillReturnRows(rows)
	mock.ExpectClose()

	store := NewActionStore(db)
	actions, err := store.FindByTransactionID(context.Background(), "tx-1")
	if err != nil {
		t.Fatalf("FindByTransactionID: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].TransactionID() != "tx-1" || actions[0].EndDate != nil {
		t.Fatalf("unexpected active action: %+v", actions[0])
	}
	if actions[1].Error == nil || actions[1].Error.Kind != "Argument" {
		t.Fatalf("expected decoded error, got %+v", actions[1].Error)
	}
}
