package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marquee/internal/orders/txn"
)

var now = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func readyTask(id string, name txn.TaskName, transactionID string, maxTry int) txn.Task {
	return txn.Task{
		ID:             id,
		Name:           name,
		Status:         txn.TaskReady,
		RunsAt:         now,
		MaxNumberOfTry: maxTry,
		Data:           txn.TaskData{TransactionID: transactionID},
	}
}

func TestTaskStore_CreateManyKeepsExisting(t *testing.T) {
	s := NewTaskStore()
	ctx := context.Background()

	first, err := s.CreateMany(ctx, []txn.Task{readyTask("a", txn.TaskSettleCreditCard, "tx-1", 3)})
	if err != nil {
		t.Fatalf("CreateMany: %v", err)
	}
	second, err := s.CreateMany(ctx, []txn.Task{
		readyTask("b", txn.TaskSettleCreditCard, "tx-1", 3),
		readyTask("c", txn.TaskCreateOrder, "tx-1", 3),
	})
	if err != nil {
		t.Fatalf("CreateMany: %v", err)
	}
	if first[0].ID != "a" || second[0].ID != "a" || second[1].ID != "c" {
		t.Fatalf("expected existing task to be returned, got %v %v", first, second)
	}
	if _, err := s.Get(ctx, "b"); !errors.Is(err, txn.ErrNotFound) {
		t.Fatalf("duplicate task must not be stored, got %v", err)
	}
}

func TestTaskStore_ClaimOneAtMostOnce(t *testing.T) {
	s := NewTaskStore()
	ctx := context.Background()
	if _, err := s.CreateMany(ctx, []txn.Task{readyTask("a", txn.TaskSettleCreditCard, "tx-1", 3)}); err != nil {
		t.Fatalf("CreateMany: %v", err)
	}

	var claimed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := s.ClaimOne(ctx, txn.TaskSettleCreditCard, now); ok {
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()
	if claimed.Load() != 1 {
		t.Fatalf("expected exactly one claimant, got %d", claimed.Load())
	}

	task, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task.Status != txn.TaskRunning || task.NumberOfTried != 1 || task.LastTriedAt == nil {
		t.Fatalf("unexpected claimed task: %+v", task)
	}
}

func TestTaskStore_ClaimOneSkipsFutureTasks(t *testing.T) {
	s := NewTaskStore()
	ctx := context.Background()
	later := readyTask("a", txn.TaskCreateOrder, "tx-1", 3)
	later.RunsAt = now.Add(time.Minute)
	if _, err := s.CreateMany(ctx, []txn.Task{later}); err != nil {
		t.Fatalf("CreateMany: %v", err)
	}
	if _, ok, err := s.ClaimOne(ctx, txn.TaskCreateOrder, now); err != nil || ok {
		t.Fatalf("expected no due task, got ok=%v err=%v", ok, err)
	}
}

func TestTaskStore_RetryThenAbort(t *testing.T) {
	s := NewTaskStore()
	ctx := context.Background()
	if _, err := s.CreateMany(ctx, []txn.Task{readyTask("a", txn.TaskCancelAccount, "tx-1", 2)}); err != nil {
		t.Fatalf("CreateMany: %v", err)
	}

	if _, ok, _ := s.ClaimOne(ctx, txn.TaskCancelAccount, now); !ok {
		t.Fatalf("expected claim")
	}
	if n, _ := s.RetryStalled(ctx, now); n != 0 {
		t.Fatalf("task tried at the cutoff is not stalled yet, retried %d", n)
	}
	if n, _ := s.RetryStalled(ctx, now.Add(time.Minute)); n != 1 {
		t.Fatalf("expected one retry, got %d", n)
	}

	if _, ok, _ := s.ClaimOne(ctx, txn.TaskCancelAccount, now.Add(2*time.Minute)); !ok {
		t.Fatalf("expected second claim")
	}
	if n, _ := s.RetryStalled(ctx, now.Add(time.Hour)); n != 0 {
		t.Fatalf("exhausted task must not be retried, got %d", n)
	}
	aborted, err := s.AbortExhausted(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("AbortExhausted: %v", err)
	}
	if len(aborted) != 1 || aborted[0].Status != txn.TaskAborted {
		t.Fatalf("unexpected aborted tasks: %+v", aborted)
	}
	if err := s.PushExecutionResult(ctx, "a", txn.TaskExecuted, txn.ExecutionResult{}); !errors.Is(err, txn.ErrNotFound) {
		t.Fatalf("aborted task must not accept results, got %v", err)
	}
}

func inProgress(id string, expires time.Time) txn.Transaction {
	return txn.Transaction{
		ID:                     id,
		TypeOf:                 "PlaceOrder",
		Status:                 txn.TransactionInProgress,
		Agent:                  txn.Party{ID: "person-1"},
		Expires:                expires,
		StartDate:              now.Add(-time.Hour),
		TasksExportationStatus: txn.ExportUnexported,
	}
}

func TestTransactionStore_ConfirmLosesToMakeExpired(t *testing.T) {
	s := NewTransactionStore()
	ctx := context.Background()
	if err := s.Create(ctx, inProgress("tx-1", now.Add(-time.Minute))); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if n, err := s.MakeExpired(ctx, now); err != nil || n != 1 {
		t.Fatalf("MakeExpired = %d, %v", n, err)
	}
	if _, err := s.Confirm(ctx, "tx-1", now, nil, txn.TransactionResult{}); !errors.Is(err, txn.ErrNotFound) {
		t.Fatalf("expected NotFound after expiry, got %v", err)
	}
	got, _ := s.Get(ctx, "tx-1")
	if got.Status != txn.TransactionExpired || got.EndDate == nil || got.Result != nil {
		t.Fatalf("unexpected expired transaction: %+v", got)
	}
}

func TestTransactionStore_PassportTokenUnique(t *testing.T) {
	s := NewTransactionStore()
	ctx := context.Background()
	a := inProgress("tx-1", now.Add(time.Hour))
	a.Object.PassportToken = "passport-1"
	b := inProgress("tx-2", now.Add(time.Hour))
	b.Object.PassportToken = "passport-1"

	if err := s.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, b); !errors.Is(err, txn.ErrAlreadyInUse) {
		t.Fatalf("expected AlreadyInUse, got %v", err)
	}
}

func TestTransactionStore_ExportLifecycle(t *testing.T) {
	s := NewTransactionStore()
	ctx := context.Background()
	if err := s.Create(ctx, inProgress("tx-1", now.Add(-time.Minute))); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.MakeExpired(ctx, now); err != nil {
		t.Fatalf("MakeExpired: %v", err)
	}

	claimed, ok, err := s.StartExport(ctx, txn.TransactionExpired, now)
	if err != nil || !ok || claimed.TasksExportationStatus != txn.ExportExporting {
		t.Fatalf("StartExport = %+v, %v, %v", claimed, ok, err)
	}
	if _, ok, _ := s.StartExport(ctx, txn.TransactionExpired, now); ok {
		t.Fatalf("an exporting transaction must not be claimed twice")
	}

	if n, _ := s.ReexportStalled(ctx, now.Add(time.Minute)); n != 1 {
		t.Fatalf("expected stalled export to be reset, got %d", n)
	}
	if err := s.MarkExported(ctx, "tx-1", []string{"task-1"}, now); !errors.Is(err, txn.ErrNotFound) {
		t.Fatalf("MarkExported requires Exporting, got %v", err)
	}

	if _, ok, _ := s.StartExport(ctx, txn.TransactionExpired, now.Add(2*time.Minute)); !ok {
		t.Fatalf("expected reset transaction to be claimable again")
	}
	if err := s.MarkExported(ctx, "tx-1", []string{"task-1"}, now.Add(3*time.Minute)); err != nil {
		t.Fatalf("MarkExported: %v", err)
	}
	got, _ := s.Get(ctx, "tx-1")
	if got.TasksExportationStatus != txn.ExportExported || len(got.Tasks) != 1 || got.TasksExportedAt == nil {
		t.Fatalf("unexpected exported transaction: %+v", got)
	}
}

func seatAction(id, transactionID string) txn.AuthorizeAction {
	return txn.AuthorizeAction{
		ID:           id,
		TypeOf:       txn.ActionType,
		ActionStatus: txn.ActionActive,
		Object: txn.ActionObject{
			TypeOf:          txn.ObjectSeatReservation,
			TransactionID:   transactionID,
			SeatReservation: &txn.SeatReservationObject{},
		},
		StartDate: now,
	}
}

func TestActionStore_OneLiveSeatHoldPerTransaction(t *testing.T) {
	s := NewActionStore()
	ctx := context.Background()

	var inserted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Insert(ctx, seatAction("seat-"+string(rune('a'+i)), "tx-1"))
			switch {
			case err == nil:
				inserted.Add(1)
			case !errors.Is(err, txn.ErrAlreadyInUse):
				t.Errorf("unexpected insert error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if inserted.Load() != 1 {
		t.Fatalf("expected one live seat hold, got %d", inserted.Load())
	}

	if err := s.Insert(ctx, seatAction("seat-other", "tx-2")); err != nil {
		t.Fatalf("another transaction has its own hold: %v", err)
	}

	actions, err := s.FindByTransactionID(ctx, "tx-1")
	if err != nil || len(actions) != 1 {
		t.Fatalf("FindByTransactionID = %d, %v", len(actions), err)
	}
	if _, err := s.Transition(ctx, txn.ActionTransition{
		ID:      actions[0].ID,
		From:    []txn.ActionStatus{txn.ActionActive},
		To:      txn.ActionFailed,
		EndDate: now,
		Error:   &txn.ActionError{Kind: "ServiceUnavailable", Message: "vendor down"},
	}); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := s.Insert(ctx, seatAction("seat-retry", "tx-1")); err != nil {
		t.Fatalf("expected a new hold after the first failed: %v", err)
	}
}
