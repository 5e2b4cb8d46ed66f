package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"marquee/internal/app"
	"marquee/internal/orders/txn"
)

func useStores(t *testing.T, stores app.Stores) {
	t.Helper()
	prev := openStores
	openStores = func(context.Context, string, *slog.Logger) (app.Stores, func(), error) {
		return stores, func() {}, nil
	}
	t.Cleanup(func() { openStores = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(viper.New())
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExpireExportAndExecute(t *testing.T) {
	stores := app.MemoryStores()
	useStores(t, stores)

	start := time.Now().Add(-time.Hour)
	if err := stores.Transactions.Create(context.Background(), txn.Transaction{
		ID:                     "tx-1",
		TypeOf:                 "PlaceOrder",
		Status:                 txn.TransactionInProgress,
		Agent:                  txn.Party{ID: "person-1"},
		Seller:                 txn.Party{ID: "theater-118"},
		Expires:                start.Add(15 * time.Minute),
		StartDate:              start,
		TasksExportationStatus: txn.ExportUnexported,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := execute(t, "make-expired", "--json")
	if err != nil {
		t.Fatalf("make-expired: %v", err)
	}
	var expired struct{ Expired int64 }
	if err := json.Unmarshal([]byte(out), &expired); err != nil || expired.Expired != 1 {
		t.Fatalf("unexpected make-expired output %q: %v", out, err)
	}

	out, err = execute(t, "export", "--status", "Expired", "--all")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "exported 1 transactions") {
		t.Fatalf("unexpected export output %q", out)
	}

	out, err = execute(t, "execute", string(txn.TaskCancelSeatReservation))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "executed 1 CancelSeatReservation tasks, 0 failed") {
		t.Fatalf("unexpected execute output %q", out)
	}

	got, err := stores.Transactions.Get(context.Background(), "tx-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != txn.TransactionExpired || got.TasksExportationStatus != txn.ExportExported {
		t.Fatalf("unexpected transaction: %+v", got)
	}
}

func TestExportRejectsUnknownStatus(t *testing.T) {
	useStores(t, app.MemoryStores())
	if _, err := execute(t, "export", "--status", "InProgress"); err == nil {
		t.Fatalf("expected error for InProgress")
	}
}

func TestExecuteUnknownTaskName(t *testing.T) {
	useStores(t, app.MemoryStores())
	if _, err := execute(t, "execute", "Nope"); err == nil {
		t.Fatalf("expected error for unknown task")
	}
}

func TestAbortOrRetryAndReexportOnEmptyStores(t *testing.T) {
	useStores(t, app.MemoryStores())

	out, err := execute(t, "abort-or-retry", "--interval", "1m")
	if err != nil {
		t.Fatalf("abort-or-retry: %v", err)
	}
	if !strings.Contains(out, "retried 0 tasks, aborted 0") {
		t.Fatalf("unexpected output %q", out)
	}
	if out, err = execute(t, "reexport", "--json"); err != nil {
		t.Fatalf("reexport: %v", err)
	}
	if !strings.Contains(out, `"reset": 0`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestFlagsFromEnvironment(t *testing.T) {
	t.Setenv("MARQUEE_JSON", "true")
	useStores(t, app.MemoryStores())

	out, err := execute(t, "make-expired")
	if err != nil {
		t.Fatalf("make-expired: %v", err)
	}
	if !strings.Contains(out, `"expired": 0`) {
		t.Fatalf("expected JSON output from MARQUEE_JSON, got %q", out)
	}
}
