package tasks_test

import (
	"context"
	"testing"
	"time"

	"marquee/internal/tasks"
)

func TestRunner_SettlesConfirmedTransaction(t *testing.T) {
	f := newFixture(t)
	_, result := f.confirmed(t)

	reclaimer := tasks.NewReclaimer(f.tasks, f.sender, f.logger, f.recorder)
	runner := tasks.NewRunner(f.logger, f.svc, f.exporter, f.executor, reclaimer, tasks.RunnerConfig{
		ExportInterval:  5 * time.Millisecond,
		ExecuteInterval: 5 * time.Millisecond,
		ReclaimInterval: time.Hour,
		ExpireInterval:  time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, err := f.orders.Get(context.Background(), result.Order.OrderNumber)
		if err == nil && len(f.sender.Messages()) == 1 {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("timed out waiting for the order to settle: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop")
	}
}
