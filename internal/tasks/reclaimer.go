package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marquee/internal/notify"
	"marquee/internal/orders/txn"
)

// Reclaimer returns stalled Running tasks to Ready and aborts the ones that
// used up their retries.
type Reclaimer struct {
	tasks    txn.TaskStore
	alerts   notify.Sender
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

type ReclaimerOption func(*Reclaimer)

func WithReclaimerClock(now func() time.Time) ReclaimerOption {
	return func(r *Reclaimer) { r.now = now }
}

func NewReclaimer(tasks txn.TaskStore, alerts notify.Sender, logger *slog.Logger, recorder Recorder, opts ...ReclaimerOption) *Reclaimer {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	r := &Reclaimer{tasks: tasks, alerts: alerts, logger: logger, recorder: recorder, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AbortOrRetry treats every Running task last tried more than interval ago
// as stalled. Aborted tasks raise an operator alert.
func (r *Reclaimer) AbortOrRetry(ctx context.Context, interval time.Duration) (retried int64, aborted []txn.Task, err error) {
	now := r.now()
	before := now.Add(-interval)

	retried, err = r.tasks.RetryStalled(ctx, before)
	if err != nil {
		return 0, nil, err
	}
	aborted, err = r.tasks.AbortExhausted(ctx, before)
	if err != nil {
		return retried, nil, err
	}

	if retried > 0 {
		r.recorder.RecordRetried(retried)
		r.logger.Info("stalled tasks returned to ready", "count", retried)
	}

	for _, task := range aborted {
		r.recorder.RecordTask(task.Name, OutcomeAborted)
		lastError := ""
		if n := len(task.ExecutionResults); n > 0 {
			lastError = task.ExecutionResults[n-1].Error
		}
		r.logger.Error("task aborted",
			"task_id", task.ID,
			"task", task.Name,
			"transaction_id", task.Data.TransactionID,
			"number_of_tried", task.NumberOfTried,
			"last_error", lastError,
		)
		if r.alerts == nil {
			continue
		}
		alert := notify.Alert(task.ID,
			fmt.Sprintf("task %s aborted", task.Name),
			fmt.Sprintf("task %s for transaction %s gave up after %d tries: %s", task.ID, task.Data.TransactionID, task.NumberOfTried, lastError),
			now,
		)
		if err := r.alerts.Send(ctx, alert); err != nil {
			r.logger.Warn("abort alert not sent", "task_id", task.ID, "err", err)
		}
	}
	return retried, aborted, nil
}
