package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marquee/internal/orders/txn"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Outcome labels what happened to a task.
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeFailed   Outcome = "failed"
	OutcomeAborted  Outcome = "aborted"
)

// Recorder receives task metrics.
type Recorder interface {
	RecordTask(name txn.TaskName, outcome Outcome)
	RecordExport(status txn.TransactionStatus, tasks int)
	RecordRetried(n int64)
}

type nopRecorder struct{}

func (nopRecorder) RecordTask(txn.TaskName, Outcome) {}
func (nopRecorder) RecordExport(txn.TransactionStatus, int) {}
func (nopRecorder) RecordRetried(int64) {}

func newID() string {
	return uuid.NewString()
}

// Handler runs one task. A returned error is recorded and the task stays
// Running until the reclaim sweep retries or aborts it.
type Handler func(ctx context.Context, data txn.TaskData) error

// Executor claims and runs tasks by name.
type Executor struct {
	tasks    txn.TaskStore
	handlers map[txn.TaskName]Handler
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
	now      func() time.Time
}

type ExecutorOption func(*Executor)

func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

func WithExecutorRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) {
		if r != nil {
			e.recorder = r
		}
	}
}

func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = tracer }
}

func NewExecutor(tasks txn.TaskStore, handlers map[txn.TaskName]Handler, opts ...ExecutorOption) *Executor {
	e := &Executor{
		tasks:    tasks,
		handlers: handlers,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer("marquee/tasks"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteOneByName claims one due Ready task of name and runs its handler.
// ok is false when no task was available. The returned error is the
// handler's failure, already recorded on the task, or a store error.
func (e *Executor) ExecuteOneByName(ctx context.Context, name txn.TaskName) (txn.Task, bool, error) {
	handler, found := e.handlers[name]
	if !found {
		return txn.Task{}, false, fmt.Errorf("%w: no handler for task %s", txn.ErrArgument, name)
	}

	task, ok, err := e.tasks.ClaimOne(ctx, name, e.now())
	if err != nil || !ok {
		return txn.Task{}, false, err
	}

	ctx, span := e.tracer.Start(ctx, "task."+string(name), trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("transaction.id", task.Data.TransactionID),
		attribute.Int("task.number_of_tried", task.NumberOfTried),
	))
	defer span.End()

	runErr := handler(ctx, task.Data)

	result := txn.ExecutionResult{ExecutedAt: e.now()}
	status := txn.TaskExecuted
	if runErr != nil {
		result.Error = runErr.Error()
		status = txn.TaskRunning
		span.RecordError(runErr)
		span.SetStatus(codes.Error, txn.Kind(runErr))
	}
	if err := e.tasks.PushExecutionResult(ctx, task.ID, status, result); err != nil {
		return task, true, fmt.Errorf("record result of task %s: %w", task.ID, err)
	}
	task.Status = status
	task.ExecutionResults = append(task.ExecutionResults, result)

	if runErr != nil {
		e.recorder.RecordTask(name, OutcomeFailed)
		e.logger.Warn("task failed",
			"task_id", task.ID,
			"task", name,
			"transaction_id", task.Data.TransactionID,
			"number_of_tried", task.NumberOfTried,
			"kind", txn.Kind(runErr),
			"err", runErr,
		)
		return task, true, runErr
	}
	e.recorder.RecordTask(name, OutcomeExecuted)
	e.logger.Info("task executed", "task_id", task.ID, "task", name, "transaction_id", task.Data.TransactionID)
	return task, true, nil
}
