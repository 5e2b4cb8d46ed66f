package txn

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskName enumerates follow-up operations exported from finished transactions.
type TaskName string

const (
	TaskSettleCreditCard      TaskName = "SettleCreditCard"
	TaskSettleSeatReservation TaskName = "SettleSeatReservation"
	TaskSettleDiscountTicket  TaskName = "SettleDiscountTicket"
	TaskSettleAccount         TaskName = "SettleAccount"
	TaskCreateOrder           TaskName = "CreateOrder"
	TaskSendEmailNotification TaskName = "SendEmailNotification"
	TaskCancelCreditCard      TaskName = "CancelCreditCard"
	TaskCancelSeatReservation TaskName = "CancelSeatReservation"
	TaskCancelDiscountTicket  TaskName = "CancelDiscountTicket"
	TaskCancelAccount         TaskName = "CancelAccount"
)

// TaskNames lists every task name in export order.
var TaskNames = []TaskName{
	TaskSettleSeatReservation,
	TaskSettleCreditCard,
	TaskSettleDiscountTicket,
	TaskSettleAccount,
	TaskCreateOrder,
	TaskSendEmailNotification,
	TaskCancelCreditCard,
	TaskCancelSeatReservation,
	TaskCancelDiscountTicket,
	TaskCancelAccount,
}

// ParseTaskName validates a task name given by an operator or config.
func ParseTaskName(raw string) (TaskName, error) {
	for _, name := range TaskNames {
		if string(name) == raw {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: unknown task name %q", ErrArgument, raw)
}

type TaskStatus string

const (
	TaskReady    TaskStatus = "Ready"
	TaskRunning  TaskStatus = "Running"
	TaskExecuted TaskStatus = "Executed"
	TaskAborted  TaskStatus = "Aborted"
)

// EmailMessage is the content of a notification; delivery is external.
type EmailMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// TaskData is keyed by the task name: SendEmailNotification carries Email,
// every other task carries TransactionID.
type TaskData struct {
	TransactionID string        `json:"transactionId"`
	Email         *EmailMessage `json:"email,omitempty"`
}

// Validate checks the payload shape required by name.
func (d TaskData) Validate(name TaskName) error {
	if d.TransactionID == "" {
		return fmt.Errorf("%w: task %s requires transactionId", ErrArgumentNull, name)
	}
	switch name {
	case TaskSendEmailNotification:
		if d.Email == nil || d.Email.To == "" {
			return fmt.Errorf("%w: task %s requires an email message", ErrArgumentNull, name)
		}
	case TaskSettleCreditCard, TaskSettleSeatReservation, TaskSettleDiscountTicket, TaskSettleAccount,
		TaskCreateOrder, TaskCancelCreditCard, TaskCancelSeatReservation, TaskCancelDiscountTicket, TaskCancelAccount:
		if d.Email != nil {
			return fmt.Errorf("%w: task %s does not take an email message", ErrArgument, name)
		}
	default:
		return fmt.Errorf("%w: unknown task name %q", ErrArgument, name)
	}
	return nil
}

// ExecutionResult is appended to a task after each attempt.
type ExecutionResult struct {
	ExecutedAt time.Time `json:"executedAt"`
	Error      string    `json:"error,omitempty"`
}

// Task is a durable, independently retryable follow-up work item.
type Task struct {
	ID               string            `json:"id"`
	Name             TaskName          `json:"name"`
	Status           TaskStatus        `json:"status"`
	RunsAt           time.Time         `json:"runsAt"`
	LastTriedAt      *time.Time        `json:"lastTriedAt,omitempty"`
	NumberOfTried    int               `json:"numberOfTried"`
	MaxNumberOfTry   int               `json:"maxNumberOfTry"`
	ExecutionResults []ExecutionResult `json:"executionResults"`
	Data             TaskData          `json:"data"`
}

// Exhausted reports whether no retry remains.
func (t Task) Exhausted() bool {
	return t.NumberOfTried >= t.MaxNumberOfTry
}

// DecodeTaskData decodes and validates a stored payload.
func DecodeTaskData(name TaskName, raw []byte) (TaskData, error) {
	var data TaskData
	if err := json.Unmarshal(raw, &data); err != nil {
		return TaskData{}, fmt.Errorf("decode %s task data: %w", name, err)
	}
	if err := data.Validate(name); err != nil {
		return TaskData{}, err
	}
	return data, nil
}
