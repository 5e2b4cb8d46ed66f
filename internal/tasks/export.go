package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marquee/internal/orders/txn"
)

// DefaultMaxNumberOfTry bounds how often a task is attempted before abort.
const DefaultMaxNumberOfTry = 10

// ExportSpec fixes the per-task defaults used by ExportTasksFor.
type ExportSpec struct {
	Now            time.Time
	MaxNumberOfTry int
	NewID          func() string
	// EmailFrom is the sender address of the order confirmation email.
	EmailFrom string
}

// ExportTasksFor maps a finished transaction onto its follow-up tasks.
// Confirmed transactions settle what was authorized, then create the order
// and notify the customer; Expired and Canceled transactions release every
// kind of authorization.
func ExportTasksFor(t txn.Transaction, spec ExportSpec) ([]txn.Task, error) {
	var names []txn.TaskName
	switch t.Status {
	case txn.TransactionConfirmed:
		if t.Result == nil {
			return nil, fmt.Errorf("%w: confirmed transaction %s has no result", txn.ErrArgument, t.ID)
		}
		names = confirmedTaskNames(t.Object.AuthorizeActions)
	case txn.TransactionExpired, txn.TransactionCanceled:
		names = []txn.TaskName{
			txn.TaskCancelCreditCard,
			txn.TaskCancelSeatReservation,
			txn.TaskCancelDiscountTicket,
			txn.TaskCancelAccount,
		}
	default:
		return nil, fmt.Errorf("%w: transaction %s in status %s has nothing to export", txn.ErrArgument, t.ID, t.Status)
	}

	maxTry := spec.MaxNumberOfTry
	if maxTry <= 0 {
		maxTry = DefaultMaxNumberOfTry
	}

	out := make([]txn.Task, 0, len(names))
	for _, name := range names {
		data := txn.TaskData{TransactionID: t.ID}
		if name == txn.TaskSendEmailNotification {
			email := confirmationEmail(t, spec.EmailFrom)
			data.Email = &email
		}
		if err := data.Validate(name); err != nil {
			return nil, err
		}
		out = append(out, txn.Task{
			ID:               spec.NewID(),
			Name:             name,
			Status:           txn.TaskReady,
			RunsAt:           spec.Now,
			NumberOfTried:    0,
			MaxNumberOfTry:   maxTry,
			ExecutionResults: []txn.ExecutionResult{},
			Data:             data,
		})
	}
	return out, nil
}

// confirmedTaskNames always settles the card gateway, since canceled card
// authorizations may still need voiding even when no card paid the order.
func confirmedTaskNames(snapshot []txn.AuthorizeAction) []txn.TaskName {
	has := make(map[txn.ObjectType]bool)
	for _, a := range snapshot {
		has[a.Object.TypeOf] = true
	}
	names := []txn.TaskName{txn.TaskSettleCreditCard}
	if has[txn.ObjectSeatReservation] {
		names = append(names, txn.TaskSettleSeatReservation)
	}
	if has[txn.ObjectMvtk] {
		names = append(names, txn.TaskSettleDiscountTicket)
	}
	if has[txn.ObjectAccount] {
		names = append(names, txn.TaskSettleAccount)
	}
	return append(names, txn.TaskCreateOrder, txn.TaskSendEmailNotification)
}

func confirmationEmail(t txn.Transaction, from string) txn.EmailMessage {
	order := t.Result.Order
	contact := order.Customer.Contact

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", contact.FamilyName, contact.GivenName)
	fmt.Fprintf(&b, "Thank you for your purchase at %s.\n\n", order.Seller.Name)
	fmt.Fprintf(&b, "Order number: %s\n", order.OrderNumber)
	fmt.Fprintf(&b, "Confirmation number: %s\n", order.ConfirmationNumber)
	if len(order.AcceptedOffers) > 0 {
		sc := order.AcceptedOffers[0].ItemOffered.Screening
		fmt.Fprintf(&b, "Screening: %s %s (title %s, screen %s)\n", sc.DateCode, sc.TimeBegin, sc.TitleCode, sc.ScreenCode)
	}
	for _, offer := range order.AcceptedOffers {
		seat := offer.ItemOffered.Seat
		fmt.Fprintf(&b, "Seat %s %s: %s %d %s\n", seat.SeatSection, seat.SeatNumber, seat.TicketName, offer.Price, offer.PriceCurrency)
	}
	fmt.Fprintf(&b, "Total: %d %s\n", order.Price, order.PriceCurrency)

	return txn.EmailMessage{
		From:    from,
		To:      contact.Email,
		Subject: "Order confirmation " + order.OrderNumber,
		Text:    b.String(),
	}
}

// Exporter turns finished transactions into tasks exactly once per
// transaction and task name.
type Exporter struct {
	transactions txn.TransactionStore
	tasks        txn.TaskStore
	logger       *slog.Logger
	recorder     Recorder
	now          func() time.Time
	newID        func() string
	maxTry       int
	emailFrom    string
}

// ExporterConfig configures an Exporter. Zero values fall back to defaults.
type ExporterConfig struct {
	MaxNumberOfTry int
	EmailFrom      string
	Logger         *slog.Logger
	Recorder       Recorder
	Now            func() time.Time
	NewID          func() string
}

func NewExporter(transactions txn.TransactionStore, tasks txn.TaskStore, cfg ExporterConfig) *Exporter {
	e := &Exporter{
		transactions: transactions,
		tasks:        tasks,
		logger:       cfg.Logger,
		recorder:     cfg.Recorder,
		now:          cfg.Now,
		newID:        cfg.NewID,
		maxTry:       cfg.MaxNumberOfTry,
		emailFrom:    cfg.EmailFrom,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = newID
	}
	if e.maxTry <= 0 {
		e.maxTry = DefaultMaxNumberOfTry
	}
	if e.emailFrom == "" {
		e.emailFrom = "noreply@marquee.example"
	}
	return e
}

// ExportOne claims one Unexported transaction in status, creates its tasks
// and marks it Exported. ok is false when nothing was waiting. A failure
// after the claim leaves the transaction Exporting for ReexportStalled.
func (e *Exporter) ExportOne(ctx context.Context, status txn.TransactionStatus) (txn.Transaction, bool, error) {
	now := e.now()
	t, ok, err := e.transactions.StartExport(ctx, status, now)
	if err != nil || !ok {
		return txn.Transaction{}, false, err
	}

	specs, err := ExportTasksFor(t, ExportSpec{Now: now, MaxNumberOfTry: e.maxTry, NewID: e.newID, EmailFrom: e.emailFrom})
	if err != nil {
		return t, true, err
	}
	stored, err := e.tasks.CreateMany(ctx, specs)
	if err != nil {
		return t, true, fmt.Errorf("create tasks for %s: %w", t.ID, err)
	}
	ids := make([]string, 0, len(stored))
	for _, task := range stored {
		ids = append(ids, task.ID)
	}
	exportedAt := e.now()
	if err := e.transactions.MarkExported(ctx, t.ID, ids, exportedAt); err != nil {
		return t, true, err
	}

	t.TasksExportationStatus = txn.ExportExported
	t.TasksExportedAt = &exportedAt
	t.Tasks = ids
	e.recorder.RecordExport(status, len(ids))
	e.logger.Info("transaction tasks exported", "transaction_id", t.ID, "status", status, "tasks", len(ids))
	return t, true, nil
}

// ReexportStalled resets transactions stuck in Exporting for longer than
// interval.
func (e *Exporter) ReexportStalled(ctx context.Context, interval time.Duration) (int64, error) {
	n, err := e.transactions.ReexportStalled(ctx, e.now().Add(-interval))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.logger.Warn("stalled exports reset", "count", n)
	}
	return n, nil
}
