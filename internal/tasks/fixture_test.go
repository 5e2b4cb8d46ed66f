package tasks_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"marquee/internal/admission"
	"marquee/internal/db/memory"
	"marquee/internal/notify"
	"marquee/internal/orders"
	"marquee/internal/orders/txn"
	"marquee/internal/settlement"
	"marquee/internal/tasks"
)

const (
	buyerID  = "person-1"
	sellerID = "theater-118"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (s *recordingSender) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.sent...)
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[tasks.Outcome]int
	exports  int
	retried  int64
}

func (r *countingRecorder) RecordTask(_ txn.TaskName, outcome tasks.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[tasks.Outcome]int)
	}
	r.outcomes[outcome]++
}

func (r *countingRecorder) RecordExport(txn.TransactionStatus, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports++
}

func (r *countingRecorder) RecordRetried(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retried += n
}

func (r *countingRecorder) Outcome(o tasks.Outcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[o]
}

type fixture struct {
	svc          *orders.Service
	transactions *memory.TransactionStore
	actions      *memory.ActionStore
	tasks        *memory.TaskStore
	orders       *memory.OrderStore
	seats        *settlement.InMemorySeatInventory
	cards        *settlement.InMemoryCardGateway
	discount     *settlement.InMemoryDiscountTickets
	points       *settlement.InMemoryPointsAccount
	adapters     settlement.Adapters
	sender       *recordingSender
	recorder     *countingRecorder
	clock        *stepClock
	logger       *slog.Logger

	exporter *tasks.Exporter
	executor *tasks.Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		transactions: memory.NewTransactionStore(),
		actions:      memory.NewActionStore(),
		tasks:        memory.NewTaskStore(),
		orders:       memory.NewOrderStore(),
		seats:        settlement.NewInMemorySeatInventory(),
		cards:        settlement.NewInMemoryCardGateway(),
		discount:     settlement.NewInMemoryDiscountTickets(),
		points:       settlement.NewInMemoryPointsAccount(),
		sender:       &recordingSender{},
		recorder:     &countingRecorder{},
		clock:        &stepClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	f.adapters = settlement.Adapters{
		Seats:    f.seats,
		Cards:    f.cards,
		Discount: f.discount,
		Points:   f.points,
		Shop:     settlement.ShopCredentials{ShopID: "shop-118", ShopPass: "pass"},
	}
	gate := admission.NewGate(admission.NewMemoryCounter(), "placeOrder:", time.Minute)
	f.svc = orders.NewService(f.transactions, f.actions, gate, f.adapters,
		orders.WithClock(f.clock.Now),
		orders.WithLogger(f.logger),
	)
	f.exporter = tasks.NewExporter(f.transactions, f.tasks, tasks.ExporterConfig{
		EmailFrom: "tickets@cinema118.example",
		Logger:    f.logger,
		Recorder:  f.recorder,
		Now:       f.clock.Now,
	})
	f.executor = tasks.NewExecutor(f.tasks, f.handlers().Map(),
		tasks.WithExecutorLogger(f.logger),
		tasks.WithExecutorRecorder(f.recorder),
		tasks.WithExecutorClock(f.clock.Now),
	)
	return f
}

func (f *fixture) handlers() *tasks.Handlers {
	return tasks.NewHandlers(f.transactions, f.actions, f.orders, f.adapters, f.sender, f.logger)
}

func (f *fixture) start(t *testing.T) txn.Transaction {
	t.Helper()
	tr, err := f.svc.Start(context.Background(), orders.StartParams{
		Expires:         f.clock.Now().Add(10 * time.Minute),
		ScopeKey:        sellerID,
		MaxCountPerUnit: 100,
		Agent:           txn.Party{ID: buyerID},
		Seller:          txn.Party{ID: sellerID, Name: "Cinema 118"},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return tr
}

func seatRequest(price int64) txn.SeatReservationObject {
	return txn.SeatReservationObject{
		Screening: txn.Screening{
			TheaterCode: "118",
			DateCode:    "20261019",
			TitleCode:   "99500",
			TitleBranch: "00",
			TimeBegin:   "1830",
			ScreenCode:  "2",
		},
		Offers: []txn.SeatOffer{{SeatSection: "0", SeatNumber: "A-1", TicketCode: "10", TicketName: "General", Price: price}},
	}
}

func cardRequest(orderID string, amount int64) orders.CreditCardRequest {
	return orders.CreditCardRequest{
		OrderID: orderID,
		Amount:  amount,
		Card:    settlement.CardDetails{Method: "1", CardNo: "4111111111111111", Expire: "2812"},
	}
}

// authorized holds a seat and a card of the same price and sets the contact.
func (f *fixture) authorized(t *testing.T) (txn.Transaction, txn.AuthorizeAction, txn.AuthorizeAction) {
	t.Helper()
	ctx := context.Background()
	tr := f.start(t)

	seat, err := f.svc.AuthorizeSeatReservation(ctx, buyerID, tr.ID, seatRequest(1800))
	if err != nil {
		t.Fatalf("AuthorizeSeatReservation: %v", err)
	}
	card, err := f.svc.AuthorizeCreditCard(ctx, buyerID, tr.ID, cardRequest("order-"+tr.ID, 1800))
	if err != nil {
		t.Fatalf("AuthorizeCreditCard: %v", err)
	}
	if _, err := f.svc.SetCustomerContact(ctx, buyerID, tr.ID, txn.CustomerContact{
		GivenName:  "Taro",
		FamilyName: "Yamada",
		Email:      "taro@example.com",
		Telephone:  "03-1234-5678",
	}); err != nil {
		t.Fatalf("SetCustomerContact: %v", err)
	}
	return tr, seat, card
}

func (f *fixture) confirmed(t *testing.T) (txn.Transaction, txn.TransactionResult) {
	t.Helper()
	tr, _, _ := f.authorized(t)
	result, err := f.svc.Confirm(context.Background(), buyerID, tr.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	return tr, result
}

// drain runs every Ready task of the given names until none is left.
func (f *fixture) drain(t *testing.T, names ...txn.TaskName) {
	t.Helper()
	for _, name := range names {
		for {
			_, ok, err := f.executor.ExecuteOneByName(context.Background(), name)
			if err != nil {
				t.Fatalf("ExecuteOneByName(%s): %v", name, err)
			}
			if !ok {
				break
			}
		}
	}
}

func (f *fixture) task(t *testing.T, id string) txn.Task {
	t.Helper()
	task, err := f.tasks.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get task %s: %v", id, err)
	}
	return task
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
