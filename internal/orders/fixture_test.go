package orders_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"marquee/internal/admission"
	"marquee/internal/db/memory"
	"marquee/internal/orders"
	"marquee/internal/orders/txn"
	"marquee/internal/settlement"
)

const (
	buyerID  = "person-1"
	sellerID = "theater-118"
)

// stepClock advances one second on every reading so actions completed in one
// call end strictly before the next call starts.
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

type fixture struct {
	svc          *orders.Service
	transactions *memory.TransactionStore
	actions      *memory.ActionStore
	seats        *settlement.InMemorySeatInventory
	cards        *settlement.InMemoryCardGateway
	points       *settlement.InMemoryPointsAccount
	clock        *stepClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &stepClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	f := &fixture{
		transactions: memory.NewTransactionStore(),
		actions:      memory.NewActionStore(),
		seats:        settlement.NewInMemorySeatInventory(),
		cards:        settlement.NewInMemoryCardGateway(),
		points:       settlement.NewInMemoryPointsAccount(),
		clock:        clock,
	}
	adapters := settlement.Adapters{
		Seats:    f.seats,
		Cards:    f.cards,
		Discount: settlement.NewInMemoryDiscountTickets(),
		Points:   f.points,
		Shop:     settlement.ShopCredentials{ShopID: "shop-118", ShopPass: "pass"},
	}
	gate := admission.NewGate(admission.NewMemoryCounter(), "placeOrder:", time.Minute)
	f.svc = orders.NewService(f.transactions, f.actions, gate, adapters,
		orders.WithClock(clock.Now),
		orders.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return f
}

func (f *fixture) start(t *testing.T) txn.Transaction {
	t.Helper()
	tr, err := f.svc.Start(context.Background(), orders.StartParams{
		Expires:         f.clock.Now().Add(10 * time.Minute),
		ScopeKey:        sellerID + ":" + t.Name(),
		MaxCountPerUnit: 100,
		Agent:           txn.Party{ID: buyerID},
		Seller:          txn.Party{ID: sellerID, Name: "Cinema 118"},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return tr
}

func screening() txn.Screening {
	return txn.Screening{
		TheaterCode: "118",
		DateCode:    "20261019",
		TitleCode:   "99500",
		TitleBranch: "00",
		TimeBegin:   "1830",
		ScreenCode:  "2",
	}
}

func seatRequest(prices ...int64) txn.SeatReservationObject {
	req := txn.SeatReservationObject{Screening: screening()}
	for i, price := range prices {
		req.Offers = append(req.Offers, txn.SeatOffer{
			SeatSection: "0",
			SeatNumber:  "A-" + string(rune('1'+i)),
			TicketCode:  "10",
			TicketName:  "General",
			Price:       price,
		})
	}
	return req
}

func cardRequest(orderID string, amount int64) orders.CreditCardRequest {
	return orders.CreditCardRequest{
		OrderID: orderID,
		Amount:  amount,
		Card:    settlement.CardDetails{Method: "1", CardNo: "4111111111111111", Expire: "2812"},
	}
}

func contact() txn.CustomerContact {
	return txn.CustomerContact{
		GivenName:  "Taro",
		FamilyName: "Yamada",
		Email:      "taro@example.com",
		Telephone:  "03-1234-5678",
	}
}

// readyToConfirm authorizes a seat and a card of the same price and sets the
// contact.
func (f *fixture) readyToConfirm(t *testing.T, price int64) (txn.Transaction, txn.AuthorizeAction, txn.AuthorizeAction) {
	t.Helper()
	ctx := context.Background()
	tr := f.start(t)

	seat, err := f.svc.AuthorizeSeatReservation(ctx, buyerID, tr.ID, seatRequest(price))
	if err != nil {
		t.Fatalf("AuthorizeSeatReservation: %v", err)
	}
	card, err := f.svc.AuthorizeCreditCard(ctx, buyerID, tr.ID, cardRequest("order-"+tr.ID, price))
	if err != nil {
		t.Fatalf("AuthorizeCreditCard: %v", err)
	}
	if _, err := f.svc.SetCustomerContact(ctx, buyerID, tr.ID, contact()); err != nil {
		t.Fatalf("SetCustomerContact: %v", err)
	}
	return tr, seat, card
}
