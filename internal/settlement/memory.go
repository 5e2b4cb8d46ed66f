package settlement

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// InMemorySeatInventory tracks seat holds in memory.
type InMemorySeatInventory struct {
	mu        sync.Mutex
	taken     map[string]string // screening/seat -> hold token
	holds     map[string]HoldRequest
	confirmed map[string]string // hold token -> reservation number
	released  map[string]bool
}

func NewInMemorySeatInventory() *InMemorySeatInventory {
	return &InMemorySeatInventory{
		taken:     make(map[string]string),
		holds:     make(map[string]HoldRequest),
		confirmed: make(map[string]string),
		released:  make(map[string]bool),
	}
}

func seatKey(req HoldRequest, seat string) string {
	s := req.Screening
	return strings.Join([]string{s.TheaterCode, s.DateCode, s.TitleCode, s.TitleBranch, s.TimeBegin, s.ScreenCode, seat}, "|")
}

func (s *InMemorySeatInventory) Hold(_ context.Context, req HoldRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, seat := range req.Seats {
		if _, ok := s.taken[seatKey(req, seat.SeatNumber)]; ok {
			return "", &SeatVendorError{StatusCode: http.StatusBadRequest, Reason: SeatReasonAlreadySold, Message: "seat " + seat.SeatNumber + " is not available"}
		}
	}
	token := uuid.NewString()
	for _, seat := range req.Seats {
		s.taken[seatKey(req, seat.SeatNumber)] = token
	}
	s.holds[token] = req
	return token, nil
}

func (s *InMemorySeatInventory) Release(_ context.Context, holdToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.holds[holdToken]
	if !ok {
		return &SeatVendorError{StatusCode: http.StatusNotFound, Message: "unknown hold " + holdToken}
	}
	if _, sold := s.confirmed[holdToken]; sold {
		return &SeatVendorError{StatusCode: http.StatusConflict, Message: "hold already confirmed"}
	}
	for _, seat := range req.Seats {
		delete(s.taken, seatKey(req, seat.SeatNumber))
	}
	s.released[holdToken] = true
	return nil
}

func (s *InMemorySeatInventory) Confirm(_ context.Context, holdToken string, _ BuyerInfo) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if number, ok := s.confirmed[holdToken]; ok {
		return number, nil
	}
	if _, ok := s.holds[holdToken]; !ok || s.released[holdToken] {
		return "", &SeatVendorError{StatusCode: http.StatusNotFound, Message: "unknown hold " + holdToken}
	}
	number := uuid.NewString()
	s.confirmed[holdToken] = number
	return number, nil
}

// WasReleased reports whether a hold was released (for testing/inspection).
func (s *InMemorySeatInventory) WasReleased(holdToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released[holdToken]
}

// WasConfirmed reports whether a hold was turned into a sale.
func (s *InMemorySeatInventory) WasConfirmed(holdToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.confirmed[holdToken]
	return ok
}

// InMemoryCardGateway tracks card trades in memory. AlterErr, when set, is
// returned from every AlterTran call.
type InMemoryCardGateway struct {
	mu       sync.Mutex
	trades   map[string]*Trade
	AlterErr error
}

func NewInMemoryCardGateway() *InMemoryCardGateway {
	return &InMemoryCardGateway{trades: make(map[string]*Trade)}
}

func (c *InMemoryCardGateway) EntryTran(_ context.Context, _ ShopCredentials, orderID string, amount int64) (AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.trades[orderID]; ok {
		return AccessToken{}, &CardGatewayError{StatusCode: http.StatusBadRequest, Codes: []string{CardCodeDuplicateOrder}, Message: "order id already used"}
	}
	if amount <= 0 {
		return AccessToken{}, &CardGatewayError{StatusCode: http.StatusBadRequest, Codes: []string{"E01050004"}, Message: "invalid amount"}
	}
	token := AccessToken{AccessID: uuid.NewString(), AccessPass: uuid.NewString()}
	c.trades[orderID] = &Trade{OrderID: orderID, Status: JobCheck, AccessID: token.AccessID, AccessPass: token.AccessPass, Amount: amount}
	return token, nil
}

func (c *InMemoryCardGateway) ExecTran(_ context.Context, token AccessToken, orderID string, _ CardDetails) (ExecResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	trade, ok := c.trades[orderID]
	if !ok || trade.AccessID != token.AccessID || trade.AccessPass != token.AccessPass {
		return ExecResult{}, &CardGatewayError{StatusCode: http.StatusBadRequest, Codes: []string{"E01110002"}, Message: "unknown trade"}
	}
	trade.Status = JobAuth
	return ExecResult{Approve: uuid.NewString()[:7], TranID: uuid.NewString()}, nil
}

func (c *InMemoryCardGateway) AlterTran(_ context.Context, _ ShopCredentials, token AccessToken, job JobCode, _ int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.AlterErr != nil {
		return c.AlterErr
	}
	for _, trade := range c.trades {
		if trade.AccessID == token.AccessID && trade.AccessPass == token.AccessPass {
			trade.Status = job
			return nil
		}
	}
	return &CardGatewayError{StatusCode: http.StatusBadRequest, Codes: []string{"E01110002"}, Message: "unknown trade"}
}

func (c *InMemoryCardGateway) SearchTrade(_ context.Context, _ ShopCredentials, orderID string) (Trade, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	trade, ok := c.trades[orderID]
	if !ok {
		return Trade{}, &CardGatewayError{StatusCode: http.StatusBadRequest, Codes: []string{"E01110002"}, Message: "unknown trade"}
	}
	return *trade, nil
}

// Status returns the trade state of an order (for testing/inspection).
func (c *InMemoryCardGateway) Status(orderID string) JobCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if trade, ok := c.trades[orderID]; ok {
		return trade.Status
	}
	return ""
}

// InMemoryDiscountTickets redeems vouchers in memory. Redeeming the same
// voucher again returns the first redemption.
type InMemoryDiscountTickets struct {
	mu       sync.Mutex
	redeemed map[string]string
}

func NewInMemoryDiscountTickets() *InMemoryDiscountTickets {
	return &InMemoryDiscountTickets{redeemed: make(map[string]string)}
}

func (d *InMemoryDiscountTickets) ValidateAndRedeem(_ context.Context, req RedeemRequest) (RedeemResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(req.Vouchers) == 0 {
		return RedeemResult{}, &DiscountVendorError{StatusCode: http.StatusBadRequest, Message: "no vouchers"}
	}
	if number, ok := d.redeemed[req.Vouchers[0].Number]; ok {
		return RedeemResult{RedemptionNumber: number}, nil
	}
	number := uuid.NewString()
	for _, v := range req.Vouchers {
		d.redeemed[v.Number] = number
	}
	return RedeemResult{RedemptionNumber: number}, nil
}

// WasRedeemed reports whether a voucher was redeemed.
func (d *InMemoryDiscountTickets) WasRedeemed(voucherNumber string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.redeemed[voucherNumber]
	return ok
}

type pointsStatus int

const (
	pointsPending pointsStatus = iota
	pointsConfirmed
	pointsCanceled
)

type pointsTransaction struct {
	account string
	to      string
	amount  int64 // negative for withdrawals
	status  pointsStatus
}

// InMemoryPointsAccount keeps point balances in memory. Pending withdrawals
// are reserved against the balance until confirmed or canceled.
type InMemoryPointsAccount struct {
	mu       sync.Mutex
	balances map[string]int64
	pending  map[string]*pointsTransaction
}

func NewInMemoryPointsAccount() *InMemoryPointsAccount {
	return &InMemoryPointsAccount{
		balances: make(map[string]int64),
		pending:  make(map[string]*pointsTransaction),
	}
}

func (p *InMemoryPointsAccount) Open(_ context.Context, ownerID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	number := "acc-" + ownerID
	if _, ok := p.balances[number]; ok {
		return "", &AccountVendorError{StatusCode: http.StatusConflict, Message: "account already open"}
	}
	p.balances[number] = 0
	return number, nil
}

func (p *InMemoryPointsAccount) Deposit(_ context.Context, accountNumber string, amount int64, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.balances[accountNumber]; !ok {
		return "", &AccountVendorError{StatusCode: http.StatusNotFound, Message: "unknown account"}
	}
	return p.open(accountNumber, "", amount), nil
}

func (p *InMemoryPointsAccount) Withdraw(_ context.Context, accountNumber string, amount int64, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	balance, ok := p.balances[accountNumber]
	if !ok {
		return "", &AccountVendorError{StatusCode: http.StatusNotFound, Message: "unknown account"}
	}
	if balance < amount {
		return "", &AccountVendorError{StatusCode: http.StatusConflict, Message: "insufficient balance"}
	}
	p.balances[accountNumber] -= amount
	return p.open(accountNumber, "", -amount), nil
}

func (p *InMemoryPointsAccount) Transfer(_ context.Context, fromAccount, toAccount string, amount int64, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	balance, ok := p.balances[fromAccount]
	if _, toOK := p.balances[toAccount]; !ok || !toOK {
		return "", &AccountVendorError{StatusCode: http.StatusNotFound, Message: "unknown account"}
	}
	if balance < amount {
		return "", &AccountVendorError{StatusCode: http.StatusConflict, Message: "insufficient balance"}
	}
	p.balances[fromAccount] -= amount
	return p.open(fromAccount, toAccount, -amount), nil
}

func (p *InMemoryPointsAccount) open(account, to string, amount int64) string {
	id := uuid.NewString()
	p.pending[id] = &pointsTransaction{account: account, to: to, amount: amount, status: pointsPending}
	return id
}

func (p *InMemoryPointsAccount) Confirm(_ context.Context, pointsTransactionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, ok := p.pending[pointsTransactionID]
	if !ok {
		return &AccountVendorError{StatusCode: http.StatusNotFound, Message: "unknown points transaction"}
	}
	switch tx.status {
	case pointsConfirmed:
		return nil
	case pointsCanceled:
		return &AccountVendorError{StatusCode: http.StatusConflict, Message: "points transaction canceled"}
	}
	tx.status = pointsConfirmed
	switch {
	case tx.to != "":
		p.balances[tx.to] -= tx.amount
	case tx.amount > 0:
		p.balances[tx.account] += tx.amount
	}
	return nil
}

func (p *InMemoryPointsAccount) Cancel(_ context.Context, pointsTransactionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, ok := p.pending[pointsTransactionID]
	if !ok {
		return &AccountVendorError{StatusCode: http.StatusNotFound, Message: "unknown points transaction"}
	}
	switch tx.status {
	case pointsCanceled:
		return nil
	case pointsConfirmed:
		return &AccountVendorError{StatusCode: http.StatusConflict, Message: "points transaction confirmed"}
	}
	tx.status = pointsCanceled
	if tx.amount < 0 {
		p.balances[tx.account] -= tx.amount
	}
	return nil
}

// Credit sets up a balance directly (for testing/inspection).
func (p *InMemoryPointsAccount) Credit(accountNumber string, amount int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[accountNumber] += amount
}

// Balance returns the available balance of an account.
func (p *InMemoryPointsAccount) Balance(accountNumber string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[accountNumber]
}

// NewInMemoryAdapters returns in-memory back-ends for local runs and tests.
func NewInMemoryAdapters() Adapters {
	return Adapters{
		Seats:    NewInMemorySeatInventory(),
		Cards:    NewInMemoryCardGateway(),
		Discount: NewInMemoryDiscountTickets(),
		Points:   NewInMemoryPointsAccount(),
		Shop:     ShopCredentials{ShopID: "local", ShopPass: "local"},
	}
}
