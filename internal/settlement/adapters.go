package settlement

import (
	"context"

	"marquee/internal/orders/txn"
)

// HoldRequest asks the reservation system to hold seats for one screening.
type HoldRequest struct {
	Screening txn.Screening
	Seats     []txn.SeatOffer
}

// BuyerInfo is sent to the reservation system when a hold becomes a sale.
type BuyerInfo struct {
	Name      string
	Email     string
	Telephone string
	Price     int64
}

// SeatInventory is the external seat reservation system.
type SeatInventory interface {
	Hold(ctx context.Context, req HoldRequest) (holdToken string, err error)
	Release(ctx context.Context, holdToken string) error
	Confirm(ctx context.Context, holdToken string, buyer BuyerInfo) (reservationNumber string, err error)
}

// JobCode is the card gateway's trade state / alteration verb.
type JobCode string

const (
	JobCheck   JobCode = "CHECK"
	JobCapture JobCode = "CAPTURE"
	JobAuth    JobCode = "AUTH"
	JobSales   JobCode = "SALES"
	JobVoid    JobCode = "VOID"
	JobReturn  JobCode = "RETURN"
)

// ShopCredentials identify the seller's shop at the card gateway.
type ShopCredentials struct {
	ShopID   string
	ShopPass string
}

// AccessToken is issued by EntryTran and addresses one trade.
type AccessToken struct {
	AccessID   string
	AccessPass string
}

// CardDetails are forwarded to the gateway and never persisted.
type CardDetails struct {
	Method       string
	CardNo       string
	Expire       string
	SecurityCode string
	Token        string
	MemberID     string
	CardSeq      string
}

type ExecResult struct {
	Approve string
	TranID  string
}

// Trade is the gateway's current view of an order.
type Trade struct {
	OrderID    string
	Status     JobCode
	AccessID   string
	AccessPass string
	Amount     int64
}

// CardGateway is the external credit card gateway.
type CardGateway interface {
	EntryTran(ctx context.Context, shop ShopCredentials, orderID string, amount int64) (AccessToken, error)
	ExecTran(ctx context.Context, token AccessToken, orderID string, card CardDetails) (ExecResult, error)
	AlterTran(ctx context.Context, shop ShopCredentials, token AccessToken, job JobCode, amount int64) error
	SearchTrade(ctx context.Context, shop ShopCredentials, orderID string) (Trade, error)
}

// RedeemRequest redeems discount vouchers against assigned seats.
type RedeemRequest struct {
	Vouchers      []txn.MvtkVoucher
	SiteCode      string
	TitleCode     string
	ScreeningDate string
	ScreeningTime string
	ScreenCode    string
	SeatNumbers   []string
	Telephone     string
}

type RedeemResult struct {
	RedemptionNumber string
}

// DiscountTickets is the external discount voucher service.
type DiscountTickets interface {
	ValidateAndRedeem(ctx context.Context, req RedeemRequest) (RedeemResult, error)
}

// PointsAccount is the external points ledger. Withdraw, Deposit and Transfer
// open pending point transactions that are later confirmed or canceled.
type PointsAccount interface {
	Open(ctx context.Context, ownerID string) (accountNumber string, err error)
	Deposit(ctx context.Context, accountNumber string, amount int64, notes string) (pointsTransactionID string, err error)
	Withdraw(ctx context.Context, accountNumber string, amount int64, notes string) (pointsTransactionID string, err error)
	Transfer(ctx context.Context, fromAccount, toAccount string, amount int64, notes string) (pointsTransactionID string, err error)
	Confirm(ctx context.Context, pointsTransactionID string) error
	Cancel(ctx context.Context, pointsTransactionID string) error
}

// Adapters groups the settlement back-ends used by orders and tasks.
type Adapters struct {
	Seats    SeatInventory
	Cards    CardGateway
	Discount DiscountTickets
	Points   PointsAccount
	// Shop is the card gateway shop of the seller.
	Shop ShopCredentials
}
