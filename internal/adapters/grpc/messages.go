package grpc

import (
	"time"

	"marquee/internal/orders/txn"
	"marquee/internal/settlement"
)

// StartRequest opens a transaction. Admission is counted per seller with the
// server's configured limit.
type StartRequest struct {
	Expires       time.Time `json:"expires"`
	Agent         txn.Party `json:"agent"`
	Seller        txn.Party `json:"seller"`
	PassportToken string    `json:"passportToken,omitempty"`
	ClientID      string    `json:"clientId,omitempty"`
}

type TransactionRequest struct {
	TransactionID string `json:"transactionId"`
}

type TransactionResponse struct {
	Transaction txn.Transaction `json:"transaction"`
}

type AuthorizeSeatReservationRequest struct {
	TransactionID string                    `json:"transactionId"`
	Object        txn.SeatReservationObject `json:"object"`
}

type AuthorizeCreditCardRequest struct {
	TransactionID string                 `json:"transactionId"`
	OrderID       string                 `json:"orderId"`
	Amount        int64                  `json:"amount"`
	Card          settlement.CardDetails `json:"card"`
}

type AuthorizeMvtkRequest struct {
	TransactionID string         `json:"transactionId"`
	Object        txn.MvtkObject `json:"object"`
}

type AuthorizeAccountRequest struct {
	TransactionID string            `json:"transactionId"`
	Object        txn.AccountObject `json:"object"`
}

type CancelAuthorizationRequest struct {
	TransactionID string `json:"transactionId"`
	ActionID      string `json:"actionId"`
}

type ActionResponse struct {
	Action txn.AuthorizeAction `json:"action"`
}

type SetCustomerContactRequest struct {
	TransactionID string              `json:"transactionId"`
	Contact       txn.CustomerContact `json:"contact"`
}

type CustomerContactResponse struct {
	Contact txn.CustomerContact `json:"contact"`
}

type ConfirmResponse struct {
	Result txn.TransactionResult `json:"result"`
}
