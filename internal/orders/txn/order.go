package txn

import "time"

const (
	PriceCurrencyJPY     = "JPY"
	OrderStatusDelivered = "OrderDelivered"
)

// PaymentMethodType names how part of the order was paid.
type PaymentMethodType string

const (
	PaymentCreditCard PaymentMethodType = "CreditCard"
	PaymentMvtk       PaymentMethodType = "Mvtk"
	PaymentPoints     PaymentMethodType = "Points"
)

type PaymentMethod struct {
	Name            string            `json:"name"`
	TypeOf          PaymentMethodType `json:"paymentMethod"`
	PaymentMethodID string            `json:"paymentMethodId"`
	Amount          int64             `json:"amount"`
}

type DiscountCode struct {
	Name         string `json:"name"`
	DiscountCode string `json:"discountCode"`
	Amount       int64  `json:"discount"`
}

// ReservedTicket is the good delivered for one seat.
type ReservedTicket struct {
	TicketToken string    `json:"ticketToken"`
	Screening   Screening `json:"screening"`
	Seat        SeatOffer `json:"seat"`
}

type AcceptedOffer struct {
	ItemOffered   ReservedTicket `json:"itemOffered"`
	Price         int64          `json:"price"`
	PriceCurrency string         `json:"priceCurrency"`
	SellerID      string         `json:"sellerId"`
}

type Customer struct {
	Party
	Contact CustomerContact `json:"contact"`
}

// Order is built at confirm time and persisted later by the CreateOrder task.
type Order struct {
	OrderNumber        string          `json:"orderNumber"`
	ConfirmationNumber string          `json:"confirmationNumber"`
	TransactionID      string          `json:"transactionId"`
	Seller             Party           `json:"seller"`
	Customer           Customer        `json:"customer"`
	AcceptedOffers     []AcceptedOffer `json:"acceptedOffers"`
	PaymentMethods     []PaymentMethod `json:"paymentMethods"`
	DiscountCodes      []DiscountCode  `json:"discounts,omitempty"`
	Price              int64           `json:"price"`
	PriceCurrency      string          `json:"priceCurrency"`
	OrderDate          time.Time       `json:"orderDate"`
	OrderStatus        string          `json:"orderStatus"`
}

// OwnershipInfo grants the buyer one reserved ticket for a bounded period.
type OwnershipInfo struct {
	Identifier   string         `json:"identifier"`
	OwnedBy      Party          `json:"ownedBy"`
	AcquiredFrom Party          `json:"acquiredFrom"`
	OwnedFrom    time.Time      `json:"ownedFrom"`
	OwnedThrough time.Time      `json:"ownedThrough"`
	TypeOfGood   ReservedTicket `json:"typeOfGood"`
}
