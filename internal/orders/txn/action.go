package txn

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType is the typeOf value of every ledger entry.
const ActionType = "AuthorizeAction"

// ActionStatus follows the schema.org action status vocabulary.
type ActionStatus string

const (
	ActionActive    ActionStatus = "ActiveActionStatus"
	ActionCompleted ActionStatus = "CompletedActionStatus"
	ActionCanceled  ActionStatus = "CanceledActionStatus"
	ActionFailed    ActionStatus = "FailedActionStatus"
)

// Terminal reports whether no further transition is permitted from s.
func (s ActionStatus) Terminal() bool {
	return s == ActionCompleted || s == ActionCanceled || s == ActionFailed
}

// ObjectType tags the payload carried by an authorize action.
type ObjectType string

const (
	ObjectCreditCard      ObjectType = "CreditCard"
	ObjectSeatReservation ObjectType = "SeatReservation"
	ObjectMvtk            ObjectType = "Mvtk"
	ObjectAccount         ObjectType = "Account"
)

// Screening identifies one showing in the reservation system.
type Screening struct {
	TheaterCode string `json:"theaterCode"`
	DateCode    string `json:"dateCode"`
	TitleCode   string `json:"titleCode"`
	TitleBranch string `json:"titleBranch"`
	TimeBegin   string `json:"timeBegin"`
	ScreenCode  string `json:"screenCode"`
}

// SeatOffer is one seat with its ticket type. Seats paid by a discount voucher
// carry the voucher number, its ticket type and the amount the voucher covers.
type SeatOffer struct {
	SeatSection    string `json:"seatSection"`
	SeatNumber     string `json:"seatNumber"`
	TicketCode     string `json:"ticketCode"`
	TicketName     string `json:"ticketName,omitempty"`
	Price          int64  `json:"price"`
	MvtkNumber     string `json:"mvtkNumber,omitempty"`
	MvtkTicketType string `json:"mvtkTicketType,omitempty"`
	MvtkAppPrice   int64  `json:"mvtkAppPrice,omitempty"`
}

type SeatReservationObject struct {
	Screening Screening   `json:"screening"`
	Offers    []SeatOffer `json:"offers"`
}

type SeatReservationResult struct {
	HoldToken string `json:"holdToken"`
}

type CreditCardObject struct {
	OrderID          string `json:"orderId"`
	Amount           int64  `json:"amount"`
	Method           string `json:"method"`
	ShopID           string `json:"shopId"`
	MaskedCardNumber string `json:"maskedCardNumber,omitempty"`
}

type CreditCardResult struct {
	AccessID   string `json:"accessId"`
	AccessPass string `json:"accessPass"`
	Approve    string `json:"approve"`
	TranID     string `json:"tranId"`
}

// MvtkTicket is a count of one ticket type redeemable with a voucher.
type MvtkTicket struct {
	TypeCode string `json:"typeCode"`
	Count    int    `json:"count"`
}

type MvtkVoucher struct {
	Number  string       `json:"number"`
	PIN     string       `json:"pin"`
	Tickets []MvtkTicket `json:"tickets"`
}

// MvtkObject is the discount-ticket redemption request. The screening fields use
// the discount service's own encoding and are reconciled against the seat hold.
// SeatActionID is set by the service to the seat action it was reconciled
// against.
type MvtkObject struct {
	Vouchers      []MvtkVoucher `json:"vouchers"`
	SiteCode      string        `json:"siteCode"`
	TitleCode     string        `json:"titleCode"`
	ScreeningDate string        `json:"screeningDate"`
	ScreeningTime string        `json:"screeningTime"`
	ScreenCode    string        `json:"screenCode"`
	SeatNumbers   []string      `json:"seatNumbers"`
	Price         int64         `json:"price"`
	SeatActionID  string        `json:"seatActionId,omitempty"`
}

type MvtkResult struct {
	VoucherNumbers []string `json:"voucherNumbers"`
}

type AccountObject struct {
	AccountNumber string `json:"accountNumber"`
	Amount        int64  `json:"amount"`
	Notes         string `json:"notes,omitempty"`
}

type AccountResult struct {
	PointsTransactionID string `json:"pointsTransactionId"`
}

// ActionObject is a tagged union keyed by TypeOf; exactly one payload is set.
type ActionObject struct {
	TypeOf          ObjectType             `json:"typeOf"`
	TransactionID   string                 `json:"transactionId"`
	CreditCard      *CreditCardObject      `json:"creditCard,omitempty"`
	SeatReservation *SeatReservationObject `json:"seatReservation,omitempty"`
	Mvtk            *MvtkObject            `json:"mvtk,omitempty"`
	Account         *AccountObject         `json:"account,omitempty"`
}

// Validate checks that the payload matches the tag.
func (o ActionObject) Validate() error {
	set := 0
	for _, present := range []bool{o.CreditCard != nil, o.SeatReservation != nil, o.Mvtk != nil, o.Account != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: action object must carry exactly one payload, got %d", ErrArgument, set)
	}
	var ok bool
	switch o.TypeOf {
	case ObjectCreditCard:
		ok = o.CreditCard != nil
	case ObjectSeatReservation:
		ok = o.SeatReservation != nil
	case ObjectMvtk:
		ok = o.Mvtk != nil
	case ObjectAccount:
		ok = o.Account != nil
	default:
		return fmt.Errorf("%w: unknown action object type %q", ErrArgument, o.TypeOf)
	}
	if !ok {
		return fmt.Errorf("%w: payload does not match action object type %q", ErrArgument, o.TypeOf)
	}
	return nil
}

func (o *ActionObject) UnmarshalJSON(data []byte) error {
	type plain ActionObject
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if err := ActionObject(decoded).Validate(); err != nil {
		return err
	}
	*o = ActionObject(decoded)
	return nil
}

// ActionResult is the outcome of a completed authorization. Price is always
// set; the typed payload matches the action's object type.
type ActionResult struct {
	Price           int64                  `json:"price"`
	CreditCard      *CreditCardResult      `json:"creditCard,omitempty"`
	SeatReservation *SeatReservationResult `json:"seatReservation,omitempty"`
	Mvtk            *MvtkResult            `json:"mvtk,omitempty"`
	Account         *AccountResult         `json:"account,omitempty"`
}

// Validate checks the price and that the payload matches the object type.
func (r ActionResult) Validate(typeOf ObjectType) error {
	if r.Price < 0 {
		return fmt.Errorf("%w: result price must be >= 0", ErrArgument)
	}
	var ok bool
	switch typeOf {
	case ObjectCreditCard:
		ok = r.CreditCard != nil && r.SeatReservation == nil && r.Mvtk == nil && r.Account == nil
	case ObjectSeatReservation:
		ok = r.SeatReservation != nil && r.CreditCard == nil && r.Mvtk == nil && r.Account == nil
	case ObjectMvtk:
		ok = r.Mvtk != nil && r.CreditCard == nil && r.SeatReservation == nil && r.Account == nil
	case ObjectAccount:
		ok = r.Account != nil && r.CreditCard == nil && r.SeatReservation == nil && r.Mvtk == nil
	default:
		return fmt.Errorf("%w: unknown action object type %q", ErrArgument, typeOf)
	}
	if !ok {
		return fmt.Errorf("%w: result payload does not match %q", ErrArgument, typeOf)
	}
	return nil
}

// ActionError records why an authorization was given up.
type ActionError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// NewActionError captures err for diagnostics.
func NewActionError(err error) *ActionError {
	if err == nil {
		return nil
	}
	return &ActionError{
		Kind:    Kind(err),
		Message: err.Error(),
		Detail:  fmt.Sprintf("%+v", err),
	}
}

// AuthorizeAction is one ledger entry. Result is present iff the action is
// completed; CanceledResult keeps the result of a canceled action so the
// compensating call can be replayed.
type AuthorizeAction struct {
	ID             string        `json:"id"`
	TypeOf         string        `json:"typeOf"`
	ActionStatus   ActionStatus  `json:"actionStatus"`
	Agent          Party         `json:"agent"`
	Recipient      Party         `json:"recipient"`
	Object         ActionObject  `json:"object"`
	Result         *ActionResult `json:"result,omitempty"`
	CanceledResult *ActionResult `json:"canceledResult,omitempty"`
	Error          *ActionError  `json:"error,omitempty"`
	StartDate      time.Time     `json:"startDate"`
	EndDate        *time.Time    `json:"endDate,omitempty"`
}

// TransactionID returns the transaction the action belongs to.
func (a AuthorizeAction) TransactionID() string {
	return a.Object.TransactionID
}

// ActionTransition is a compare-and-swap on an action's status.
type ActionTransition struct {
	ID            string
	TransactionID string
	From          []ActionStatus
	To            ActionStatus
	EndDate       time.Time
	Result        *ActionResult
	Error         *ActionError
}
