package txn

import "time"

// TransactionType is the only transaction kind handled here.
const TransactionType = "PlaceOrder"

// TransactionStatus captures where a place-order transaction is in its lifecycle.
type TransactionStatus string

const (
	TransactionInProgress TransactionStatus = "InProgress"
	TransactionConfirmed  TransactionStatus = "Confirmed"
	TransactionExpired    TransactionStatus = "Expired"
	TransactionCanceled   TransactionStatus = "Canceled"
)

// Terminal reports whether no state machine transition leaves s.
func (s TransactionStatus) Terminal() bool {
	return s != TransactionInProgress
}

// ExportationStatus tracks conversion of a finished transaction into tasks.
type ExportationStatus string

const (
	ExportUnexported ExportationStatus = "Unexported"
	ExportExporting  ExportationStatus = "Exporting"
	ExportExported   ExportationStatus = "Exported"
)

// PartyType distinguishes buyers from sellers.
type PartyType string

const (
	PartyPerson       PartyType = "Person"
	PartyOrganization PartyType = "Organization"
	PartyMovieTheater PartyType = "MovieTheater"
)

// Membership is set on authenticated member buyers.
type Membership struct {
	TypeOf           string `json:"typeOf"`
	MembershipNumber string `json:"membershipNumber"`
}

// Party is either side of a transaction or an authorization.
type Party struct {
	ID       string      `json:"id"`
	TypeOf   PartyType   `json:"typeOf"`
	Name     string      `json:"name,omitempty"`
	MemberOf *Membership `json:"memberOf,omitempty"`
}

// CustomerContact is collected from the buyer before confirmation.
type CustomerContact struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
	Email      string `json:"email"`
	Telephone  string `json:"telephone"`
}

// TransactionObject is the mutable working set of an in-progress transaction.
type TransactionObject struct {
	PassportToken   string           `json:"passportToken,omitempty"`
	ClientID        string           `json:"clientId,omitempty"`
	CustomerContact *CustomerContact `json:"customerContact,omitempty"`
	// AuthorizeActions is a snapshot of the completed actions taken at confirm.
	AuthorizeActions []AuthorizeAction `json:"authorizeActions,omitempty"`
}

// TransactionResult is present only on confirmed transactions.
type TransactionResult struct {
	Order          Order           `json:"order"`
	OwnershipInfos []OwnershipInfo `json:"ownershipInfos"`
}

// Transaction is the aggregate root of a place-order checkout.
type Transaction struct {
	ID                     string             `json:"id"`
	TypeOf                 string             `json:"typeOf"`
	Status                 TransactionStatus  `json:"status"`
	Agent                  Party              `json:"agent"`
	Seller                 Party              `json:"seller"`
	Object                 TransactionObject  `json:"object"`
	Result                 *TransactionResult `json:"result,omitempty"`
	Expires                time.Time          `json:"expires"`
	StartDate              time.Time          `json:"startDate"`
	EndDate                *time.Time         `json:"endDate,omitempty"`
	TasksExportationStatus ExportationStatus  `json:"tasksExportationStatus"`
	TasksExportStartedAt   *time.Time         `json:"tasksExportStartedAt,omitempty"`
	TasksExportedAt        *time.Time         `json:"tasksExportedAt,omitempty"`
	Tasks                  []string           `json:"tasks,omitempty"`
}

// OwnedBy reports whether agentID is the buyer of the transaction.
func (t Transaction) OwnedBy(agentID string) bool {
	return agentID != "" && t.Agent.ID == agentID
}
