package orders

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"marquee/internal/orders/txn"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is assumed for telephone numbers without a country code.
const DefaultPhoneRegion = "JP"

// NormalizeContact validates contact and returns it with the telephone number
// in E.164 form.
func NormalizeContact(contact txn.CustomerContact) (txn.CustomerContact, error) {
	contact.GivenName = strings.TrimSpace(contact.GivenName)
	contact.FamilyName = strings.TrimSpace(contact.FamilyName)
	contact.Email = strings.TrimSpace(contact.Email)
	contact.Telephone = strings.TrimSpace(contact.Telephone)

	switch {
	case contact.GivenName == "":
		return txn.CustomerContact{}, fmt.Errorf("%w: givenName", txn.ErrArgumentNull)
	case contact.FamilyName == "":
		return txn.CustomerContact{}, fmt.Errorf("%w: familyName", txn.ErrArgumentNull)
	case contact.Email == "":
		return txn.CustomerContact{}, fmt.Errorf("%w: email", txn.ErrArgumentNull)
	case contact.Telephone == "":
		return txn.CustomerContact{}, fmt.Errorf("%w: telephone", txn.ErrArgumentNull)
	}

	addr, err := mail.ParseAddress(contact.Email)
	if err != nil || addr.Address != contact.Email {
		return txn.CustomerContact{}, fmt.Errorf("%w: invalid email %q", txn.ErrArgument, contact.Email)
	}

	num, err := phonenumbers.Parse(contact.Telephone, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return txn.CustomerContact{}, fmt.Errorf("%w: invalid telephone %q", txn.ErrArgument, contact.Telephone)
	}
	contact.Telephone = phonenumbers.Format(num, phonenumbers.E164)
	return contact, nil
}

// SetCustomerContact stores the buyer's contact on an InProgress transaction.
func (s *Service) SetCustomerContact(ctx context.Context, agentID, transactionID string, contact txn.CustomerContact) (txn.CustomerContact, error) {
	if _, err := s.inProgress(ctx, agentID, transactionID); err != nil {
		return txn.CustomerContact{}, err
	}
	normalized, err := NormalizeContact(contact)
	if err != nil {
		return txn.CustomerContact{}, err
	}
	if err := s.transactions.SetCustomerContact(ctx, transactionID, normalized); err != nil {
		return txn.CustomerContact{}, err
	}
	return normalized, nil
}
