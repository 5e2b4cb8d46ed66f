package settlement

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"marquee/internal/orders/txn"
)

// ErrCircuitOpen indicates the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Card gateway error codes with a dedicated classification.
const (
	CardCodeBusy           = "E92000001"
	CardCodeBusyRetryLater = "E92000002"
	CardCodeDuplicateOrder = "E01040010"
)

// CardGatewayError is returned by card gateway clients. Codes holds the
// vendor ErrInfo codes; StatusCode is the HTTP status of the reply.
type CardGatewayError struct {
	StatusCode int
	Codes      []string
	Message    string
}

func (e *CardGatewayError) Error() string {
	return fmt.Sprintf("card gateway: status %d codes [%s]: %s", e.StatusCode, strings.Join(e.Codes, ","), e.Message)
}

// CardCodeKind maps one card gateway code to a domain error kind. Codes
// without a dedicated mapping are Argument errors when the gateway rejected
// the request, otherwise unclassified (nil).
func CardCodeKind(code string, badRequest bool) error {
	switch code {
	case CardCodeBusy, CardCodeBusyRetryLater:
		return txn.ErrRateLimitExceeded
	case CardCodeDuplicateOrder:
		return txn.ErrAlreadyInUse
	}
	if badRequest {
		return txn.ErrArgument
	}
	return nil
}

// ClassifyCardError wraps err with its domain kind, keeping the vendor error
// reachable through errors.As.
func ClassifyCardError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCircuitOpen) {
		return fmt.Errorf("%w: %w", txn.ErrServiceUnavailable, err)
	}
	var gwErr *CardGatewayError
	if !errors.As(err, &gwErr) {
		return fmt.Errorf("card gateway: %w", err)
	}
	badRequest := gwErr.StatusCode == http.StatusBadRequest
	// Dedicated codes take precedence over Argument.
	var kind error
	for _, code := range gwErr.Codes {
		k := CardCodeKind(code, badRequest)
		if k == nil {
			continue
		}
		if kind == nil || kind == txn.ErrArgument {
			kind = k
		}
	}
	if kind == nil && badRequest {
		kind = txn.ErrArgument
	}
	if kind == nil {
		return fmt.Errorf("card gateway: %w", err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// SeatReasonAlreadySold is reported when a requested seat is taken.
const SeatReasonAlreadySold = "AlreadySold"

// SeatVendorError is returned by reservation system clients.
type SeatVendorError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *SeatVendorError) Error() string {
	return fmt.Sprintf("seat inventory: status %d %s: %s", e.StatusCode, e.Reason, e.Message)
}

// SeatErrorKind maps a reservation system reply to a domain error kind.
func SeatErrorKind(statusCode int, reason string) error {
	switch {
	case reason == SeatReasonAlreadySold:
		return txn.ErrAlreadyInUse
	case statusCode >= http.StatusInternalServerError:
		return txn.ErrServiceUnavailable
	case statusCode >= http.StatusBadRequest:
		return txn.ErrArgument
	}
	return nil
}

func ClassifySeatError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCircuitOpen) {
		return fmt.Errorf("%w: %w", txn.ErrServiceUnavailable, err)
	}
	var seatErr *SeatVendorError
	if !errors.As(err, &seatErr) {
		return fmt.Errorf("seat inventory: %w", err)
	}
	kind := SeatErrorKind(seatErr.StatusCode, seatErr.Reason)
	if kind == nil {
		return fmt.Errorf("seat inventory: %w", err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// AccountVendorError is returned by points service clients.
type AccountVendorError struct {
	StatusCode int
	Message    string
}

func (e *AccountVendorError) Error() string {
	return fmt.Sprintf("points account: status %d: %s", e.StatusCode, e.Message)
}

// AccountErrorKind maps a points service status code to a domain error kind.
func AccountErrorKind(statusCode int) error {
	switch statusCode {
	case http.StatusBadRequest:
		return txn.ErrArgument
	case http.StatusForbidden:
		return txn.ErrForbidden
	case http.StatusNotFound:
		return txn.ErrNotFound
	case http.StatusConflict:
		return txn.ErrAlreadyInUse
	case http.StatusTooManyRequests:
		return txn.ErrRateLimitExceeded
	}
	if statusCode >= http.StatusInternalServerError {
		return txn.ErrServiceUnavailable
	}
	return nil
}

func ClassifyAccountError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCircuitOpen) {
		return fmt.Errorf("%w: %w", txn.ErrServiceUnavailable, err)
	}
	var accErr *AccountVendorError
	if !errors.As(err, &accErr) {
		return fmt.Errorf("points account: %w", err)
	}
	kind := AccountErrorKind(accErr.StatusCode)
	if kind == nil {
		return fmt.Errorf("points account: %w", err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// DiscountVendorError is returned by discount voucher clients.
type DiscountVendorError struct {
	StatusCode int
	Message    string
}

func (e *DiscountVendorError) Error() string {
	return fmt.Sprintf("discount tickets: status %d: %s", e.StatusCode, e.Message)
}

func ClassifyDiscountError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCircuitOpen) {
		return fmt.Errorf("%w: %w", txn.ErrServiceUnavailable, err)
	}
	var discErr *DiscountVendorError
	if !errors.As(err, &discErr) {
		return fmt.Errorf("discount tickets: %w", err)
	}
	switch {
	case discErr.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", txn.ErrServiceUnavailable, err)
	case discErr.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: %w", txn.ErrArgument, err)
	}
	return fmt.Errorf("discount tickets: %w", err)
}
