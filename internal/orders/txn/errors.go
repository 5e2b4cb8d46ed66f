package txn

import (
	"context"
	"errors"
)

// Domain error kinds. Wrap them with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrArgument           = errors.New("invalid argument")
	ErrArgumentNull       = errors.New("missing argument")
	ErrAlreadyInUse       = errors.New("already in use")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrNotFound, "NotFound"},
	{ErrForbidden, "Forbidden"},
	{ErrArgumentNull, "ArgumentNull"},
	{ErrArgument, "Argument"},
	{ErrAlreadyInUse, "AlreadyInUse"},
	{ErrServiceUnavailable, "ServiceUnavailable"},
	{ErrRateLimitExceeded, "RateLimitExceeded"},
}

// Kind names the taxonomy entry an error belongs to, or "Unclassified".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Canceled"
	}
	return "Unclassified"
}
