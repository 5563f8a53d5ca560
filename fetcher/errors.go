package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Fetch failure categories, used as stats keys and metrics labels.
const (
	CategoryTimeout     = "timeout"
	CategoryConnection  = "connection"
	CategoryForbidden   = "forbidden"
	CategoryNotFound    = "not_found"
	CategoryRateLimited = "rate_limited"
	CategoryOther       = "other"
)

// Error is a fetch failure tagged with its category. Callers branch on
// Category (or Label) rather than on concrete error types.
type Error struct {
	Category string
	Err      error
}

func (e *Error) Error() string {
	return e.Category + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

var statusCategories = map[int]string{
	http.StatusForbidden:       CategoryForbidden,
	http.StatusNotFound:        CategoryNotFound,
	http.StatusTooManyRequests: CategoryRateLimited,
}

// Classify tags a transport error or non-200 status with its fetch failure
// category. Unrecognised failures pass through untagged and label as
// CategoryOther.
func Classify(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Category: CategoryTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Category: CategoryTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &Error{Category: CategoryConnection, Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		if category, ok := statusCategories[statusCode]; ok {
			return &Error{Category: category, Err: wrapped}
		}
		return wrapped
	}

	return err
}

// Label returns the failure category of a classified error.
func Label(err error) string {
	if err == nil {
		return "unknown"
	}
	var fetchErr *Error
	if errors.As(err, &fetchErr) {
		return fetchErr.Category
	}
	return CategoryOther
}
