package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by the cart, the checkout path and the API client.
// Compare with errors.Is; most are wrapped with extra context.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrLocationRequired = errors.New("pickup location is required")
	ErrInvalidLocation  = errors.New("invalid pickup location")

	// transient, eligible for background sync
	ErrNetwork = errors.New("network unavailable")
	ErrTimeout = errors.New("request timeout")

	ErrServer = errors.New("server error")
)

// ServerError is a non-2xx answer from the remote side.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("server error: HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("server error: HTTP %d", e.StatusCode)
}

func (e *ServerError) Is(target error) bool { return target == ErrServer }

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// IsQueueEligible reports whether a failed submission may be queued for background sync.
func IsQueueEligible(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout)
}

// IsCheckoutPrecondition reports errors the user fixes by changing checkout input.
func IsCheckoutPrecondition(err error) bool {
	return errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrLocationRequired) ||
		errors.Is(err, ErrInvalidLocation)
}
