package service

import (
	"errors"
	"fmt"
)

// ErrInsufficientBalance is returned when a point consumption asks for
// more than the user's available balance.
var ErrInsufficientBalance = errors.New("insufficient point balance")

// ErrPastDate is returned when a reservation targets a date in the past.
var ErrPastDate = errors.New("date is in the past")

// ErrInvalidStatus is returned when an operation is not allowed from
// the reservation's current status.
var ErrInvalidStatus = errors.New("invalid reservation status")

// ErrPaymentCancelled is returned when the user cancelled the payment
// at the gateway.  The reservation is force-cancelled but this is not
// treated as an application failure.
var ErrPaymentCancelled = errors.New("payment cancelled by user")

// ErrBlacklisted is returned when a blocked identity tries to create a
// reservation.
var ErrBlacklisted = errors.New("user is blacklisted")

// ValidationError rejects a request before any mutation happens.  The
// message is safe to show to the user.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExternalServiceError wraps a failure of an external collaborator
// (payment gateway unreachable, timed out, or answering garbage).  On
// the paid path the caller must treat it as a payment failure and
// force the reservation to cancelled.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// IsExternal reports whether err is an ExternalServiceError.
func IsExternal(err error) bool {
	var ee *ExternalServiceError
	return errors.As(err, &ee)
}
