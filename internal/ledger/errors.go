package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotInitialized = errors.New("account not initialized")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrPositionNotFound      = errors.New("position not found")
	ErrInsufficientVolume    = errors.New("insufficient available volume")
	ErrInvalidAction         = errors.New("invalid request")
)

type InsufficientFundsError struct {
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %.2f, available %.2f", e.Required, e.Available)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

type PositionNotFoundError struct {
	Code string
}

func (e *PositionNotFoundError) Error() string {
	return fmt.Sprintf("position not found: %s", e.Code)
}

func (e *PositionNotFoundError) Unwrap() error { return ErrPositionNotFound }

// InsufficientVolumeError is returned when a SELL exceeds the settled
// (available) volume, even if the total volume would cover it.
type InsufficientVolumeError struct {
	Code      string
	Required  int64
	Available int64
}

func (e *InsufficientVolumeError) Error() string {
	return fmt.Sprintf("insufficient available volume for %s: required %d, available %d", e.Code, e.Required, e.Available)
}

func (e *InsufficientVolumeError) Unwrap() error { return ErrInsufficientVolume }

// InvalidRequestError names the offending field of a malformed request.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidRequestError) Unwrap() error { return ErrInvalidAction }

func invalid(field, format string, args ...any) error {
	return &InvalidRequestError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a business rejection rather than a
// storage or infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrAccountNotInitialized) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrPositionNotFound) ||
		errors.Is(err, ErrInsufficientVolume) ||
		errors.Is(err, ErrInvalidAction)
}
