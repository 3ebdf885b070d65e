package errors

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")

	ErrQuantityBelowMinimum = errors.New("quantity below minimum order")
	ErrEmptyDeliveryAddress = errors.New("delivery address is required")
	ErrInvalidListing       = errors.New("invalid listing")
	ErrOutOfStock           = errors.New("listing is out of stock")

	ErrInvalidTransition   = errors.New("invalid order transition")
	ErrBusy                = errors.New("operation already in progress")
	ErrChargeInFlight      = errors.New("payment already in progress")
	ErrConflict            = errors.New("order was modified concurrently")
	ErrOrderRejected       = errors.New("order rejected by validator")
	ErrPaymentUnreconciled = errors.New("payment awaiting reconciliation")
	ErrUnknownReference    = errors.New("unknown payment reference")
)

// TransientError marks an infrastructure failure the caller may retry.
// The order flow stays in the stage it was in when the error occurred.
type TransientError struct {
	Op  string
	Err error
}

// Transient wraps err as TransientError. It returns nil for a nil err.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: temporarily unavailable: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Retryable reports that the failed operation can be issued again.
func (e *TransientError) Retryable() bool { return true }

// ReconciliationError reports a captured payment whose order record could not be updated.
// It must never be retried as a new charge.
type ReconciliationError struct {
	OrderID   string
	Reference string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payment %s captured for order %s but not recorded: %v", e.Reference, e.OrderID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient failure. Reconciliation errors are never retryable,
// even when the underlying cause was transient.
func IsRetryable(err error) bool {
	var rec *ReconciliationError
	if errors.As(err, &rec) {
		return false
	}
	var tr *TransientError
	return errors.As(err, &tr)
}
