package order

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProduct means an item names no product in the catalog.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrInsufficientStock means an item asks for more than the space has left.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrCommitFailed means a write failed or the outcome could not be confirmed.
	// Stock may need a manual audit when it is returned.
	ErrCommitFailed = errors.New("commit failed")
	// ErrQueueBusy means the commit could not be handed to the pipeline in time.
	ErrQueueBusy = errors.New("order queue is busy")
)

// ItemError ties an order-level failure to the product that caused it.
type ItemError struct {
	Product string
	Err     error
}

func (e *ItemError) Error() string { return fmt.Sprintf("%v: %s", e.Err, e.Product) }

func (e *ItemError) Unwrap() error { return e.Err }

// validationError communicates rule violations back to HTTP handlers.
type validationError struct {
	message string
}

func (e validationError) Error() string { return e.message }

func newValidationError(format string, args ...any) error {
	return validationError{message: fmt.Sprintf(format, args...)}
}

// IsValidation helps callers distinguish between malformed requests and commit failures.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}
