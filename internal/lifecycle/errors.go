package lifecycle

import "errors"

var (
	// ErrValidation marks bad caller input; never retried.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means order number generation kept colliding.
	ErrConflict = errors.New("order number conflict")
	// ErrOrderNotFound means a payment referenced an order that does not
	// exist locally, a data integrity problem upstream.
	ErrOrderNotFound = errors.New("order not found")
)
