package application

import "errors"

var (
	// ErrInsufficientStock: reservation rejected, nothing to compensate.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrPaymentFailed: capture declined or unreachable after the stock was
	// already reserved; the reservation is released before this surfaces.
	ErrPaymentFailed          = errors.New("payment failed")
	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderCannotBeCancelled = errors.New("order cannot be cancelled")
	// ErrUpstreamUnavailable: a collaborator stayed unreachable or kept
	// returning server errors after retries were exhausted.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrInvalidRequest      = errors.New("invalid request")
)
