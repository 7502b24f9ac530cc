package storefront

import (
	"context"
	"errors"

	"storefront/internal/reqqueue"
)

const (
	fallbackLogin    = "Login failed. Please try again."
	fallbackRegister = "Registration failed. Please try again."
	fallbackProfile  = "Profile update failed. Please try again."
	fallbackOrder    = "Order creation failed. Please try again."
	fallbackOrders   = "Could not load your orders. Please try again."
	fallbackProducts = "Could not load products. Please try again."

	msgInvalidQuantity = "Invalid quantity"
)

// Error carries the message shown to the user alongside the cause.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status behind e, or 0 when there was none.
func (e *Error) StatusCode() int {
	var he *reqqueue.HTTPError
	if errors.As(e.Err, &he) {
		return he.StatusCode
	}
	return 0
}

// userMessage picks, in order: the server's message, the HTTP status text,
// the transport error text, then fallback.
func userMessage(err error, fallback string) string {
	var he *reqqueue.HTTPError
	if errors.As(err, &he) {
		if he.Message != "" {
			return he.Message
		}
		if he.Status != "" {
			return he.Status
		}
		return fallback
	}
	var te *reqqueue.TransportError
	if errors.As(err, &te) && !errors.Is(err, context.Canceled) {
		if msg := te.Error(); msg != "" {
			return msg
		}
	}
	return fallback
}
