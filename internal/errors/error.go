// Package errors provides the error types surfaced by cart operations.
package errors

import (
	"errors"
	"fmt"
)

var ErrItemNotFound = errors.New("cart item not found")
var ErrItemExists = errors.New("cart item already exists")
var ErrInvalidQuantity = errors.New("invalid quantity")
var ErrInvalidSnapshot = errors.New("invalid cart snapshot")

var ErrExceedsStock = errors.New("requested quantity exceeds available stock")
var ErrAlreadyPending = errors.New("an update for this item is already in progress")
var ErrRemovalDeclined = errors.New("removal was not confirmed")

var ErrTransport = errors.New("cart service is unavailable")
var ErrBusinessRejection = errors.New("cart service rejected the change")
var ErrSessionExpired = errors.New("session expired")

// GenericFailureMessage is shown to users for transport failures.
const GenericFailureMessage = "Could not update your cart. Please try again."

// BusinessRejectionError is returned when the cart service answered but refused the change.
type BusinessRejectionError struct {
	Op      string
	Message string
}

func (e *BusinessRejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, ErrBusinessRejection)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrBusinessRejection, e.Message)
}

// Unwrap lets errors.Is match ErrBusinessRejection.
func (e *BusinessRejectionError) Unwrap() error {
	return ErrBusinessRejection
}

// TransportError is returned when the cart service could not be reached or did not answer in time.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrTransport, e.Err)
}

// Unwrap returns both the cause and ErrTransport so either can be matched.
func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// UserMessage returns the text a UI should display for err.
func UserMessage(err error) string {
	var rejection *BusinessRejectionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rejection) && rejection.Message != "":
		return rejection.Message
	case errors.Is(err, ErrTransport):
		return GenericFailureMessage
	default:
		return err.Error()
	}
}
