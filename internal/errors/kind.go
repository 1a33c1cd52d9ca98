package errors

import "errors"

// ErrorKind classifies an error for the caller.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindConcurrency
	KindTransport
	KindBusinessRejection
	KindNotFound
	KindDeclined
	KindUnknown
)

var kindNames = map[ErrorKind]string{
	KindNone:              "none",
	KindValidation:        "validation",
	KindConcurrency:       "concurrency",
	KindTransport:         "transport",
	KindBusinessRejection: "business_rejection",
	KindNotFound:          "not_found",
	KindDeclined:          "declined",
	KindUnknown:           "unknown",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Kind reports which part of the taxonomy err belongs to.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrExceedsStock), errors.Is(err, ErrInvalidQuantity):
		return KindValidation
	case errors.Is(err, ErrAlreadyPending):
		return KindConcurrency
	case errors.Is(err, ErrBusinessRejection):
		return KindBusinessRejection
	case errors.Is(err, ErrTransport), errors.Is(err, ErrSessionExpired), errors.Is(err, ErrInvalidSnapshot):
		return KindTransport
	case errors.Is(err, ErrItemNotFound):
		return KindNotFound
	case errors.Is(err, ErrRemovalDeclined):
		return KindDeclined
	default:
		return KindUnknown
	}
}
