package bookings

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable code of a pipeline failure.
type Kind string

const (
	KindValidation          Kind = "VALIDATION_ERROR"
	KindNotFound            Kind = "NOT_FOUND"
	KindProviderInactive    Kind = "PROVIDER_INACTIVE"
	KindSubscriptionLimit   Kind = "SUBSCRIPTION_LIMIT_EXCEEDED"
	KindInsufficientStock   Kind = "INSUFFICIENT_STOCK"
	KindMinimumOrderNotMet  Kind = "MINIMUM_ORDER_NOT_MET"
	KindConflict            Kind = "CONFLICT"
	KindResourceUnavailable Kind = "RESOURCE_UNAVAILABLE"
	KindInternal            Kind = "INTERNAL"
)

// Sentinels for errors.Is checks against a *Error of the same kind.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrProviderInactive    = &Error{Kind: KindProviderInactive}
	ErrSubscriptionLimit   = &Error{Kind: KindSubscriptionLimit}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock}
	ErrMinimumOrderNotMet  = &Error{Kind: KindMinimumOrderNotMet}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrResourceUnavailable = &Error{Kind: KindResourceUnavailable}
	ErrInternal            = &Error{Kind: KindInternal}
)

// Error is a terminal pipeline failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// HTTPStatus maps the kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindProviderInactive, KindInsufficientStock, KindMinimumOrderNotMet:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindSubscriptionLimit:
		return http.StatusForbidden
	case KindConflict, KindResourceUnavailable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func internalError(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: op + " failed", Err: err}
}

// AsError returns err as a *Error, wrapping unknown errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internalError("booking", err)
}
