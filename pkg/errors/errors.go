package benome_errors

import (
	"errors"
	"fmt"
)

// Error kinds. Every error that crosses a service boundary matches one of these with errors.Is.
var (
	ErrAuthentication     = errors.New("authentication failed")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrValidation         = errors.New("validation failed")
	ErrPersistence        = errors.New("persistence failure")
	ErrDeliveryBestEffort = errors.New("delivery dropped")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrRateLimited        = errors.New("rate limited")
)

// Error carries a kind, a client-safe message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) error {
	return New(ErrValidation, message)
}

func NotAuthorized(message string) error {
	return New(ErrNotAuthorized, message)
}

func Authentication(cause error) error {
	return Wrap(ErrAuthentication, "invalid credentials", cause)
}

// Persistence wraps a storage failure. Already classified errors pass through untouched.
func Persistence(op string, cause error) error {
	if cause == nil {
		return nil
	}
	if IsKnown(cause) {
		return cause
	}
	return Wrap(ErrPersistence, op, cause)
}

// IsKnown reports whether err already matches one of the error kinds.
func IsKnown(err error) bool {
	for _, kind := range []error{
		ErrAuthentication, ErrNotAuthorized, ErrValidation, ErrPersistence,
		ErrDeliveryBestEffort, ErrNotFound, ErrConflict, ErrRateLimited,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Code returns the wire code sent to clients for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrNotAuthorized):
		return "NOT_AUTHORIZED"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrPersistence):
		return "PERSISTENCE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// Message returns a client-safe description of err. Causes are never exposed.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if errors.Is(appErr.Kind, ErrPersistence) {
			return "failed to save changes"
		}
		if appErr.Message != "" {
			return appErr.Message
		}
		return appErr.Kind.Error()
	}
	if IsKnown(err) && !errors.Is(err, ErrPersistence) {
		return err.Error()
	}
	return "internal error"
}
