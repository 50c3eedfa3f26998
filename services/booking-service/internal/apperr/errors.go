// Package apperr classifies failures into the kinds callers react to.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindStorage Kind = iota
	KindValidation
	KindNotFound
	KindInvalidTransition
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	default:
		return "storage"
	}
}

// Error is a classified failure. Code is stable and machine-readable.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrInvalidRequest        = &Error{Kind: KindValidation, Code: "invalid_request", Message: "invalid request"}
	ErrClientNotFound        = &Error{Kind: KindNotFound, Code: "client_not_found", Message: "client not found"}
	ErrSubjectNotFound       = &Error{Kind: KindNotFound, Code: "subject_not_found", Message: "subject not found"}
	ErrServiceNotFound       = &Error{Kind: KindNotFound, Code: "service_not_found", Message: "service not found"}
	ErrAppointmentNotFound   = &Error{Kind: KindNotFound, Code: "appointment_not_found", Message: "appointment not found"}
	ErrInvoiceNotFound       = &Error{Kind: KindNotFound, Code: "invoice_not_found", Message: "invoice not found"}
	ErrInvalidTransition     = &Error{Kind: KindInvalidTransition, Code: "invalid_transition", Message: "status transition not allowed"}
	ErrInvoiceNumberConflict = &Error{Kind: KindConflict, Code: "invoice_number_conflict", Message: "invoice number allocation conflicted, retry the request"}
)

// Invalid returns a validation error with a specific message.
func Invalid(format string, args ...any) error {
	return &Error{Kind: KindValidation, Code: ErrInvalidRequest.Code, Message: fmt.Sprintf(format, args...)}
}

// Transition returns an invalid-transition error naming both ends.
func Transition(from, to string) error {
	return &Error{
		Kind:    KindInvalidTransition,
		Code:    ErrInvalidTransition.Code,
		Message: fmt.Sprintf("cannot move from %s to %s", from, to),
	}
}

// Final returns an invalid-transition error for a source status that accepts
// no further moves.
func Final(from string) error {
	return &Error{
		Kind:    KindInvalidTransition,
		Code:    ErrInvalidTransition.Code,
		Message: fmt.Sprintf("appointment is %s and can no longer change status", from),
	}
}

// Storage wraps an infrastructure failure.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindStorage, Code: "storage_error", Message: op, Err: err}
}

// KindOf classifies err; anything unclassified is a storage failure.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStorage
}

// CodeOf returns the machine-readable code for err.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "storage_error"
}

// MessageOf returns a caller-safe message; storage failures never expose their cause.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindStorage {
		return ae.Message
	}
	return "internal error"
}
