package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for the boundary layer.
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION"
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindConflict   ErrorKind = "CONFLICT"
	KindForbidden  ErrorKind = "FORBIDDEN"
)

// Error is a domain-level error. Code is a stable machine-readable identifier
// (e.g. ESTIMATE_LOCKED); Message is safe to show to the user.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches kind sentinels, so errors.Is(err, ErrConflict) holds for every
// conflict regardless of its code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels.
var (
	ErrValidation = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict   = &Error{Kind: KindConflict, Message: "conflict"}
	ErrForbidden  = &Error{Kind: KindForbidden, Message: "forbidden"}
)

// Stable conflict codes.
const (
	CodeEstimateLocked   = "ESTIMATE_LOCKED"
	CodeAlreadyPaid      = "ALREADY_PAID"
	CodeExceedsBalance   = "EXCEEDS_BALANCE"
	CodeTotalBelowPaid   = "TOTAL_BELOW_PAID"
	CodeDuplicate        = "DUPLICATE"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInvalidState     = "INVALID_STATE"
	CodeResourceNotFound = "NOT_FOUND"
)

func newError(kind ErrorKind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return newError(KindValidation, CodeInvalidInput, format, args...)
}

// NotFoundf builds a NotFoundError. Callers must not distinguish "missing"
// from "belongs to another organization".
func NotFoundf(format string, args ...any) error {
	return newError(KindNotFound, CodeResourceNotFound, format, args...)
}

// Conflictf builds a ConflictError carrying a stable code.
func Conflictf(code, format string, args ...any) error {
	return newError(KindConflict, code, format, args...)
}

// KindOf returns the domain kind of err, or "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// CodeOf returns the domain code of err, or "" for infrastructure errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
