package types

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation   = errors.New("validation_error")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not_found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrFoodPostNotFound = &Error{Kind: ErrNotFound, Reason: "food post not found"}
	ErrClaimNotFound    = &Error{Kind: ErrNotFound, Reason: "claim not found"}
)

// Error is a failed operation with a reason fit to show the caller.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// ErrNotFound is a kind of conflict: the record required by the operation is
// not there.
func (e *Error) Is(target error) bool {
	return target == ErrConflict && e.Kind == ErrNotFound
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Reason: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Reason: fmt.Sprintf(format, args...)}
}

func Unauthorizedf(format string, args ...any) error {
	return &Error{Kind: ErrUnauthorized, Reason: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...any) error {
	return &Error{Kind: ErrForbidden, Reason: fmt.Sprintf(format, args...)}
}

// Kind returns the kind sentinel of err, or nil when err is not an *Error.
func Kind(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
