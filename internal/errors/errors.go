// Package errors defines the error taxonomy shared by the dialog flows,
// the order lifecycle and the batch jobs.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure by how the router reacts to it.
type Kind string

const (
	// KindValidation is malformed user input: re-prompt, keep the step.
	KindValidation Kind = "validation"
	// KindNotFound is a missing entity.
	KindNotFound Kind = "not_found"
	// KindForbidden answers with a fixed denial and discloses nothing about
	// the target. Acting on another merchant's record is forbidden too.
	KindForbidden Kind = "forbidden"
	// KindDependency is a store or channel failure.
	KindDependency Kind = "dependency"
)

// DomainError carries a stable code next to the user facing message.
type DomainError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is matches on Code so wrapped copies compare equal to the sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func Validation(code, message string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: code, Message: message}
}

func NotFound(code, message string) *DomainError {
	return &DomainError{Kind: KindNotFound, Code: code, Message: message}
}

func Forbidden(code, message string) *DomainError {
	return &DomainError{Kind: KindForbidden, Code: code, Message: message}
}

// Dependency wraps an infrastructure error.
func Dependency(op string, err error) *DomainError {
	return &DomainError{Kind: KindDependency, Code: "DEPENDENCY", Message: op, Err: err}
}

var (
	ErrNotFound  = NotFound("NOT_FOUND", "record not found")
	ErrForbidden = Forbidden("FORBIDDEN", "not allowed")
)

// KindOf returns the Kind of the first DomainError in the chain.
// Anything unclassified is treated as a dependency failure.
func KindOf(err error) Kind {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Kind
	}
	return KindDependency
}

// MessageOf returns the user facing message of a DomainError, or "".
func MessageOf(err error) string {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Message
	}
	return ""
}

// Is and As re-export the standard helpers so callers need one import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func New(text string) error { return stderrors.New(text) }
