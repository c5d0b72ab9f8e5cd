// Package service implements the business rules of accounts, channels,
// users and reviews on top of the repositories.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/review-channels/internal/model"
)

// Kind classifies a service failure.  The HTTP layer maps each kind to a
// status code.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindBadRequest
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindExternal
	// KindMultipleChoices is not a failure of the request: the caller must
	// pick one of the attached candidates and retry.
	KindMultipleChoices
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBadRequest:
		return "bad_request"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExternal:
		return "external"
	case KindMultipleChoices:
		return "multiple_choices"
	default:
		return "unknown"
	}
}

// Error is returned by every service method for expected failures.
// Anything else is an internal error.
type Error struct {
	Kind       Kind
	Message    string
	Candidates []model.Game
}

func (e *Error) Error() string { return e.Message }

func newError(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func badRequest(format string, args ...any) *Error {
	return newError(KindBadRequest, format, args...)
}

func unauthenticated(format string, args ...any) *Error {
	return newError(KindAuthentication, format, args...)
}

func forbidden(format string, args ...any) *Error {
	return newError(KindAuthorization, format, args...)
}

func notFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func external(format string, args ...any) *Error {
	return newError(KindExternal, format, args...)
}

// KindOf returns the kind of err, or 0 when err is not a service error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
