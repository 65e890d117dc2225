// Package apperr defines the user-facing failure kinds returned by the
// employee and attendance services.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure. The zero value is an internal error.
type Kind int

const (
	Internal Kind = iota
	BadRequest
	NotFound
	Conflict
	// Invalid is a request whose shape or field values failed validation.
	Invalid
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "bad request"
	case NotFound:
		return "not found"
	case Conflict:
		return "conflict"
	case Invalid:
		return "invalid"
	default:
		return "internal"
	}
}

// Error is a classified failure carrying a human readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func BadRequestf(format string, args ...any) error { return newf(BadRequest, format, args...) }
func NotFoundf(format string, args ...any) error   { return newf(NotFound, format, args...) }
func Conflictf(format string, args ...any) error   { return newf(Conflict, format, args...) }
func Invalidf(format string, args ...any) error    { return newf(Invalid, format, args...) }

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
