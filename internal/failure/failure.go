// Package failure classifies client-side errors into a closed set of kinds so
// callers branch on a discriminant instead of matching message strings.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind int

const (
	// KindUnknown is reported for errors that were not produced through this package.
	KindUnknown Kind = iota
	// KindValidation covers missing or invalid input caught before any network call.
	KindValidation
	// KindTransport covers unreachable servers, timeouts and non-2xx statuses.
	KindTransport
	// KindProtocol covers 2xx responses whose body is unparseable or has an unexpected shape.
	KindProtocol
	// KindStateConflict covers transitions the server rejected because the ride is not in the assumed state.
	KindStateConflict
	// KindCapability covers geolocation being unsupported, denied or timed out.
	KindCapability
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindStateConflict:
		return "state_conflict"
	case KindCapability:
		return "capability"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Message is safe to show to a user.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error.
func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Validation(op, message string, err error) *Error {
	return New(KindValidation, op, message, err)
}

func Transport(op, message string, err error) *Error {
	return New(KindTransport, op, message, err)
}

func Protocol(op, message string, err error) *Error {
	return New(KindProtocol, op, message, err)
}

func StateConflict(op, message string, err error) *Error {
	return New(KindStateConflict, op, message, err)
}

func Capability(op, message string, err error) *Error {
	return New(KindCapability, op, message, err)
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns a human-readable description for any error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return "Something went wrong. Please try again."
}
