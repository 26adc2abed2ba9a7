package apiclient

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedResponseFormat is returned when a 2xx response body does not have the expected shape.
	ErrUnexpectedResponseFormat = errors.New("unexpected response format")

	// ErrUnexpectedStatus is returned for non-2xx responses that are not a recognised rejection.
	ErrUnexpectedStatus = errors.New("unexpected http status")

	// ErrRejected is returned when the server answers success=false without a known reason code.
	ErrRejected = errors.New("request rejected by server")

	// ErrTimeout is returned when a call exceeds the client timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrUnreachable is returned when the server cannot be reached.
	ErrUnreachable = errors.New("server unreachable")

	// ErrNotFound is returned when the server does not know the ride.
	ErrNotFound = errors.New("ride not found")

	// ErrRideBusy is returned when another change to the ride is still in progress on the server.
	ErrRideBusy = errors.New("ride is busy")

	// ErrMissingID is returned when a required user, driver or ride id is empty.
	ErrMissingID = errors.New("missing identifier")
)

// StatusError carries the HTTP status and server message of a failed call.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is(err, ErrUnexpectedStatus) match.
func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
