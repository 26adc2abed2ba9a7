package domain

import "errors"

var (
	// ErrInvalidLocation is returned when coordinates fall outside valid ranges.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidTransition is returned when a ride cannot move from its current status.
	ErrInvalidTransition = errors.New("invalid ride transition")

	// ErrNotAssignedDriver is returned when a driver acts on a ride assigned to someone else.
	ErrNotAssignedDriver = errors.New("driver not assigned to this ride")

	// ErrInvalidStatus is returned when a status string is not a known ride status.
	ErrInvalidStatus = errors.New("invalid ride status")

	// ErrInvalidFare is returned when a completion fare is negative or not a number.
	ErrInvalidFare = errors.New("invalid fare")
)
