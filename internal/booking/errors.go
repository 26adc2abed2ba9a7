package booking

import "errors"

var (
	// ErrInvalidSlot is returned for a slot that is neither source nor destination.
	ErrInvalidSlot = errors.New("invalid location slot")

	// ErrNoOpenSession is returned when Confirm is called without an open picking session.
	ErrNoOpenSession = errors.New("no location selection in progress")

	// ErrSelectionIncomplete is returned when a request is built before both slots are filled.
	ErrSelectionIncomplete = errors.New("pickup and drop-off must both be selected")

	// ErrAlreadyInFlight is returned when a submission is attempted while another is outstanding.
	ErrAlreadyInFlight = errors.New("ride request already in flight")

	// ErrSubmissionFailed wraps every failure of the create-ride call.
	ErrSubmissionFailed = errors.New("ride submission failed")

	// ErrMissingUser is returned when no user id is supplied.
	ErrMissingUser = errors.New("missing user id")
)
