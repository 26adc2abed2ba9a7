package domain

import (
	"math"
	"strings"
	"time"
)

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusWaiting    RideStatus = "WAITING"
	RideStatusInProgress RideStatus = "IN_PROGRESS"
	RideStatusCompleted  RideStatus = "COMPLETED"
	RideStatusCancelled  RideStatus = "CANCELLED"
)

// ParseRideStatus normalizes (uppercases+trims) and validates a status string.
func ParseRideStatus(in string) (RideStatus, error) {
	status := RideStatus(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the ride status constants.
func (s RideStatus) Valid() bool {
	switch s {
	case RideStatusWaiting, RideStatusInProgress, RideStatusCompleted, RideStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s RideStatus) CanTransitionTo(next RideStatus) bool {
	switch s {
	case RideStatusWaiting:
		return next == RideStatusInProgress || next == RideStatusCancelled
	case RideStatusInProgress:
		return next == RideStatusCompleted || next == RideStatusCancelled
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// LocationSlot is one of the two points a rider picks before booking.
type LocationSlot int

const (
	SlotSource LocationSlot = iota + 1
	SlotDestination
)

// Valid reports whether the slot is Source or Destination.
func (s LocationSlot) Valid() bool {
	return s == SlotSource || s == SlotDestination
}

func (s LocationSlot) String() string {
	switch s {
	case SlotSource:
		return "source"
	case SlotDestination:
		return "destination"
	default:
		return "unknown"
	}
}

// RideRequest is what a rider submits once both slots are filled.
type RideRequest struct {
	UserID      string
	Source      Geopoint
	Destination Geopoint
}

// Ride is the server-of-record ride entity.
// DriverID is empty while the ride is WAITING; Fare is set only on completion.
type Ride struct {
	ID           string
	UserID       string
	DriverID     string
	Pickup       Geopoint
	Dropoff      Geopoint
	Status       RideStatus
	Fare         *float64
	CreatedAt    time.Time
	AcceptedAt   time.Time
	CompletedAt  time.Time
	CancelledAt  time.Time
	CancelReason string
}

// NewRide builds a WAITING ride from a request.
func NewRide(id string, req RideRequest, now time.Time) *Ride {
	return &Ride{
		ID:        id,
		UserID:    req.UserID,
		Pickup:    req.Source,
		Dropoff:   req.Destination,
		Status:    RideStatusWaiting,
		CreatedAt: now,
	}
}

// Accept assigns the driver and moves the ride to IN_PROGRESS.
func (r *Ride) Accept(driverID string, at time.Time) error {
	if !r.Status.CanTransitionTo(RideStatusInProgress) {
		return ErrInvalidTransition
	}
	r.DriverID = driverID
	r.Status = RideStatusInProgress
	r.AcceptedAt = at
	return nil
}

// CheckFinish reports whether driverID may complete the ride now, without mutating it.
func (r *Ride) CheckFinish(driverID string) error {
	if r.Status != RideStatusInProgress {
		return ErrInvalidTransition
	}
	if r.DriverID != driverID {
		return ErrNotAssignedDriver
	}
	return nil
}

// Finish records the fare and completes the ride. The fare is never changed afterwards
// because COMPLETED has no outgoing transition.
func (r *Ride) Finish(driverID string, fare float64, at time.Time) error {
	if err := r.CheckFinish(driverID); err != nil {
		return err
	}
	if math.IsNaN(fare) || math.IsInf(fare, 0) || fare < 0 {
		return ErrInvalidFare
	}
	f := fare
	r.Fare = &f
	r.Status = RideStatusCompleted
	r.CompletedAt = at
	return nil
}

// Cancel moves a WAITING or IN_PROGRESS ride to CANCELLED. No fare is attached.
func (r *Ride) Cancel(reason string, at time.Time) error {
	if !r.Status.CanTransitionTo(RideStatusCancelled) {
		return ErrInvalidTransition
	}
	r.Status = RideStatusCancelled
	r.CancelledAt = at
	r.CancelReason = reason
	return nil
}

// Clone returns a deep copy, including the fare pointer.
func (r *Ride) Clone() *Ride {
	c := *r
	if r.Fare != nil {
		f := *r.Fare
		c.Fare = &f
	}
	return &c
}
