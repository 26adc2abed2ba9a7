package repository

import (
	"context"
	"time"

	"ridehail/internal/domain"
)

// RideRepository defines the persistence operations for rides.
//
// The Mark methods are conditional on the stored status, so concurrent
// transitions on one ride are arbitrated by the store. When the condition
// does not hold they return ErrStaleState (or ErrNotFound for a missing ride).
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// ListForDriver returns the rides a driver may see: every WAITING ride
	// and every ride assigned to the driver. Open rides come first, oldest
	// first; finished rides follow, newest first.
	ListForDriver(ctx context.Context, driverID string, limit int) ([]*domain.Ride, error)

	// MarkAccepted moves a WAITING ride to IN_PROGRESS for driverID.
	MarkAccepted(ctx context.Context, id, driverID string, at time.Time) error

	// MarkCompleted moves an IN_PROGRESS ride held by driverID to COMPLETED with the fare.
	MarkCompleted(ctx context.Context, id, driverID string, fare float64, at time.Time) error

	// MarkCancelled moves a WAITING or IN_PROGRESS ride to CANCELLED.
	MarkCancelled(ctx context.Context, id, reason string, at time.Time) error
}
