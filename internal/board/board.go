// Package board keeps a driver's view of the rides on offer and issues
// accept and finish commands against it.
//
// The board never owns ride state. It caches the last server snapshot of
// every ride, applies an optimistic change while a command is outstanding,
// and then either keeps that change (the server confirmed it) or reverts to
// the snapshot. A state conflict also forces a fresh listing.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/failure"
)

var (
	// ErrActionPending is returned for a command on a row that is still awaiting a response.
	ErrActionPending = errors.New("an action on this ride is already pending")

	// ErrUnknownRide is returned for a ride that is not on the board.
	ErrUnknownRide = errors.New("ride is not on the board")

	// ErrMissingDriver is returned when the board has no driver id.
	ErrMissingDriver = errors.New("missing driver id")
)

// RideAPI is the server surface the board drives.
type RideAPI interface {
	ListRides(ctx context.Context, driverID string) ([]domain.Ride, error)
	AcceptRide(ctx context.Context, rideID, driverID string) error
	FinishRide(ctx context.Context, rideID, driverID string) (float64, error)
}

// Board is a single driver's ride board. It is safe for concurrent use;
// commands on different rides may run in parallel.
type Board struct {
	api      RideAPI
	driverID string
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	order   []string
	view    map[string]domain.Ride
	server  map[string]domain.Ride
	pending map[string]bool
	loaded  bool
}

// New creates an empty, unloaded board for driverID.
func New(api RideAPI, driverID string, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		api:      api,
		driverID: driverID,
		logger:   logger,
		now:      time.Now,
		view:     make(map[string]domain.Ride),
		server:   make(map[string]domain.Ride),
		pending:  make(map[string]bool),
	}
}

// DriverID returns the driver the board belongs to.
func (b *Board) DriverID() string {
	return b.driverID
}

// ListRides fetches the driver's rides and replaces the cached snapshot.
// Rows with a command in flight keep their optimistic state until it resolves.
// An empty result is not an error; State reports StateEmpty.
func (b *Board) ListRides(ctx context.Context) ([]Row, error) {
	const op = "list rides"

	if b.driverID == "" {
		return nil, failure.Validation(op, "Please log in as a driver first.", ErrMissingDriver)
	}

	rides, err := b.api.ListRides(ctx, b.driverID)
	if err != nil {
		b.logger.Warn("listing rides failed", "driver_id", b.driverID, "error", err)
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.order = b.order[:0]
	server := make(map[string]domain.Ride, len(rides))
	view := make(map[string]domain.Ride, len(rides))
	for _, ride := range rides {
		if _, dup := server[ride.ID]; dup {
			continue
		}
		b.order = append(b.order, ride.ID)
		server[ride.ID] = ride
		if b.pending[ride.ID] {
			if optimistic, ok := b.view[ride.ID]; ok {
				view[ride.ID] = optimistic
				continue
			}
		}
		view[ride.ID] = ride
	}
	b.server = server
	b.view = view
	b.loaded = true

	b.logger.Debug("rides listed", "driver_id", b.driverID, "count", len(b.order))
	return b.rowsLocked(), nil
}

// Rows returns a copy of the current rows in server order.
func (b *Board) Rows() []Row {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.rowsLocked()
}

// Row returns the row for rideID.
func (b *Board) Row(rideID string) (Row, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ride, ok := b.view[rideID]
	if !ok {
		return Row{}, false
	}
	return newRow(ride, b.driverID, b.pending[rideID]), true
}

// State reports whether the board is unloaded, empty, or has rows.
func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case !b.loaded:
		return StateUnloaded
	case len(b.order) == 0:
		return StateEmpty
	default:
		return StateReady
	}
}

// AcceptAndRefresh marks the ride IN_PROGRESS for this driver and asks the
// server to accept it. The call is issued whatever the cached status says;
// the server decides.
func (b *Board) AcceptAndRefresh(ctx context.Context, rideID string) (Row, error) {
	const op = "accept ride"

	at := b.now()
	apply := func(r *domain.Ride) {
		r.Status = domain.RideStatusInProgress
		r.DriverID = b.driverID
		r.AcceptedAt = at
	}
	if err := b.begin(op, rideID, apply); err != nil {
		return Row{}, err
	}

	err := b.api.AcceptRide(ctx, rideID, b.driverID)
	return b.settle(ctx, op, rideID, apply, err)
}

// FinishAndRefresh marks the ride COMPLETED and asks the server to finish it,
// attaching the returned fare on success.
func (b *Board) FinishAndRefresh(ctx context.Context, rideID string) (Row, error) {
	const op = "finish ride"

	at := b.now()
	var fare *float64
	apply := func(r *domain.Ride) {
		r.Status = domain.RideStatusCompleted
		r.CompletedAt = at
		if fare != nil {
			v := *fare
			r.Fare = &v
		}
	}
	if err := b.begin(op, rideID, apply); err != nil {
		return Row{}, err
	}

	amount, err := b.api.FinishRide(ctx, rideID, b.driverID)
	if err == nil {
		fare = &amount
	}
	return b.settle(ctx, op, rideID, apply, err)
}

// begin applies the optimistic change and marks the row pending.
func (b *Board) begin(op, rideID string, apply func(*domain.Ride)) error {
	if b.driverID == "" {
		return failure.Validation(op, "Please log in as a driver first.", ErrMissingDriver)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending[rideID] {
		return failure.Validation(op, "This ride is still being updated.", ErrActionPending)
	}
	current, ok := b.view[rideID]
	if !ok {
		return failure.Validation(op, "This ride is not on your board. Refresh and try again.", fmt.Errorf("%w: %s", ErrUnknownRide, rideID))
	}

	optimistic := *current.Clone()
	apply(&optimistic)

	b.pending[rideID] = true
	b.view[rideID] = optimistic
	return nil
}

// settle reconciles the row with the outcome of its command. Both outcomes
// start from the latest server snapshot, which a listing may have replaced
// while the command was in flight: success re-applies the change to it,
// failure reverts to it.
func (b *Board) settle(ctx context.Context, op, rideID string, apply func(*domain.Ride), callErr error) (Row, error) {
	b.mu.Lock()
	delete(b.pending, rideID)
	if callErr == nil {
		base, ok := b.server[rideID]
		if !ok {
			base = b.view[rideID]
		}
		confirmed := *base.Clone()
		apply(&confirmed)

		b.server[rideID] = confirmed
		if _, ok := b.view[rideID]; ok {
			b.view[rideID] = confirmed
		}
		row := newRow(confirmed, b.driverID, false)
		b.mu.Unlock()

		b.logger.Info(op+" confirmed", "driver_id", b.driverID, "ride_id", rideID, "status", string(confirmed.Status))
		return row, nil
	}

	last, ok := b.server[rideID]
	if ok {
		b.view[rideID] = last
	}
	b.mu.Unlock()

	b.logger.Warn(op+" failed, reverted", "driver_id", b.driverID, "ride_id", rideID, "kind", failure.KindOf(callErr).String(), "error", callErr)

	if failure.Is(callErr, failure.KindStateConflict) {
		if _, err := b.ListRides(ctx); err != nil {
			b.logger.Error("refresh after conflict failed", "driver_id", b.driverID, "ride_id", rideID, "error", err)
		}
	}

	row, _ := b.Row(rideID)
	return row, callErr
}

func (b *Board) rowsLocked() []Row {
	rows := make([]Row, 0, len(b.order))
	for _, id := range b.order {
		rows = append(rows, newRow(b.view[id], b.driverID, b.pending[id]))
	}
	return rows
}
