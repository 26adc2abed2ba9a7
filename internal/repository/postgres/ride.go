package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

const rideColumns = `id, user_id, driver_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, status, fare, created_at, accepted_at, completed_at, cancelled_at, cancel_reason`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, user_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.UserID,
		ride.Pickup.Latitude,
		ride.Pickup.Longitude,
		ride.Dropoff.Latitude,
		ride.Dropoff.Longitude,
		ride.Status,
		ride.CreatedAt,
	)
	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// ListForDriver returns every WAITING ride plus the rides assigned to driverID.
// Open rides (WAITING, IN_PROGRESS) come first, oldest first, so the driver's
// finished history can never push them past the limit. History follows,
// newest first.
func (r *RideRepository) ListForDriver(ctx context.Context, driverID string, limit int) ([]*domain.Ride, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE status = $1 OR driver_id = $2
		ORDER BY
			CASE WHEN status IN ($1, $3) THEN 0 ELSE 1 END,
			CASE WHEN status IN ($1, $3) THEN created_at END ASC,
			created_at DESC,
			id ASC
		LIMIT $4
	`

	rows, err := r.q.QueryContext(ctx, query, domain.RideStatusWaiting, driverID, domain.RideStatusInProgress, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rides := make([]*domain.Ride, 0)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// MarkAccepted moves a WAITING ride to IN_PROGRESS.
func (r *RideRepository) MarkAccepted(ctx context.Context, id, driverID string, at time.Time) error {
	query := `
		UPDATE rides
		SET status = $1, driver_id = $2, accepted_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.execTransition(ctx, id, query,
		domain.RideStatusInProgress, driverID, at, id, domain.RideStatusWaiting,
	)
}

// MarkCompleted moves an IN_PROGRESS ride held by driverID to COMPLETED.
func (r *RideRepository) MarkCompleted(ctx context.Context, id, driverID string, fare float64, at time.Time) error {
	query := `
		UPDATE rides
		SET status = $1, fare = $2, completed_at = $3
		WHERE id = $4 AND status = $5 AND driver_id = $6
	`
	return r.execTransition(ctx, id, query,
		domain.RideStatusCompleted, fare, at, id, domain.RideStatusInProgress, driverID,
	)
}

// MarkCancelled moves a WAITING or IN_PROGRESS ride to CANCELLED.
func (r *RideRepository) MarkCancelled(ctx context.Context, id, reason string, at time.Time) error {
	var cancelReason sql.NullString
	if reason != "" {
		cancelReason = sql.NullString{String: reason, Valid: true}
	}

	query := `
		UPDATE rides
		SET status = $1, cancelled_at = $2, cancel_reason = $3
		WHERE id = $4 AND status IN ($5, $6)
	`
	return r.execTransition(ctx, id, query,
		domain.RideStatusCancelled, at, cancelReason, id, domain.RideStatusWaiting, domain.RideStatusInProgress,
	)
}

// execTransition runs a conditional update. When no row matched it tells a
// missing ride apart from one in another state.
func (r *RideRepository) execTransition(ctx context.Context, id, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rides WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStaleState
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID sql.NullString
	var fare sql.NullFloat64
	var acceptedAt, completedAt, cancelledAt sql.NullTime
	var cancelReason sql.NullString

	if err := row.Scan(
		&ride.ID,
		&ride.UserID,
		&driverID,
		&ride.Pickup.Latitude,
		&ride.Pickup.Longitude,
		&ride.Dropoff.Latitude,
		&ride.Dropoff.Longitude,
		&ride.Status,
		&fare,
		&ride.CreatedAt,
		&acceptedAt,
		&completedAt,
		&cancelledAt,
		&cancelReason,
	); err != nil {
		return nil, err
	}

	if driverID.Valid {
		ride.DriverID = driverID.String
	}
	if fare.Valid {
		f := fare.Float64
		ride.Fare = &f
	}
	if acceptedAt.Valid {
		ride.AcceptedAt = acceptedAt.Time
	}
	if completedAt.Valid {
		ride.CompletedAt = completedAt.Time
	}
	if cancelledAt.Valid {
		ride.CancelledAt = cancelledAt.Time
	}
	if cancelReason.Valid {
		ride.CancelReason = cancelReason.String
	}
	return &ride, nil
}
