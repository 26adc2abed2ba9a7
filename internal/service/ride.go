package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ridehail/internal/domain"
	"ridehail/internal/observability"
	"ridehail/internal/redis"
	"ridehail/internal/repository"
)

const (
	defaultLockTTL   = 5 * time.Second
	lockAttempts     = 5
	lockRetryBackoff = 50 * time.Millisecond
	listLimit        = 100
)

// RideService handles ride lifecycle operations. Every transition is
// conditioned on the stored status, so the database decides races between
// drivers; the per-ride lock only keeps side effects of one ride in order.
type RideService struct {
	rideRepo            repository.RideRepository
	tx                  repository.Transactor
	lockStore           redis.LockStoreInterface
	cacheStore          redis.CacheStoreInterface
	fareCalculator      *FareCalculator
	notificationService *NotificationService
	logger              *slog.Logger

	lockTTL time.Duration
	now     func() time.Time
	newID   func() string
}

// NewRideService creates a new RideService. lockStore and cacheStore may be nil.
func NewRideService(
	rideRepo repository.RideRepository,
	tx repository.Transactor,
	lockStore redis.LockStoreInterface,
	cacheStore redis.CacheStoreInterface,
	fareCalculator *FareCalculator,
	notificationService *NotificationService,
	logger *slog.Logger,
) *RideService {
	if logger == nil {
		logger = slog.Default()
	}
	if notificationService == nil {
		notificationService = NewNotificationService(nil, logger)
	}
	return &RideService{
		rideRepo:            rideRepo,
		tx:                  tx,
		lockStore:           lockStore,
		cacheStore:          cacheStore,
		fareCalculator:      fareCalculator,
		notificationService: notificationService,
		logger:              logger,
		lockTTL:             defaultLockTTL,
		now:                 time.Now,
		newID:               uuid.NewString,
	}
}

// SetLockTTL overrides how long a transition may hold the ride lock.
func (s *RideService) SetLockTTL(ttl time.Duration) {
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// CreateRideRequest contains the parameters for creating a ride.
type CreateRideRequest struct {
	UserID      string
	Source      domain.Geopoint
	Destination domain.Geopoint
}

// CreateRide persists a new WAITING ride.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	ride := domain.NewRide(s.newID(), domain.RideRequest{
		UserID:      req.UserID,
		Source:      req.Source,
		Destination: req.Destination,
	}, s.now())

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}

	observability.RidesCreatedTotal.Inc()
	s.logger.InfoContext(ctx, "ride created", "ride_id", ride.ID, "user_id", ride.UserID)
	s.notificationService.NotifyRideCreated(ctx, ride)

	return ride, nil
}

// ListRides returns every WAITING ride and every ride assigned to driverID.
func (s *RideService) ListRides(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.rideRepo.ListForDriver(ctx, driverID, listLimit)
}

// GetRide returns a ride, served from cache when possible.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	if s.cacheStore != nil {
		cached, err := s.cacheStore.GetRide(ctx, rideID)
		if err != nil {
			s.logger.WarnContext(ctx, "ride cache read failed", "ride_id", rideID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if s.cacheStore != nil {
		if err := s.cacheStore.SetRide(ctx, ride); err != nil {
			s.logger.WarnContext(ctx, "ride cache write failed", "ride_id", rideID, "error", err)
		}
	}
	return ride, nil
}

// AcceptRide assigns driverID to a WAITING ride. It fails with
// domain.ErrInvalidTransition if the ride already left WAITING.
func (s *RideService) AcceptRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	var accepted *domain.Ride
	err := s.withRideLock(ctx, rideID, func() error {
		at := s.now()
		return s.tx.WithinTx(ctx, func(rides repository.RideRepository, drivers repository.DriverRepository) error {
			if err := rides.MarkAccepted(ctx, rideID, driverID, at); err != nil {
				return err
			}
			if err := setDriverStatus(ctx, drivers, driverID, domain.DriverStatusOnTrip); err != nil {
				return err
			}
			ride, err := rides.GetByID(ctx, rideID)
			if err != nil {
				return err
			}
			accepted = ride
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			err = fmt.Errorf("accept ride %s: %w", rideID, domain.ErrInvalidTransition)
		}
		s.recordTransition(ctx, "accept", rideID, driverID, err)
		return nil, err
	}

	s.recordTransition(ctx, "accept", rideID, driverID, nil)
	s.invalidate(ctx, rideID)
	s.notificationService.NotifyRideAccepted(ctx, accepted)
	return accepted, nil
}

// FinishRide completes an IN_PROGRESS ride held by driverID and attaches the fare.
// It fails with domain.ErrInvalidTransition if the ride is not IN_PROGRESS and
// with domain.ErrNotAssignedDriver if another driver holds it.
func (s *RideService) FinishRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	var finished *domain.Ride
	err := s.withRideLock(ctx, rideID, func() error {
		ride, err := s.rideRepo.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if err := ride.CheckFinish(driverID); err != nil {
			return err
		}

		at := s.now()
		fare := s.fareCalculator.Calculate(ride, at)

		err = s.tx.WithinTx(ctx, func(rides repository.RideRepository, drivers repository.DriverRepository) error {
			if err := rides.MarkCompleted(ctx, rideID, driverID, fare, at); err != nil {
				return err
			}
			return setDriverStatus(ctx, drivers, driverID, domain.DriverStatusOnline)
		})
		if errors.Is(err, repository.ErrStaleState) {
			return s.classifyFinishConflict(ctx, rideID, driverID)
		}
		if err != nil {
			return err
		}

		if err := ride.Finish(driverID, fare, at); err != nil {
			return err
		}
		finished = ride
		return nil
	})
	if err != nil {
		s.recordTransition(ctx, "finish", rideID, driverID, err)
		return nil, err
	}

	s.recordTransition(ctx, "finish", rideID, driverID, nil)
	observability.FareAmount.Observe(*finished.Fare)
	s.invalidate(ctx, rideID)
	s.notificationService.NotifyRideCompleted(ctx, finished)
	return finished, nil
}

// CancelRide moves a WAITING or IN_PROGRESS ride to CANCELLED and frees its driver.
func (s *RideService) CancelRide(ctx context.Context, rideID, reason string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	var cancelled *domain.Ride
	err := s.withRideLock(ctx, rideID, func() error {
		at := s.now()
		return s.tx.WithinTx(ctx, func(rides repository.RideRepository, drivers repository.DriverRepository) error {
			if err := rides.MarkCancelled(ctx, rideID, reason, at); err != nil {
				return err
			}
			ride, err := rides.GetByID(ctx, rideID)
			if err != nil {
				return err
			}
			if ride.DriverID != "" {
				if err := setDriverStatus(ctx, drivers, ride.DriverID, domain.DriverStatusOnline); err != nil {
					return err
				}
			}
			cancelled = ride
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			err = fmt.Errorf("cancel ride %s: %w", rideID, domain.ErrInvalidTransition)
		}
		s.recordTransition(ctx, "cancel", rideID, "", err)
		return nil, err
	}

	s.recordTransition(ctx, "cancel", rideID, cancelled.DriverID, nil)
	s.invalidate(ctx, rideID)
	s.notificationService.NotifyRideCancelled(ctx, cancelled)
	return cancelled, nil
}

// classifyFinishConflict reloads a ride whose conditional update matched
// nothing and reports why.
func (s *RideService) classifyFinishConflict(ctx context.Context, rideID, driverID string) error {
	current, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if err := current.CheckFinish(driverID); err != nil {
		return err
	}
	return fmt.Errorf("finish ride %s: %w", rideID, domain.ErrInvalidTransition)
}

func (s *RideService) withRideLock(ctx context.Context, rideID string, fn func() error) error {
	if s.lockStore == nil {
		return fn()
	}

	var token string
	for attempt := 0; ; attempt++ {
		t, ok, err := s.lockStore.AcquireRideLock(ctx, rideID, s.lockTTL)
		if err != nil {
			return err
		}
		if ok {
			token = t
			break
		}
		if attempt+1 >= lockAttempts {
			return ErrRideBusy
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}

	defer func() {
		if err := s.lockStore.ReleaseRideLock(context.WithoutCancel(ctx), rideID, token); err != nil {
			s.logger.WarnContext(ctx, "ride lock release failed", "ride_id", rideID, "error", err)
		}
	}()

	return fn()
}

func (s *RideService) invalidate(ctx context.Context, rideID string) {
	if s.cacheStore == nil {
		return
	}
	if err := s.cacheStore.InvalidateRide(ctx, rideID); err != nil {
		s.logger.WarnContext(ctx, "ride cache invalidation failed", "ride_id", rideID, "error", err)
	}
}

func (s *RideService) recordTransition(ctx context.Context, transition, rideID, driverID string, err error) {
	switch {
	case err == nil:
		observability.RideTransitionsTotal.WithLabelValues(transition, observability.OutcomeOK).Inc()
		s.logger.InfoContext(ctx, "ride transition", "transition", transition, "ride_id", rideID, "driver_id", driverID)
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotAssignedDriver), errors.Is(err, ErrRideBusy):
		observability.RideTransitionsTotal.WithLabelValues(transition, observability.OutcomeConflict).Inc()
		s.logger.InfoContext(ctx, "ride transition rejected", "transition", transition, "ride_id", rideID, "driver_id", driverID, "reason", err)
	default:
		observability.RideTransitionsTotal.WithLabelValues(transition, observability.OutcomeError).Inc()
		s.logger.ErrorContext(ctx, "ride transition failed", "transition", transition, "ride_id", rideID, "driver_id", driverID, "error", err)
	}
}

// setDriverStatus updates a known driver. Drivers without a record are tolerated.
func setDriverStatus(ctx context.Context, drivers repository.DriverRepository, driverID string, status domain.DriverStatus) error {
	err := drivers.UpdateStatus(ctx, driverID, status)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

func validateCreateRequest(req CreateRideRequest) error {
	if req.UserID == "" {
		return ErrInvalidUserID
	}
	if !req.Source.Valid() {
		return ErrInvalidPickupLocation
	}
	if !req.Destination.Valid() {
		return ErrInvalidDestinationLocation
	}
	return nil
}
