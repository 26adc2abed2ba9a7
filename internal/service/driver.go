package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/events"
	"ridehail/internal/observability"
	"ridehail/internal/redis"
	"ridehail/internal/repository"
)

// DriverService handles driver operations.
type DriverService struct {
	positionStore redis.PositionStoreInterface
	driverRepo    repository.DriverRepository
	stream        events.PositionPublisher
	logger        *slog.Logger
	now           func() time.Time
}

// NewDriverService creates a new DriverService. A nil stream only logs.
func NewDriverService(
	positionStore redis.PositionStoreInterface,
	driverRepo repository.DriverRepository,
	stream events.PositionPublisher,
	logger *slog.Logger,
) *DriverService {
	if logger == nil {
		logger = slog.Default()
	}
	if stream == nil {
		stream = events.NewLogPublisher(logger)
	}
	return &DriverService{
		positionStore: positionStore,
		driverRepo:    driverRepo,
		stream:        stream,
		logger:        logger,
		now:           time.Now,
	}
}

// UpdateLocationRequest contains the parameters for updating driver location.
type UpdateLocationRequest struct {
	DriverID string
	Lat      float64
	Lng      float64
}

// UpdateLocation overwrites the driver's latest position. An OFFLINE driver
// comes ONLINE; a driver ON_TRIP keeps that status.
func (s *DriverService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) (*domain.DriverPosition, error) {
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}

	point := domain.Geopoint{Latitude: req.Lat, Longitude: req.Lng}
	if !point.Valid() {
		observability.DriverLocationUpdatesTotal.WithLabelValues(observability.OutcomeConflict).Inc()
		return nil, ErrInvalidLocation
	}

	pos := domain.DriverPosition{DriverID: req.DriverID, Location: point, CapturedAt: s.now()}
	if err := s.positionStore.Save(ctx, pos); err != nil {
		observability.DriverLocationUpdatesTotal.WithLabelValues(observability.OutcomeError).Inc()
		return nil, err
	}

	if err := s.bringOnline(ctx, req.DriverID); err != nil {
		observability.DriverLocationUpdatesTotal.WithLabelValues(observability.OutcomeError).Inc()
		return nil, err
	}

	if err := s.stream.PublishPosition(ctx, pos); err != nil {
		observability.EventsPublishedTotal.WithLabelValues("position", "driver.position", observability.OutcomeError).Inc()
		s.logger.WarnContext(ctx, "driver position publish failed", "driver_id", req.DriverID, "error", err)
	} else {
		observability.EventsPublishedTotal.WithLabelValues("position", "driver.position", observability.OutcomeOK).Inc()
	}

	observability.DriverLocationUpdatesTotal.WithLabelValues(observability.OutcomeOK).Inc()
	s.logger.DebugContext(ctx, "driver location updated", "driver_id", req.DriverID, "point", point.String())
	return &pos, nil
}

// GetPosition returns the latest reported position of a driver.
func (s *DriverService) GetPosition(ctx context.Context, driverID string) (*domain.DriverPosition, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	pos, err := s.positionStore.Get(ctx, driverID)
	if errors.Is(err, redis.ErrPositionNotFound) {
		return nil, repository.ErrNotFound
	}
	return pos, err
}

// SetDriverOffline removes the driver's position and marks them OFFLINE.
func (s *DriverService) SetDriverOffline(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if err := s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOffline); err != nil {
		return err
	}
	return s.positionStore.Remove(ctx, driverID)
}

func (s *DriverService) bringOnline(ctx context.Context, driverID string) error {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if driver.Status != domain.DriverStatusOffline {
		return nil
	}
	return setDriverStatus(ctx, s.driverRepo, driverID, domain.DriverStatusOnline)
}
