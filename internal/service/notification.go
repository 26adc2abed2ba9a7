package service

import (
	"context"
	"log/slog"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/events"
	"ridehail/internal/observability"
)

// NotificationService announces ride transitions to other processes. A
// failed publish is logged and never fails the transition that caused it.
type NotificationService struct {
	publisher events.RidePublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService. A nil publisher
// only logs.
func NewNotificationService(publisher events.RidePublisher, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &NotificationService{publisher: publisher, logger: logger, now: time.Now}
}

// NotifyRideCreated announces a new WAITING ride to drivers.
func (s *NotificationService) NotifyRideCreated(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, events.NewRideEvent(events.RideCreated, ride, s.now()))
}

// NotifyRideAccepted tells the user a driver took the ride.
func (s *NotificationService) NotifyRideAccepted(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, events.NewRideEvent(events.RideAccepted, ride, s.now()))
}

// NotifyRideCompleted tells the user the ride ended and what it cost.
func (s *NotificationService) NotifyRideCompleted(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, events.NewRideEvent(events.RideCompleted, ride, s.now()))
}

// NotifyRideCancelled tells both parties the ride was cancelled.
func (s *NotificationService) NotifyRideCancelled(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, events.NewRideEvent(events.RideCancelled, ride, s.now()))
}

func (s *NotificationService) send(ctx context.Context, ev events.RideEvent) {
	if err := s.publisher.PublishRideEvent(ctx, ev); err != nil {
		observability.EventsPublishedTotal.WithLabelValues("ride", string(ev.Type), observability.OutcomeError).Inc()
		s.logger.WarnContext(ctx, "ride event publish failed",
			"type", string(ev.Type),
			"ride_id", ev.RideID,
			"error", err,
		)
		return
	}
	observability.EventsPublishedTotal.WithLabelValues("ride", string(ev.Type), observability.OutcomeOK).Inc()
}
