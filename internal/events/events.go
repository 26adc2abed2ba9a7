// Package events publishes ride lifecycle events and driver positions to
// the message brokers consumed by processes outside the ride core.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"ridehail/internal/domain"
)

// RideEventType is the routing key of a ride event.
type RideEventType string

const (
	RideCreated   RideEventType = "ride.created"
	RideAccepted  RideEventType = "ride.accepted"
	RideCompleted RideEventType = "ride.completed"
	RideCancelled RideEventType = "ride.cancelled"
)

// RideEvent describes one ride transition.
type RideEvent struct {
	Type       RideEventType `json:"type"`
	RideID     string        `json:"rideId"`
	UserID     string        `json:"userId"`
	DriverID   string        `json:"driverId,omitempty"`
	Status     string        `json:"status"`
	Fare       *float64      `json:"fare,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// NewRideEvent builds the event for a ride that has just reached its current status.
func NewRideEvent(t RideEventType, ride *domain.Ride, at time.Time) RideEvent {
	ev := RideEvent{
		Type:       t,
		RideID:     ride.ID,
		UserID:     ride.UserID,
		DriverID:   ride.DriverID,
		Status:     string(ride.Status),
		Reason:     ride.CancelReason,
		OccurredAt: at.UTC(),
	}
	if ride.Fare != nil {
		f := *ride.Fare
		ev.Fare = &f
	}
	return ev
}

// positionMessage is the wire form of a driver position on the stream.
type positionMessage struct {
	DriverID   string    `json:"driverId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Geohash    string    `json:"geohash"`
	CapturedAt time.Time `json:"capturedAt"`
}

func encodePosition(pos domain.DriverPosition) ([]byte, error) {
	return json.Marshal(positionMessage{
		DriverID:   pos.DriverID,
		Latitude:   pos.Location.Latitude,
		Longitude:  pos.Location.Longitude,
		Geohash:    pos.Location.Geohash(7),
		CapturedAt: pos.CapturedAt.UTC(),
	})
}

// RidePublisher publishes ride events.
type RidePublisher interface {
	PublishRideEvent(ctx context.Context, ev RideEvent) error
}

// PositionPublisher publishes driver positions.
type PositionPublisher interface {
	PublishPosition(ctx context.Context, pos domain.DriverPosition) error
}

// LogPublisher writes events to a logger. It is used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishRideEvent(ctx context.Context, ev RideEvent) error {
	p.logger.InfoContext(ctx, "ride event",
		"type", string(ev.Type),
		"ride_id", ev.RideID,
		"user_id", ev.UserID,
		"driver_id", ev.DriverID,
		"status", ev.Status,
	)
	return nil
}

func (p *LogPublisher) PublishPosition(ctx context.Context, pos domain.DriverPosition) error {
	p.logger.DebugContext(ctx, "driver position",
		"driver_id", pos.DriverID,
		"point", pos.Location.String(),
	)
	return nil
}

var (
	_ RidePublisher     = (*LogPublisher)(nil)
	_ PositionPublisher = (*LogPublisher)(nil)
	_ RidePublisher     = (*AMQPPublisher)(nil)
	_ PositionPublisher = (*KafkaPositionStream)(nil)
)
