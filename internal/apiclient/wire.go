package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"ridehail/internal/domain"
)

// Codes the server puts in failed envelopes.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeNotAssignedDriver = "NOT_ASSIGNED_DRIVER"
	CodeValidation        = "VALIDATION"
	CodeNotFound          = "NOT_FOUND"
	CodeRideBusy          = "RIDE_BUSY"
)

type geopointJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func toGeopointJSON(p domain.Geopoint) geopointJSON {
	return geopointJSON{Latitude: p.Latitude, Longitude: p.Longitude}
}

type createRideRequest struct {
	UserID      string       `json:"userId"`
	Source      geopointJSON `json:"source"`
	Destination geopointJSON `json:"destination"`
}

type rideActionRequest struct {
	DriverID string `json:"driverId"`
	RideID   string `json:"rideId"`
}

type cancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

type driverLocationRequest struct {
	DriverID  string  `json:"driverId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// envelope is the common response wrapper. Success is a pointer so that a
// missing indicator can be told apart from an explicit false.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	RideID  flexID          `json:"rideId"`
	ID      flexID          `json:"id"`
	Fare    *float64        `json:"fare"`
	Data    json.RawMessage `json:"data"`
}

// flexID accepts identifiers encoded either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier is neither string nor number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type rideJSON struct {
	ID          flexID        `json:"id"`
	UserID      flexID        `json:"userId"`
	DriverID    flexID        `json:"driverId"`
	Pickup      *geopointJSON `json:"pickup"`
	Dropoff     *geopointJSON `json:"dropoff"`
	Source      *geopointJSON `json:"source"`
	Destination *geopointJSON `json:"destination"`
	Status      string        `json:"status"`
	Fare        *float64      `json:"fare"`
	CreatedAt   *time.Time    `json:"createdAt"`
	AcceptedAt  *time.Time    `json:"acceptedAt"`
	CompletedAt *time.Time    `json:"completedAt"`
	CancelledAt *time.Time    `json:"cancelledAt"`
}

func (r rideJSON) toDomain() (domain.Ride, error) {
	if r.ID == "" {
		return domain.Ride{}, fmt.Errorf("ride without id")
	}
	status, err := domain.ParseRideStatus(r.Status)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("ride %s: %w", r.ID, err)
	}

	pickup := firstPoint(r.Pickup, r.Source)
	dropoff := firstPoint(r.Dropoff, r.Destination)
	if pickup == nil || dropoff == nil {
		return domain.Ride{}, fmt.Errorf("ride %s: missing pickup or dropoff", r.ID)
	}

	ride := domain.Ride{
		ID:       string(r.ID),
		UserID:   string(r.UserID),
		DriverID: string(r.DriverID),
		Pickup:   domain.Geopoint{Latitude: pickup.Latitude, Longitude: pickup.Longitude},
		Dropoff:  domain.Geopoint{Latitude: dropoff.Latitude, Longitude: dropoff.Longitude},
		Status:   status,
	}
	if r.Fare != nil {
		f := *r.Fare
		ride.Fare = &f
	}
	if r.CreatedAt != nil {
		ride.CreatedAt = *r.CreatedAt
	}
	if r.AcceptedAt != nil {
		ride.AcceptedAt = *r.AcceptedAt
	}
	if r.CompletedAt != nil {
		ride.CompletedAt = *r.CompletedAt
	}
	if r.CancelledAt != nil {
		ride.CancelledAt = *r.CancelledAt
	}
	return ride, nil
}

func firstPoint(points ...*geopointJSON) *geopointJSON {
	for _, p := range points {
		if p != nil {
			return p
		}
	}
	return nil
}
