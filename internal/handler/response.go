package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
	"ridehail/internal/service"
)

// Reason codes carried by failed envelopes.
const (
	CodeValidation        = "VALIDATION"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeNotAssignedDriver = "NOT_ASSIGNED_DRIVER"
	CodeRideBusy          = "RIDE_BUSY"
	CodeInternal          = "INTERNAL"
)

// Envelope is the common response wrapper. Every body carries success.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// GeopointJSON is the wire form of a coordinate pair.
type GeopointJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p GeopointJSON) toDomain() domain.Geopoint {
	return domain.Geopoint{Latitude: p.Latitude, Longitude: p.Longitude}
}

func toGeopointJSON(p domain.Geopoint) GeopointJSON {
	return GeopointJSON{Latitude: p.Latitude, Longitude: p.Longitude}
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	DriverID     string       `json:"driverId,omitempty"`
	Pickup       GeopointJSON `json:"pickup"`
	Dropoff      GeopointJSON `json:"dropoff"`
	Status       string       `json:"status"`
	Fare         *float64     `json:"fare,omitempty"`
	CreatedAt    *time.Time   `json:"createdAt,omitempty"`
	AcceptedAt   *time.Time   `json:"acceptedAt,omitempty"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
	CancelledAt  *time.Time   `json:"cancelledAt,omitempty"`
	CancelReason string       `json:"cancelReason,omitempty"`
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:           r.ID,
		UserID:       r.UserID,
		DriverID:     r.DriverID,
		Pickup:       toGeopointJSON(r.Pickup),
		Dropoff:      toGeopointJSON(r.Dropoff),
		Status:       string(r.Status),
		Fare:         r.Fare,
		CreatedAt:    timePtr(r.CreatedAt),
		AcceptedAt:   timePtr(r.AcceptedAt),
		CompletedAt:  timePtr(r.CompletedAt),
		CancelledAt:  timePtr(r.CancelledAt),
		CancelReason: r.CancelReason,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// respondError sends a failed envelope with the status and reason code for err.
func respondError(c *gin.Context, err error) {
	status, code := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal error"
	}
	c.JSON(status, Envelope{Success: false, Message: message, Code: code})
}

// respondBadRequest rejects a body that could not be decoded.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: message, Code: CodeValidation})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes and reason codes.
func mapErrorToHTTPStatus(err error) (int, string) {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, CodeNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidPickupLocation),
		errors.Is(err, service.ErrInvalidDestinationLocation),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, domain.ErrInvalidLocation):
		return http.StatusBadRequest, CodeValidation

	// Conflict errors
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, CodeInvalidTransition
	case errors.Is(err, service.ErrRideBusy):
		return http.StatusConflict, CodeRideBusy

	// Forbidden/Business rule errors
	case errors.Is(err, domain.ErrNotAssignedDriver):
		return http.StatusForbidden, CodeNotAssignedDriver

	// Default to internal server error
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
