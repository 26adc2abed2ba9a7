package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	UserID      string        `json:"userId"`
	Source      *GeopointJSON `json:"source"`
	Destination *GeopointJSON `json:"destination"`
}

// CreateRideResponse is the HTTP response for creating a ride.
type CreateRideResponse struct {
	Envelope
	RideID string `json:"rideId"`
}

// RideActionRequest is the HTTP request body for accepting or finishing a ride.
type RideActionRequest struct {
	DriverID string `json:"driverId"`
	RideID   string `json:"rideId"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RideEnvelope carries a single ride.
type RideEnvelope struct {
	Envelope
	Data RideResponse `json:"data"`
}

// RideListEnvelope carries the rides visible to a driver.
type RideListEnvelope struct {
	Envelope
	Data []RideResponse `json:"data"`
}

// FinishRideResponse is the HTTP response for finishing a ride.
type FinishRideResponse struct {
	Envelope
	RideID string       `json:"rideId"`
	Fare   *float64     `json:"fare"`
	Data   RideResponse `json:"data"`
}

// CreateRide handles POST /api/v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.Source == nil || req.Destination == nil {
		respondBadRequest(c, "source and destination are required")
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		UserID:      req.UserID,
		Source:      req.Source.toDomain(),
		Destination: req.Destination.toDomain(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateRideResponse{
		Envelope: Envelope{Success: true, Message: "Ride created"},
		RideID:   ride.ID,
	})
}

// ListRides handles GET /api/v1/viewAllRides/:driverId
func (h *RideHandler) ListRides(c *gin.Context) {
	rides, err := h.rideService.ListRides(c.Request.Context(), c.Param("driverId"))
	if err != nil {
		respondError(c, err)
		return
	}

	data := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		data = append(data, toRideResponse(r))
	}
	c.JSON(http.StatusOK, RideListEnvelope{Envelope: Envelope{Success: true}, Data: data})
}

// GetRide handles GET /api/v1/rides/:rideId
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("rideId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RideEnvelope{Envelope: Envelope{Success: true}, Data: toRideResponse(ride)})
}

// AcceptRide handles POST /api/v1/acceptRide
func (h *RideHandler) AcceptRide(c *gin.Context) {
	var req RideActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.AcceptRide(c.Request.Context(), req.RideID, req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RideEnvelope{
		Envelope: Envelope{Success: true, Message: "Ride accepted"},
		Data:     toRideResponse(ride),
	})
}

// FinishRide handles POST /api/v1/trips/end
func (h *RideHandler) FinishRide(c *gin.Context) {
	var req RideActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.FinishRide(c.Request.Context(), req.RideID, req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, FinishRideResponse{
		Envelope: Envelope{Success: true, Message: "Ride completed"},
		RideID:   ride.ID,
		Fare:     ride.Fare,
		Data:     toRideResponse(ride),
	})
}

// CancelRide handles POST /api/v1/rides/:rideId/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("rideId"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RideEnvelope{
		Envelope: Envelope{Success: true, Message: "Ride cancelled"},
		Data:     toRideResponse(ride),
	})
}
