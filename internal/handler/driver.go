package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	DriverID  string   `json:"driverId"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// DriverPositionResponse is the HTTP representation of a driver's latest position.
type DriverPositionResponse struct {
	DriverID   string       `json:"driverId"`
	Location   GeopointJSON `json:"location"`
	CapturedAt time.Time    `json:"capturedAt"`
}

// DriverPositionEnvelope carries a driver position.
type DriverPositionEnvelope struct {
	Envelope
	Data DriverPositionResponse `json:"data"`
}

// UpdateLocation handles POST /api/v1/updateDriverLocation
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondBadRequest(c, "latitude and longitude are required")
		return
	}

	pos, err := h.driverService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		DriverID: req.DriverID,
		Lat:      *req.Latitude,
		Lng:      *req.Longitude,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, DriverPositionEnvelope{
		Envelope: Envelope{Success: true, Message: "Location updated"},
		Data: DriverPositionResponse{
			DriverID:   pos.DriverID,
			Location:   toGeopointJSON(pos.Location),
			CapturedAt: pos.CapturedAt.UTC(),
		},
	})
}

// GetLocation handles GET /api/v1/drivers/:driverId/location
func (h *DriverHandler) GetLocation(c *gin.Context) {
	pos, err := h.driverService.GetPosition(c.Request.Context(), c.Param("driverId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, DriverPositionEnvelope{
		Envelope: Envelope{Success: true},
		Data: DriverPositionResponse{
			DriverID:   pos.DriverID,
			Location:   toGeopointJSON(pos.Location),
			CapturedAt: pos.CapturedAt.UTC(),
		},
	})
}

// SetOffline handles POST /api/v1/drivers/:driverId/offline
func (h *DriverHandler) SetOffline(c *gin.Context) {
	if err := h.driverService.SetDriverOffline(c.Request.Context(), c.Param("driverId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Message: "Driver offline"})
}
