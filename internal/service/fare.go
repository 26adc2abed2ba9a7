package service

import (
	"math"
	"time"

	"ridehail/internal/config"
	"ridehail/internal/domain"
)

// FareCalculator prices a completed ride: a base fare plus a straight-line
// distance charge plus a time charge from acceptance to completion, never
// below the minimum, rounded to cents.
type FareCalculator struct {
	base      float64
	perKm     float64
	perMinute float64
	minimum   float64
}

// NewFareCalculator creates a FareCalculator from the fare schedule.
func NewFareCalculator(cfg config.FareConfig) *FareCalculator {
	return &FareCalculator{
		base:      cfg.Base,
		perKm:     cfg.PerKm,
		perMinute: cfg.PerMinute,
		minimum:   cfg.Minimum,
	}
}

// Calculate returns the fare for ride completed at completedAt.
func (c *FareCalculator) Calculate(ride *domain.Ride, completedAt time.Time) float64 {
	km := ride.Pickup.DistanceKm(ride.Dropoff)

	var minutes float64
	if !ride.AcceptedAt.IsZero() && completedAt.After(ride.AcceptedAt) {
		minutes = completedAt.Sub(ride.AcceptedAt).Minutes()
	}

	fare := c.base + km*c.perKm + minutes*c.perMinute
	if fare < c.minimum {
		fare = c.minimum
	}

	return math.Round(fare*100) / 100
}
