package service

import (
	"math"
	"testing"
	"time"

	"ridehail/internal/config"
	"ridehail/internal/domain"
)

func TestFareCalculator_Calculate(t *testing.T) {
	t.Parallel()

	accepted := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	here := domain.Geopoint{Latitude: 12.97, Longitude: 77.59}

	testCases := []struct {
		name      string
		cfg       config.FareConfig
		pickup    domain.Geopoint
		dropoff   domain.Geopoint
		completed time.Time
		want      float64
	}{
		{
			name:      "time charge only",
			cfg:       config.FareConfig{Base: 40, PerMinute: 2},
			pickup:    here,
			dropoff:   here,
			completed: accepted.Add(30 * time.Minute),
			want:      100,
		},
		{
			name:      "minimum applies",
			cfg:       config.FareConfig{Base: 10, PerMinute: 1, Minimum: 80},
			pickup:    here,
			dropoff:   here,
			completed: accepted.Add(5 * time.Minute),
			want:      80,
		},
		{
			name:      "clock skew charges no time",
			cfg:       config.FareConfig{Base: 40, PerMinute: 2},
			pickup:    here,
			dropoff:   here,
			completed: accepted.Add(-time.Minute),
			want:      40,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ride := &domain.Ride{Pickup: tc.pickup, Dropoff: tc.dropoff, AcceptedAt: accepted}
			if got := NewFareCalculator(tc.cfg).Calculate(ride, tc.completed); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFareCalculator_DistanceCharge(t *testing.T) {
	t.Parallel()

	ride := &domain.Ride{
		Pickup:  domain.Geopoint{Latitude: 0, Longitude: 0},
		Dropoff: domain.Geopoint{Latitude: 0, Longitude: 1},
	}
	got := NewFareCalculator(config.FareConfig{PerKm: 1}).Calculate(ride, time.Time{})

	// One degree of longitude at the equator.
	if math.Abs(got-111.19) > 0.05 {
		t.Errorf("expected about 111.19, got %v", got)
	}
}
