package domain

import (
	"errors"
	"math"
	"testing"
)

func TestNewGeopoint_Ranges(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{"bangalore", 12.9716, 77.5946, false},
		{"origin", 0, 0, false},
		{"north pole edge", 90, 180, false},
		{"south pole edge", -90, -180, false},
		{"latitude too high", 90.000001, 0, true},
		{"longitude too low", 0, -180.5, true},
		{"nan", math.NaN(), 0, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewGeopoint(tc.lat, tc.lng)
			if tc.wantErr && !errors.Is(err, ErrInvalidLocation) {
				t.Errorf("expected ErrInvalidLocation, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGeopoint_StringUsesSixDecimals(t *testing.T) {
	t.Parallel()

	p := Geopoint{Latitude: 12.97160049, Longitude: 77.5946}
	if got := p.String(); got != "12.971600, 77.594600" {
		t.Errorf("unexpected rendering %q", got)
	}
	// Display rounding never touches the stored value.
	if p.Latitude != 12.97160049 {
		t.Errorf("latitude was modified")
	}
}

func TestGeopoint_DistanceKm(t *testing.T) {
	t.Parallel()

	bangalore := Geopoint{Latitude: 12.9716, Longitude: 77.5946}
	chennai := Geopoint{Latitude: 13.0827, Longitude: 80.2707}

	d := bangalore.DistanceKm(chennai)
	if d < 285 || d > 295 {
		t.Errorf("expected ~290km, got %f", d)
	}
	if bangalore.DistanceKm(bangalore) != 0 {
		t.Errorf("expected zero distance to self")
	}
}

func TestGeopoint_Geohash(t *testing.T) {
	t.Parallel()

	p := Geopoint{Latitude: 12.9716, Longitude: 77.5946}
	h := p.Geohash(6)
	if len(h) != 6 {
		t.Fatalf("expected 6 characters, got %q", h)
	}
	if h[:3] != "tdr" {
		t.Errorf("expected Bangalore cell to start with tdr, got %q", h)
	}
}
