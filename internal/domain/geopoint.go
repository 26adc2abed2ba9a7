package domain

import (
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
)

// Geopoint is an immutable latitude/longitude pair.
type Geopoint struct {
	Latitude  float64
	Longitude float64
}

// NewGeopoint validates the coordinates and returns the point.
func NewGeopoint(lat, lng float64) (Geopoint, error) {
	p := Geopoint{Latitude: lat, Longitude: lng}
	if !p.Valid() {
		return Geopoint{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidLocation, lat, lng)
	}
	return p, nil
}

// Valid reports whether the point lies inside the WGS84 coordinate ranges.
func (p Geopoint) Valid() bool {
	return IsValidLatitude(p.Latitude) && IsValidLongitude(p.Longitude)
}

// String renders the point with six decimal digits, as shown to users.
// Storage and transmission keep full precision.
func (p Geopoint) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Latitude, p.Longitude)
}

// Geohash returns the geohash cell of the point at the given character precision.
func (p Geopoint) Geohash(precision uint) string {
	return geohash.EncodeWithPrecision(p.Latitude, p.Longitude, precision)
}

// DistanceKm is the great-circle distance between two points in kilometers.
func (p Geopoint) DistanceKm(other Geopoint) float64 {
	const earthRadiusKm = 6371.0
	dLat := (other.Latitude - p.Latitude) * math.Pi / 180
	dLng := (other.Longitude - p.Longitude) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(p.Latitude*math.Pi/180)*math.Cos(other.Latitude*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// IsValidLatitude reports whether lat is within [-90, 90].
func IsValidLatitude(lat float64) bool {
	return !math.IsNaN(lat) && lat >= -90 && lat <= 90
}

// IsValidLongitude reports whether lng is within [-180, 180].
func IsValidLongitude(lng float64) bool {
	return !math.IsNaN(lng) && lng >= -180 && lng <= 180
}
