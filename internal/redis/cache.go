package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ridehail/internal/domain"
)

// RideCacheTTL bounds how long a ride snapshot is served from cache.
const RideCacheTTL = 10 * time.Second

const rideCachePrefix = "cache:ride:"

// cachedRide is the JSON form of a ride snapshot.
type cachedRide struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	DriverID     string    `json:"driver_id,omitempty"`
	PickupLat    float64   `json:"pickup_lat"`
	PickupLng    float64   `json:"pickup_lng"`
	DropoffLat   float64   `json:"dropoff_lat"`
	DropoffLng   float64   `json:"dropoff_lng"`
	Status       string    `json:"status"`
	Fare         *float64  `json:"fare,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	AcceptedAt   time.Time `json:"accepted_at"`
	CompletedAt  time.Time `json:"completed_at"`
	CancelledAt  time.Time `json:"cancelled_at"`
	CancelReason string    `json:"cancel_reason,omitempty"`
}

// CacheStore caches ride snapshots for the read path. Every transition
// invalidates the entry.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client, ttl: RideCacheTTL}
}

// GetRide returns the cached ride, or nil on a miss.
func (s *CacheStore) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	data, err := s.client.Get(ctx, rideCachePrefix+rideID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var c cachedRide
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &domain.Ride{
		ID:           c.ID,
		UserID:       c.UserID,
		DriverID:     c.DriverID,
		Pickup:       domain.Geopoint{Latitude: c.PickupLat, Longitude: c.PickupLng},
		Dropoff:      domain.Geopoint{Latitude: c.DropoffLat, Longitude: c.DropoffLng},
		Status:       domain.RideStatus(c.Status),
		Fare:         c.Fare,
		CreatedAt:    c.CreatedAt,
		AcceptedAt:   c.AcceptedAt,
		CompletedAt:  c.CompletedAt,
		CancelledAt:  c.CancelledAt,
		CancelReason: c.CancelReason,
	}, nil
}

// SetRide stores a ride snapshot.
func (s *CacheStore) SetRide(ctx context.Context, ride *domain.Ride) error {
	data, err := json.Marshal(cachedRide{
		ID:           ride.ID,
		UserID:       ride.UserID,
		DriverID:     ride.DriverID,
		PickupLat:    ride.Pickup.Latitude,
		PickupLng:    ride.Pickup.Longitude,
		DropoffLat:   ride.Dropoff.Latitude,
		DropoffLng:   ride.Dropoff.Longitude,
		Status:       string(ride.Status),
		Fare:         ride.Fare,
		CreatedAt:    ride.CreatedAt,
		AcceptedAt:   ride.AcceptedAt,
		CompletedAt:  ride.CompletedAt,
		CancelledAt:  ride.CancelledAt,
		CancelReason: ride.CancelReason,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, rideCachePrefix+ride.ID, data, s.ttl).Err()
}

// InvalidateRide drops a cached ride.
func (s *CacheStore) InvalidateRide(ctx context.Context, rideID string) error {
	return s.client.Del(ctx, rideCachePrefix+rideID).Err()
}
