package redis

import (
	"context"
	"time"

	"ridehail/internal/domain"
)

// PositionStoreInterface defines the driver position operations.
type PositionStoreInterface interface {
	Save(ctx context.Context, pos domain.DriverPosition) error
	Get(ctx context.Context, driverID string) (*domain.DriverPosition, error)
	Remove(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the per-ride transition lock.
type LockStoreInterface interface {
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (string, bool, error)
	ReleaseRideLock(ctx context.Context, rideID, token string) error
}

// CacheStoreInterface defines the ride snapshot cache.
type CacheStoreInterface interface {
	GetRide(ctx context.Context, rideID string) (*domain.Ride, error)
	SetRide(ctx context.Context, ride *domain.Ride) error
	InvalidateRide(ctx context.Context, rideID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ PositionStoreInterface = (*PositionStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ CacheStoreInterface    = (*CacheStore)(nil)
)
