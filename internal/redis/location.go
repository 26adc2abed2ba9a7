package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ridehail/internal/domain"
)

const (
	driverLocationKey    = "drivers:locations"
	driverPositionPrefix = "drivers:position:"

	// DefaultGeohashPrecision gives cells of roughly 150 m.
	DefaultGeohashPrecision = 7
)

// ErrPositionNotFound is returned when a driver has never reported a position.
var ErrPositionNotFound = errors.New("driver position not found")

// PositionStore keeps the latest position of every driver. Each save
// overwrites the previous one.
type PositionStore struct {
	client    *redis.Client
	precision uint
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(client *redis.Client) *PositionStore {
	return &PositionStore{client: client, precision: DefaultGeohashPrecision}
}

// Save stores the position in the geo index and in a per-driver hash
// carrying the capture time and geohash cell.
func (s *PositionStore) Save(ctx context.Context, pos domain.DriverPosition) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.GeoAdd(ctx, driverLocationKey, &redis.GeoLocation{
			Name:      pos.DriverID,
			Longitude: pos.Location.Longitude,
			Latitude:  pos.Location.Latitude,
		})
		pipe.HSet(ctx, driverPositionPrefix+pos.DriverID,
			"lat", strconv.FormatFloat(pos.Location.Latitude, 'f', -1, 64),
			"lng", strconv.FormatFloat(pos.Location.Longitude, 'f', -1, 64),
			"geohash", pos.Location.Geohash(s.precision),
			"captured_at", pos.CapturedAt.UTC().Format(time.RFC3339Nano),
		)
		return nil
	})
	return err
}

// Get returns the latest position of a driver.
func (s *PositionStore) Get(ctx context.Context, driverID string) (*domain.DriverPosition, error) {
	fields, err := s.client.HGetAll(ctx, driverPositionPrefix+driverID).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrPositionNotFound
	}

	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return nil, err
	}
	lng, err := strconv.ParseFloat(fields["lng"], 64)
	if err != nil {
		return nil, err
	}
	capturedAt, err := time.Parse(time.RFC3339Nano, fields["captured_at"])
	if err != nil {
		return nil, err
	}

	return &domain.DriverPosition{
		DriverID:   driverID,
		Location:   domain.Geopoint{Latitude: lat, Longitude: lng},
		CapturedAt: capturedAt,
	}, nil
}

// Remove deletes a driver's position.
func (s *PositionStore) Remove(ctx context.Context, driverID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, driverLocationKey, driverID)
		pipe.Del(ctx, driverPositionPrefix+driverID)
		return nil
	})
	return err
}
