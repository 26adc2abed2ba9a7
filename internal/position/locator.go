package position

import (
	"context"
	"errors"
	"time"

	"ridehail/internal/domain"
)

// Errors a Locator reports for the platform capability.
var (
	ErrUnavailable      = errors.New("geolocation is not available")
	ErrPermissionDenied = errors.New("geolocation permission denied")
	ErrTimeout          = errors.New("geolocation timed out")
)

// Options are passed to the platform on every request.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaximumAge is the oldest cached fix the platform may return. Zero
	// demands a fresh fix.
	MaximumAge time.Duration
}

// Fix is a single position reading.
type Fix struct {
	Point      domain.Geopoint
	CapturedAt time.Time
}

// Locator is the platform geolocation capability.
type Locator interface {
	CurrentPosition(ctx context.Context, opts Options) (Fix, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, opts Options) (Fix, error)

func (f LocatorFunc) CurrentPosition(ctx context.Context, opts Options) (Fix, error) {
	return f(ctx, opts)
}

// FixedLocator always reports the same point, stamped with the time of the
// request. Err, when set, is returned instead.
type FixedLocator struct {
	Point domain.Geopoint
	Err   error
}

func (l FixedLocator) CurrentPosition(ctx context.Context, _ Options) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	if l.Err != nil {
		return Fix{}, l.Err
	}
	return Fix{Point: l.Point, CapturedAt: time.Now()}, nil
}
