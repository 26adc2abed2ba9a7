// Package position captures a driver's coordinates and uploads them,
// independently of any ride.
package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/failure"
)

// DefaultCaptureTimeout bounds a single geolocation request.
const DefaultCaptureTimeout = 10 * time.Second

var (
	// ErrNoPosition is returned by Report before any successful Capture.
	ErrNoPosition = errors.New("no position captured")

	// ErrReportFailed wraps every failure of the upload call.
	ErrReportFailed = errors.New("position report failed")

	// ErrStaleFix is returned when the platform answers with a fix older than the request.
	ErrStaleFix = errors.New("stale position fix")

	// ErrInvalidInterval is returned by Run for a non-positive interval.
	ErrInvalidInterval = errors.New("report interval must be positive")
)

// Uploader sends a driver position to the server.
type Uploader interface {
	UpdateDriverLocation(ctx context.Context, driverID string, point domain.Geopoint) error
}

// Reporter captures and uploads a driver's position. Failures are returned
// to the caller and never retried automatically.
type Reporter struct {
	locator  Locator
	uploader Uploader
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last *Fix
}

// NewReporter creates a Reporter. A nil locator reports ErrUnavailable on
// every capture. A non-positive timeout uses DefaultCaptureTimeout.
func NewReporter(locator Locator, uploader Uploader, timeout time.Duration, logger *slog.Logger) *Reporter {
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		locator:  locator,
		uploader: uploader,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Capture acquires a fresh fix and remembers it for Report.
func (r *Reporter) Capture(ctx context.Context) (domain.Geopoint, error) {
	const op = "capture position"

	if r.locator == nil {
		return domain.Geopoint{}, failure.Capability(op, "Location is not supported on this device.", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	requested := r.now()
	fix, err := r.locator.CurrentPosition(ctx, Options{
		HighAccuracy: true,
		Timeout:      r.timeout,
		MaximumAge:   0,
	})
	if err != nil {
		r.logger.Warn("position capture failed", "error", err)
		return domain.Geopoint{}, captureError(op, err)
	}

	if !fix.Point.Valid() {
		return domain.Geopoint{}, failure.Capability(op, "The device reported an invalid location.", fmt.Errorf("%w: %v", ErrUnavailable, domain.ErrInvalidLocation))
	}
	if fix.CapturedAt.IsZero() {
		fix.CapturedAt = r.now()
	}
	if fix.CapturedAt.Before(requested) {
		return domain.Geopoint{}, failure.Capability(op, "Could not get a fresh location. Please try again.", ErrStaleFix)
	}

	r.mu.Lock()
	r.last = &fix
	r.mu.Unlock()

	r.logger.Debug("position captured", "point", fix.Point.String())
	return fix.Point, nil
}

// Report uploads the last captured fix for driverID.
func (r *Reporter) Report(ctx context.Context, driverID string) error {
	const op = "report position"

	if driverID == "" {
		return failure.Validation(op, "Please log in as a driver first.", ErrReportFailed)
	}

	r.mu.Lock()
	last := r.last
	r.mu.Unlock()

	if last == nil {
		return failure.Validation(op, "Get your current location before sharing it.", ErrNoPosition)
	}

	if err := r.uploader.UpdateDriverLocation(ctx, driverID, last.Point); err != nil {
		r.logger.Warn("position report failed", "driver_id", driverID, "error", err)
		return fmt.Errorf("%w: %w", ErrReportFailed, err)
	}

	r.logger.Info("position reported", "driver_id", driverID, "point", last.Point.String())
	return nil
}

// CaptureAndReport captures a fresh fix and uploads it.
func (r *Reporter) CaptureAndReport(ctx context.Context, driverID string) (domain.Geopoint, error) {
	point, err := r.Capture(ctx)
	if err != nil {
		return domain.Geopoint{}, err
	}
	return point, r.Report(ctx, driverID)
}

// Last returns the last captured position for driverID.
func (r *Reporter) Last(driverID string) (domain.DriverPosition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last == nil {
		return domain.DriverPosition{}, false
	}
	return domain.DriverPosition{DriverID: driverID, Location: r.last.Point, CapturedAt: r.last.CapturedAt}, true
}

// Clear forgets the last captured fix.
func (r *Reporter) Clear() {
	r.mu.Lock()
	r.last = nil
	r.mu.Unlock()
}

// Run captures and reports every interval until ctx is done. Individual
// failures are logged and the loop continues. It returns ctx.Err().
func (r *Reporter) Run(ctx context.Context, driverID string, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.CaptureAndReport(ctx, driverID); err != nil && ctx.Err() == nil {
			r.logger.Error("periodic position report failed", "driver_id", driverID, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func captureError(op string, err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return failure.Capability(op, "Location permission was denied.", err)
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return failure.Capability(op, "Getting your location took too long.", fmt.Errorf("%w: %v", ErrTimeout, err))
	case errors.Is(err, ErrUnavailable):
		return failure.Capability(op, "Location is not supported on this device.", err)
	default:
		return failure.Capability(op, "Could not get your location.", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
}
