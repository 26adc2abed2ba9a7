package booking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ridehail/internal/domain"
	"ridehail/internal/failure"
)

// RideCreator creates rides on the server of record.
type RideCreator interface {
	CreateRide(ctx context.Context, req domain.RideRequest, idempotencyKey string) (string, error)
}

// Coordinator submits ride requests with at most one outstanding call.
//
// A created ride is a durable effect: cancelling ctx stops waiting for the
// answer but does not undo a ride the server already accepted.
type Coordinator struct {
	creator   RideCreator
	selection *Selection
	logger    *slog.Logger
	newKey    func() string

	mu       sync.Mutex
	inFlight bool
}

// NewCoordinator creates a Coordinator. selection may be nil when callers
// supply points directly; it is reset after every successful submission.
func NewCoordinator(creator RideCreator, selection *Selection, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		creator:   creator,
		selection: selection,
		logger:    logger,
		newKey:    uuid.NewString,
	}
}

// Submit sends one create-ride call and returns the new ride id.
// A call made while another is outstanding fails immediately with
// ErrAlreadyInFlight. Any failure of the call itself wraps ErrSubmissionFailed
// and leaves the selection untouched so the user can retry.
func (c *Coordinator) Submit(ctx context.Context, userID string, source, destination domain.Geopoint) (string, error) {
	const op = "submit ride"

	if userID == "" {
		return "", failure.Validation(op, "Please log in before booking a ride.", ErrMissingUser)
	}
	if !source.Valid() || !destination.Valid() {
		return "", failure.Validation(op, "Pickup and drop-off must be valid locations.", domain.ErrInvalidLocation)
	}

	if !c.acquire() {
		return "", failure.Validation(op, "Your ride request is already being sent.", ErrAlreadyInFlight)
	}
	defer c.release()

	req := domain.RideRequest{UserID: userID, Source: source, Destination: destination}
	key := c.newKey()

	c.logger.Debug("submitting ride request",
		"user_id", userID,
		"source", source.String(),
		"destination", destination.String(),
		"idempotency_key", key,
	)

	rideID, err := c.creator.CreateRide(ctx, req, key)
	if err != nil {
		c.logger.Warn("ride request failed", "user_id", userID, "kind", failure.KindOf(err).String(), "error", err)
		return "", fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	if c.selection != nil {
		c.selection.Reset()
	}

	c.logger.Info("ride requested", "user_id", userID, "ride_id", rideID)
	return rideID, nil
}

// SubmitSelection submits the points currently held by the selection.
func (c *Coordinator) SubmitSelection(ctx context.Context, userID string) (string, error) {
	if c.selection == nil {
		return "", failure.Validation("submit ride", "Please select both pickup and drop-off locations.", ErrSelectionIncomplete)
	}
	req, err := c.selection.Request(userID)
	if err != nil {
		return "", err
	}
	return c.Submit(ctx, req.UserID, req.Source, req.Destination)
}

// InFlight reports whether a submission is outstanding.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inFlight
}

func (c *Coordinator) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

func (c *Coordinator) release() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}
