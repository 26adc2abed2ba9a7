// Package booking turns two location picks into a ride request.
package booking

import (
	"sync"

	"ridehail/internal/domain"
	"ridehail/internal/failure"
)

// Selection holds the source and destination picks of a single booking
// attempt. At most one picking session is open at a time: opening a slot
// while another is open drops the earlier session without committing it.
type Selection struct {
	mu     sync.Mutex
	points map[domain.LocationSlot]domain.Geopoint
	open   domain.LocationSlot
}

// NewSelection returns an empty selection with no open session.
func NewSelection() *Selection {
	return &Selection{points: make(map[domain.LocationSlot]domain.Geopoint, 2)}
}

// BeginSelection opens a picking session for slot.
func (s *Selection) BeginSelection(slot domain.LocationSlot) error {
	if !slot.Valid() {
		return failure.Validation("begin selection", "Choose either pickup or drop-off.", ErrInvalidSlot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = slot
	return nil
}

// Confirm commits point into the open slot and closes the session. An
// invalid point leaves the session open so the user can pick again.
func (s *Selection) Confirm(point domain.Geopoint) error {
	const op = "confirm location"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open == 0 {
		return failure.Validation(op, "Choose pickup or drop-off first.", ErrNoOpenSession)
	}
	if !point.Valid() {
		return failure.Validation(op, "That is not a valid location.", domain.ErrInvalidLocation)
	}

	s.points[s.open] = point
	s.open = 0
	return nil
}

// Cancel closes the open session, if any, without touching either slot.
func (s *Selection) Cancel() {
	s.mu.Lock()
	s.open = 0
	s.mu.Unlock()
}

// IsReady reports whether both slots are filled.
func (s *Selection) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.points) == 2
}

// Reset empties both slots and closes any open session.
func (s *Selection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.points)
	s.open = 0
}

// Point returns the point committed to slot.
func (s *Selection) Point(slot domain.LocationSlot) (domain.Geopoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.points[slot]
	return p, ok
}

// OpenSlot returns the slot currently being picked.
func (s *Selection) OpenSlot() (domain.LocationSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.open, s.open != 0
}

// Request builds a ride request from both slots.
func (s *Selection) Request(userID string) (domain.RideRequest, error) {
	const op = "build ride request"

	s.mu.Lock()
	defer s.mu.Unlock()

	source, okSource := s.points[domain.SlotSource]
	destination, okDestination := s.points[domain.SlotDestination]
	if !okSource || !okDestination {
		return domain.RideRequest{}, failure.Validation(op, "Please select both pickup and drop-off locations.", ErrSelectionIncomplete)
	}
	if userID == "" {
		return domain.RideRequest{}, failure.Validation(op, "Please log in before booking a ride.", ErrMissingUser)
	}

	return domain.RideRequest{UserID: userID, Source: source, Destination: destination}, nil
}
