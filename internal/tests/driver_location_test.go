package tests

import (
	"context"
	"errors"
	"testing"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
	"ridehail/internal/service"
)

// ──────────────────────────────────────────────
// 7. DRIVER LOCATION
// ──────────────────────────────────────────────

func newDriverFixture() (*service.DriverService, *MockPositionStore, *MockDriverRepository, *MockPublisher) {
	positions := NewMockPositionStore()
	drivers := NewMockDriverRepository()
	stream := &MockPublisher{}
	return service.NewDriverService(positions, drivers, stream, discardLogger()), positions, drivers, stream
}

func TestDriverLocationUpdate_StoresAndStreams(t *testing.T) {
	t.Parallel()

	svc, positions, drivers, stream := newDriverFixture()
	drivers.AddDriver(&domain.Driver{ID: "d1", Status: domain.DriverStatusOffline})

	pos, err := svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{
		DriverID: "d1", Lat: 12.9716, Lng: 77.5946,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Location != bangalore || pos.CapturedAt.IsZero() {
		t.Errorf("unexpected position %+v", pos)
	}

	stored, err := svc.GetPosition(context.Background(), "d1")
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if stored.Location != bangalore {
		t.Errorf("expected stored %v, got %v", bangalore, stored.Location)
	}
	if positions.SaveCallCount != 1 {
		t.Errorf("expected one save, got %d", positions.SaveCallCount)
	}
	if got := stream.Positions(); len(got) != 1 || got[0].DriverID != "d1" {
		t.Errorf("expected one streamed position, got %v", got)
	}
	if got := drivers.Status("d1"); got != domain.DriverStatusOnline {
		t.Errorf("expected OFFLINE driver to come ONLINE, got %s", got)
	}
}

func TestDriverLocationUpdate_LatestWins(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newDriverFixture()
	for _, p := range []domain.Geopoint{bangalore, chennai} {
		if _, err := svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{
			DriverID: "d1", Lat: p.Latitude, Lng: p.Longitude,
		}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	pos, err := svc.GetPosition(context.Background(), "d1")
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if pos.Location != chennai {
		t.Errorf("expected latest report to overwrite, got %v", pos.Location)
	}
}

func TestDriverLocationUpdate_KeepsOnTripStatus(t *testing.T) {
	t.Parallel()

	svc, _, drivers, _ := newDriverFixture()
	drivers.AddDriver(&domain.Driver{ID: "d1", Status: domain.DriverStatusOnTrip})

	if _, err := svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{
		DriverID: "d1", Lat: 12.97, Lng: 77.59,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drivers.Status("d1"); got != domain.DriverStatusOnTrip {
		t.Errorf("expected ON_TRIP to be kept, got %s", got)
	}
	if drivers.UpdateStatusCallCount != 0 {
		t.Errorf("expected no status write, got %d", drivers.UpdateStatusCallCount)
	}
}

func TestDriverLocationUpdate_InvalidCoordinatesRejected(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		lat  float64
		lng  float64
	}{
		{"latitude too high", 90.0001, 0},
		{"latitude too low", -91, 0},
		{"longitude too high", 0, 180.5},
		{"longitude too low", 0, -181},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, positions, _, stream := newDriverFixture()
			_, err := svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{
				DriverID: "d1", Lat: tc.lat, Lng: tc.lng,
			})
			if !errors.Is(err, service.ErrInvalidLocation) {
				t.Errorf("expected ErrInvalidLocation, got %v", err)
			}
			if positions.SaveCallCount != 0 || len(stream.Positions()) != 0 {
				t.Error("an invalid report must not be stored or streamed")
			}
		})
	}
}

func TestDriverLocationUpdate_StoreFailureIsReturned(t *testing.T) {
	t.Parallel()

	svc, positions, _, stream := newDriverFixture()
	positions.SaveError = errors.New("redis down")

	_, err := svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{DriverID: "d1", Lat: 1, Lng: 1})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(stream.Positions()) != 0 {
		t.Error("an unsaved position must not be streamed")
	}
}

func TestDriverLocationUpdate_StreamFailureIsLoggedOnly(t *testing.T) {
	t.Parallel()

	svc, _, _, stream := newDriverFixture()
	stream.Err = errors.New("kafka down")

	if _, err := svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{DriverID: "d1", Lat: 1, Lng: 1}); err != nil {
		t.Fatalf("expected stream failure to be tolerated, got %v", err)
	}
}

func TestGetPosition_UnknownDriver(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newDriverFixture()
	if _, err := svc.GetPosition(context.Background(), "nobody"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetPosition(context.Background(), ""); !errors.Is(err, service.ErrInvalidDriverID) {
		t.Errorf("expected ErrInvalidDriverID, got %v", err)
	}
}

func TestSetDriverOffline_RemovesPosition(t *testing.T) {
	t.Parallel()

	svc, _, drivers, _ := newDriverFixture()
	drivers.AddDriver(&domain.Driver{ID: "d1", Status: domain.DriverStatusOnline})
	if _, err := svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{DriverID: "d1", Lat: 1, Lng: 1}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := svc.SetDriverOffline(context.Background(), "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drivers.Status("d1"); got != domain.DriverStatusOffline {
		t.Errorf("expected OFFLINE, got %s", got)
	}
	if _, err := svc.GetPosition(context.Background(), "d1"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected position to be removed, got %v", err)
	}
}
