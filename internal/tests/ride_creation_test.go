package tests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"ridehail/internal/config"
	"ridehail/internal/domain"
	"ridehail/internal/events"
	"ridehail/internal/service"
)

// ──────────────────────────────────────────────
// FIXTURE
// ──────────────────────────────────────────────

var (
	bangalore = domain.Geopoint{Latitude: 12.9716, Longitude: 77.5946}
	chennai   = domain.Geopoint{Latitude: 13.0827, Longitude: 80.2707}
)

type rideFixture struct {
	rides     *MockRideRepository
	drivers   *MockDriverRepository
	locks     *MockLockStore
	cache     *MockCacheStore
	publisher *MockPublisher
	service   *service.RideService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFareConfig() config.FareConfig {
	return config.FareConfig{Base: 50, PerKm: 12, PerMinute: 1.5, Minimum: 80}
}

// newRideFixture wires a RideService over mocks. withLock=false leaves the
// lock store out so that only the repository arbitrates.
func newRideFixture(withLock bool) *rideFixture {
	f := &rideFixture{
		rides:     NewMockRideRepository(),
		drivers:   NewMockDriverRepository(),
		locks:     NewMockLockStore(),
		cache:     NewMockCacheStore(),
		publisher: &MockPublisher{},
	}
	logger := discardLogger()

	var locks *MockLockStore
	if withLock {
		locks = f.locks
	}

	tx := &MockTransactor{Rides: f.rides, Drivers: f.drivers}
	notifier := service.NewNotificationService(f.publisher, logger)
	fare := service.NewFareCalculator(testFareConfig())

	if locks != nil {
		f.service = service.NewRideService(f.rides, tx, locks, f.cache, fare, notifier, logger)
	} else {
		f.service = service.NewRideService(f.rides, tx, nil, f.cache, fare, notifier, logger)
	}
	return f
}

// ──────────────────────────────────────────────
// 1. RIDE CREATION
// ──────────────────────────────────────────────

func TestRideCreation_PersistsWaitingRide(t *testing.T) {
	t.Parallel()

	f := newRideFixture(true)
	ride, err := f.service.CreateRide(context.Background(), service.CreateRideRequest{
		UserID:      "1234",
		Source:      bangalore,
		Destination: chennai,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ride.ID == "" {
		t.Fatal("expected a ride id")
	}
	if ride.Status != domain.RideStatusWaiting || ride.DriverID != "" || ride.Fare != nil {
		t.Errorf("expected an unassigned WAITING ride without fare, got %+v", ride)
	}

	stored := f.rides.GetRide(ride.ID)
	if stored == nil {
		t.Fatal("expected ride to be stored")
	}
	if stored.Pickup != bangalore || stored.Dropoff != chennai || stored.UserID != "1234" {
		t.Errorf("stored ride does not match request: %+v", stored)
	}

	if got := f.publisher.EventTypes(); len(got) != 1 || got[0] != events.RideCreated {
		t.Errorf("expected one ride.created event, got %v", got)
	}
}

func TestRideCreation_CreateThenFetchRoundTrip(t *testing.T) {
	t.Parallel()

	f := newRideFixture(true)
	created, err := f.service.CreateRide(context.Background(), service.CreateRideRequest{
		UserID: "1234", Source: bangalore, Destination: chennai,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fetched, err := f.service.GetRide(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Pickup != bangalore || fetched.Dropoff != chennai || fetched.Status != domain.RideStatusWaiting {
		t.Errorf("round trip changed the ride: %+v", fetched)
	}

	// Second read is served from cache.
	if _, err := f.service.GetRide(context.Background(), created.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.cache.HitCount != 1 {
		t.Errorf("expected one cache hit, got %d", f.cache.HitCount)
	}
}

func TestRideCreation_ValidatesRequest(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		req  service.CreateRideRequest
		want error
	}{
		{
			name: "missing user",
			req:  service.CreateRideRequest{Source: bangalore, Destination: chennai},
			want: service.ErrInvalidUserID,
		},
		{
			name: "pickup latitude too high",
			req:  service.CreateRideRequest{UserID: "u1", Source: domain.Geopoint{Latitude: 91, Longitude: 77}, Destination: chennai},
			want: service.ErrInvalidPickupLocation,
		},
		{
			name: "pickup longitude too low",
			req:  service.CreateRideRequest{UserID: "u1", Source: domain.Geopoint{Latitude: 12, Longitude: -181}, Destination: chennai},
			want: service.ErrInvalidPickupLocation,
		},
		{
			name: "pickup not a number",
			req:  service.CreateRideRequest{UserID: "u1", Source: domain.Geopoint{Latitude: math.NaN(), Longitude: 77}, Destination: chennai},
			want: service.ErrInvalidPickupLocation,
		},
		{
			name: "destination out of range",
			req:  service.CreateRideRequest{UserID: "u1", Source: bangalore, Destination: domain.Geopoint{Latitude: -90.5, Longitude: 0}},
			want: service.ErrInvalidDestinationLocation,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newRideFixture(true)
			_, err := f.service.CreateRide(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			if f.rides.CreateCallCount != 0 {
				t.Errorf("expected nothing stored, got %d creates", f.rides.CreateCallCount)
			}
		})
	}
}

func TestRideCreation_BoundaryCoordinatesAccepted(t *testing.T) {
	t.Parallel()

	f := newRideFixture(true)
	_, err := f.service.CreateRide(context.Background(), service.CreateRideRequest{
		UserID:      "u1",
		Source:      domain.Geopoint{Latitude: 90, Longitude: -180},
		Destination: domain.Geopoint{Latitude: -90, Longitude: 180},
	})
	if err != nil {
		t.Errorf("expected boundary coordinates to be accepted, got %v", err)
	}
}

func TestRideCreation_RepositoryErrorIsReturned(t *testing.T) {
	t.Parallel()

	f := newRideFixture(true)
	f.rides.CreateError = errors.New("connection reset")

	_, err := f.service.CreateRide(context.Background(), service.CreateRideRequest{
		UserID: "u1", Source: bangalore, Destination: chennai,
	})
	if err == nil || err.Error() != "connection reset" {
		t.Errorf("expected repository error, got %v", err)
	}
	if len(f.publisher.EventTypes()) != 0 {
		t.Error("no event may be published for a ride that was not stored")
	}
}

// ──────────────────────────────────────────────
// 2. LISTING
// ──────────────────────────────────────────────

func TestListRides_WaitingPlusOwn(t *testing.T) {
	t.Parallel()

	f := newRideFixture(true)
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	f.rides.AddRide(&domain.Ride{ID: "r1", UserID: "u", Status: domain.RideStatusWaiting, CreatedAt: base})
	f.rides.AddRide(&domain.Ride{ID: "r2", UserID: "u", DriverID: "d1", Status: domain.RideStatusInProgress, CreatedAt: base.Add(time.Minute)})
	f.rides.AddRide(&domain.Ride{ID: "r3", UserID: "u", DriverID: "d2", Status: domain.RideStatusInProgress, CreatedAt: base.Add(2 * time.Minute)})
	f.rides.AddRide(&domain.Ride{ID: "r4", UserID: "u", DriverID: "d1", Status: domain.RideStatusCompleted, CreatedAt: base.Add(3 * time.Minute)})

	rides, err := f.service.ListRides(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []string
	for _, r := range rides {
		ids = append(ids, r.ID)
	}
	want := []string{"r1", "r2", "r4"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}

	if _, err := f.service.ListRides(context.Background(), ""); !errors.Is(err, service.ErrInvalidDriverID) {
		t.Errorf("expected ErrInvalidDriverID, got %v", err)
	}
}

func TestListRides_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	f := newRideFixture(true)
	rides, err := f.service.ListRides(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rides == nil || len(rides) != 0 {
		t.Errorf("expected an empty non-nil list, got %v", rides)
	}
}

func TestListRides_HistoryNeverHidesOpenRides(t *testing.T) {
	t.Parallel()

	f := newRideFixture(true)
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 150; i++ {
		f.rides.AddRide(&domain.Ride{
			ID:        fmt.Sprintf("done-%03d", i),
			UserID:    "u",
			DriverID:  "d1",
			Status:    domain.RideStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	f.rides.AddRide(&domain.Ride{ID: "mine", UserID: "u", DriverID: "d1", Status: domain.RideStatusInProgress, CreatedAt: base.Add(200 * time.Minute)})
	f.rides.AddRide(&domain.Ride{ID: "fresh", UserID: "u", Status: domain.RideStatusWaiting, CreatedAt: base.Add(300 * time.Minute)})

	rides, err := f.service.ListRides(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rides) != 100 {
		t.Fatalf("expected the listing to be capped at 100, got %d", len(rides))
	}
	if rides[0].ID != "mine" || rides[1].ID != "fresh" {
		t.Fatalf("expected open rides first, got %s, %s", rides[0].ID, rides[1].ID)
	}
	if rides[2].ID != "done-149" || rides[99].ID != "done-052" {
		t.Errorf("expected newest history after open rides, got %s .. %s", rides[2].ID, rides[99].ID)
	}

	other, err := f.service.ListRides(context.Background(), "d2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(other) != 1 || other[0].ID != "fresh" {
		t.Errorf("expected d2 to see only the WAITING ride, got %d rides", len(other))
	}
}
