package tests

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/events"
	"ridehail/internal/middleware"
	"ridehail/internal/redis"
	"ridehail/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	UpdateStatusCallCount int32

	// Error injection
	GetError          error
	UpdateStatusError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = status
	return nil
}

// Status returns the stored status of a driver for test assertions.
func (m *MockDriverRepository) Status(id string) domain.DriverStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.drivers[id]; ok {
		return d.Status
	}
	return ""
}

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository. Its
// transitions are conditional on the stored status, like the SQL ones.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount     int32
	GetCallCount        int32
	TransitionCallCount int32

	// Error injection
	CreateError error
	GetError    error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride.Clone()
}

// GetRide returns a copy of the stored ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.rides[id]; ok {
		return r.Clone()
	}
	return nil
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rides[ride.ID]; exists {
		return fmt.Errorf("duplicate ride %s", ride.ID)
	}
	m.rides[ride.ID] = ride.Clone()
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ride.Clone(), nil
}

func (m *MockRideRepository) ListForDriver(ctx context.Context, driverID string, limit int) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Ride, 0)
	for _, r := range m.rides {
		if r.Status == domain.RideStatusWaiting || r.DriverID == driverID {
			result = append(result, r.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Status.Terminal() != b.Status.Terminal() {
			return !a.Status.Terminal()
		}
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		if a.Status.Terminal() {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockRideRepository) MarkAccepted(ctx context.Context, id, driverID string, at time.Time) error {
	return m.transition(id, func(r *domain.Ride) error {
		return r.Accept(driverID, at)
	})
}

func (m *MockRideRepository) MarkCompleted(ctx context.Context, id, driverID string, fare float64, at time.Time) error {
	return m.transition(id, func(r *domain.Ride) error {
		return r.Finish(driverID, fare, at)
	})
}

func (m *MockRideRepository) MarkCancelled(ctx context.Context, id, reason string, at time.Time) error {
	return m.transition(id, func(r *domain.Ride) error {
		return r.Cancel(reason, at)
	})
}

// transition applies fn to a copy and stores it only when fn succeeds.
// Any refusal is reported as ErrStaleState, matching a conditional UPDATE
// that matched no row.
func (m *MockRideRepository) transition(id string, fn func(*domain.Ride) error) error {
	atomic.AddInt32(&m.TransitionCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return repository.ErrNotFound
	}
	next := ride.Clone()
	if err := fn(next); err != nil {
		return repository.ErrStaleState
	}
	m.rides[id] = next
	return nil
}

// ──────────────────────────────────────────────
// MOCK TRANSACTOR
// ──────────────────────────────────────────────

// MockTransactor runs fn against the mock repositories directly.
type MockTransactor struct {
	Rides   *MockRideRepository
	Drivers *MockDriverRepository

	CallCount int32
	BeginErr  error
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(rides repository.RideRepository, drivers repository.DriverRepository) error) error {
	atomic.AddInt32(&m.CallCount, 1)
	if m.BeginErr != nil {
		return m.BeginErr
	}
	return fn(m.Rides, m.Drivers)
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of the ride lock.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string
	seq   int

	AcquireCallCount int32
	ReleaseCallCount int32
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]string)}
}

// Hold takes the lock for rideID as if another instance held it.
func (m *MockLockStore) Hold(rideID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[rideID] = "held-elsewhere"
}

// Held reports whether rideID is locked.
func (m *MockLockStore) Held(rideID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[rideID]
	return ok
}

func (m *MockLockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[rideID]; held {
		return "", false, nil
	}
	m.seq++
	token := fmt.Sprintf("token-%d", m.seq)
	m.locks[rideID] = token
	return token, true, nil
}

func (m *MockLockStore) ReleaseRideLock(ctx context.Context, rideID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[rideID] == token {
		delete(m.locks, rideID)
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK CACHE STORE
// ──────────────────────────────────────────────

// MockCacheStore is a mock implementation of the ride cache.
type MockCacheStore struct {
	mu    sync.Mutex
	rides map[string]*domain.Ride

	HitCount        int32
	InvalidateCount int32
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{rides: make(map[string]*domain.Ride)}
}

func (m *MockCacheStore) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, nil
	}
	atomic.AddInt32(&m.HitCount, 1)
	return ride.Clone(), nil
}

func (m *MockCacheStore) SetRide(ctx context.Context, ride *domain.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride.Clone()
	return nil
}

func (m *MockCacheStore) InvalidateRide(ctx context.Context, rideID string) error {
	atomic.AddInt32(&m.InvalidateCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rides, rideID)
	return nil
}

// Cached reports whether rideID is in the cache.
func (m *MockCacheStore) Cached(rideID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rides[rideID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK POSITION STORE
// ──────────────────────────────────────────────

// MockPositionStore is a mock implementation of the driver position store.
type MockPositionStore struct {
	mu        sync.RWMutex
	positions map[string]domain.DriverPosition

	SaveCallCount int32
	SaveError     error
}

// NewMockPositionStore creates a new mock position store.
func NewMockPositionStore() *MockPositionStore {
	return &MockPositionStore{positions: make(map[string]domain.DriverPosition)}
}

func (m *MockPositionStore) Save(ctx context.Context, pos domain.DriverPosition) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[pos.DriverID] = pos
	return nil
}

func (m *MockPositionStore) Get(ctx context.Context, driverID string) (*domain.DriverPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[driverID]
	if !ok {
		return nil, redis.ErrPositionNotFound
	}
	return &pos, nil
}

func (m *MockPositionStore) Remove(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, driverID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHERS
// ──────────────────────────────────────────────

// MockPublisher records ride events and positions.
type MockPublisher struct {
	mu        sync.Mutex
	events    []events.RideEvent
	positions []domain.DriverPosition

	Err error
}

func (m *MockPublisher) PublishRideEvent(ctx context.Context, ev events.RideEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.Err
}

func (m *MockPublisher) PublishPosition(ctx context.Context, pos domain.DriverPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, pos)
	return m.Err
}

// EventTypes returns the published event types in order.
func (m *MockPublisher) EventTypes() []events.RideEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.RideEventType, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}

// Events returns a copy of the published events.
func (m *MockPublisher) Events() []events.RideEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.RideEvent(nil), m.events...)
}

// Positions returns a copy of the published positions.
func (m *MockPublisher) Positions() []domain.DriverPosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DriverPosition(nil), m.positions...)
}

// Ensure mocks implement interfaces.
var (
	_ repository.RideRepository    = (*MockRideRepository)(nil)
	_ repository.DriverRepository  = (*MockDriverRepository)(nil)
	_ repository.Transactor        = (*MockTransactor)(nil)
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ redis.CacheStoreInterface    = (*MockCacheStore)(nil)
	_ redis.PositionStoreInterface = (*MockPositionStore)(nil)
	_ events.RidePublisher         = (*MockPublisher)(nil)
	_ events.PositionPublisher     = (*MockPublisher)(nil)
	_ middleware.ResponseStore     = (*MockResponseStore)(nil)
)

// ──────────────────────────────────────────────
// MOCK RESPONSE STORE
// ──────────────────────────────────────────────

// MockResponseStore keeps idempotent responses in memory.
type MockResponseStore struct {
	mu   sync.Mutex
	data map[string][]byte

	SetCallCount int32
}

// NewMockResponseStore creates a new mock response store.
func NewMockResponseStore() *MockResponseStore {
	return &MockResponseStore{data: make(map[string][]byte)}
}

func (m *MockResponseStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *MockResponseStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}
