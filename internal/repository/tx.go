package repository

import "context"

// Transactor runs fn with ride and driver repositories bound to a single
// transaction. The transaction commits only if fn returns nil.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(rides RideRepository, drivers DriverRepository) error) error
}
