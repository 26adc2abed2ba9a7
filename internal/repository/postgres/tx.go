package postgres

import (
	"context"
	"database/sql"

	"ridehail/internal/repository"
)

// Transactor is a PostgreSQL implementation of repository.Transactor.
type Transactor struct {
	db *sql.DB
}

// NewTransactor creates a new Transactor.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx runs fn inside a transaction, rolling back on error.
func (t *Transactor) WithinTx(ctx context.Context, fn func(rides repository.RideRepository, drivers repository.DriverRepository) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(NewRideRepositoryWithTx(tx), NewDriverRepositoryWithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// Ensure interfaces are satisfied.
var (
	_ repository.Transactor       = (*Transactor)(nil)
	_ repository.RideRepository   = (*RideRepository)(nil)
	_ repository.DriverRepository = (*DriverRepository)(nil)
)
