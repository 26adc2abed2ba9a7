package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStaleState is returned when a conditional transition matched no row
	// because the stored ride is no longer in the expected state.
	ErrStaleState = errors.New("ride is not in the expected state")
)
