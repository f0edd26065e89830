package storage

import "errors"

// Common storage errors
var (
	// ErrCounterNotFound indicates that counter was not found in storage
	ErrCounterNotFound = errors.New("counter not found")

	// ErrCounterExists indicates that counter with this ID already exists
	ErrCounterExists = errors.New("counter already exists")
)
