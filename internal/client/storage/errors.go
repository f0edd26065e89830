package storage

import "errors"

// Common client storage errors
var (
	// ErrSnapshotNotFound indicates that no snapshot has been written yet
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrQuotaExceeded indicates that the snapshot does not fit into the storage limit
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
