package storage

import (
	"context"

	"github.com/iudanet/tallysync/internal/models"
)

// CounterStorage defines interface for the durable counter store.
// Every call is atomic. Returned counters are normalized for the current day.
type CounterStorage interface {
	// GetCounter retrieves a counter by ID
	// Returns ErrCounterNotFound if counter doesn't exist
	GetCounter(ctx context.Context, id string) (*models.Counter, error)

	// ListCounters retrieves all counters ordered by creation time
	// Returns empty slice if no counters exist
	ListCounters(ctx context.Context) ([]*models.Counter, error)

	// AddCounter creates a new counter. Empty ID is replaced with a new UUID.
	// Returns ErrCounterExists if counter with the same ID exists
	AddCounter(ctx context.Context, counter *models.Counter) (*models.Counter, error)

	// UpdateCounter applies partial fields to an existing counter
	// Returns ErrCounterNotFound if counter doesn't exist
	UpdateCounter(ctx context.Context, id string, fields models.CounterFields) (*models.Counter, error)

	// DeleteCounter removes a counter
	// Returns false if counter didn't exist
	DeleteCounter(ctx context.Context, id string) (bool, error)

	// ApplyIncrements applies grouped increments attributed to their own day keys
	// Returns ErrCounterNotFound if counter doesn't exist
	ApplyIncrements(ctx context.Context, id string, groups []models.IncrementGroup) (*models.Counter, error)
}
