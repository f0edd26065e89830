package storage

import (
	"context"

	"github.com/iudanet/tallysync/internal/models"
)

//go:generate moq -out snapshot_mock.go . SnapshotStorage

// SnapshotStorage хранит последний известный клиенту снимок всех счетчиков
type SnapshotStorage interface {
	// SaveSnapshot атомарно заменяет снимок.
	// Returns ErrQuotaExceeded if the encoded snapshot exceeds the storage limit
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error

	// LoadSnapshot возвращает сохраненный снимок.
	// Returns ErrSnapshotNotFound if nothing has been saved yet
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)

	// ClearSnapshot удаляет снимок
	ClearSnapshot(ctx context.Context) error
}
