package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"syscall"

	"go.etcd.io/bbolt"

	"github.com/iudanet/tallysync/internal/client/storage"
	"github.com/iudanet/tallysync/internal/models"
)

var keySnapshot = []byte("current")

// SaveSnapshot атомарно заменяет снимок.
// Снимок больше snapshotLimit или нехватка места на диске дают ErrQuotaExceeded.
func (s *Storage) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if s.snapshotLimit > 0 && len(data) > s.snapshotLimit {
		return fmt.Errorf("snapshot is %d bytes, limit %d: %w", len(data), s.snapshotLimit, storage.ErrQuotaExceeded)
	}

	err = s.update(bucketSnapshot, func(b *bbolt.Bucket) error {
		return b.Put(keySnapshot, data)
	})
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("failed to save snapshot: %w: %w", storage.ErrQuotaExceeded, err)
	}
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot retrieves the saved snapshot
// Returns ErrSnapshotNotFound if nothing has been saved yet
func (s *Storage) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var snapshot *models.Snapshot

	err := s.view(bucketSnapshot, func(b *bbolt.Bucket) error {
		data := b.Get(keySnapshot)
		if data == nil {
			return storage.ErrSnapshotNotFound
		}

		snapshot = &models.Snapshot{}
		if err := json.Unmarshal(data, snapshot); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// ClearSnapshot удаляет снимок
func (s *Storage) ClearSnapshot(ctx context.Context) error {
	return s.update(bucketSnapshot, func(b *bbolt.Bucket) error {
		return b.Delete(keySnapshot)
	})
}
