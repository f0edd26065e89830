package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

const (
	keyActingUser = "acting_user"
)

// SaveActingUser saves the default acting user name
func (s *Storage) SaveActingUser(ctx context.Context, user string) error {
	return s.update(bucketMetadata, func(b *bbolt.Bucket) error {
		if err := b.Put([]byte(keyActingUser), []byte(user)); err != nil {
			return fmt.Errorf("failed to save acting user: %w", err)
		}
		return nil
	})
}

// GetActingUser retrieves the default acting user name
// Returns empty string if nothing was saved
func (s *Storage) GetActingUser(ctx context.Context) (string, error) {
	var user string

	err := s.view(bucketMetadata, func(b *bbolt.Bucket) error {
		user = string(b.Get([]byte(keyActingUser)))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to get acting user: %w", err)
	}

	return user, nil
}
