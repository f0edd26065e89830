package storage

import "context"

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage defines interface for storing client settings
type MetadataStorage interface {
	// SaveActingUser запоминает имя пользователя, от которого выполняются изменения
	SaveActingUser(ctx context.Context, user string) error

	// GetActingUser returns the saved user name
	// Returns empty string if nothing was saved
	GetActingUser(ctx context.Context) (string, error)
}
