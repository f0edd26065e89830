package storage

import (
	"context"

	"github.com/iudanet/tallysync/internal/models"
)

//go:generate moq -out pending_mock.go . PendingStorage

// PendingStorage хранит очередь изменений, еще не подтвержденных сервером.
// Порядок очереди совпадает с порядком добавления.
type PendingStorage interface {
	// AppendPending добавляет изменение в конец очереди и возвращает назначенный seq
	AppendPending(ctx context.Context, change *models.PendingChange) (uint64, error)

	// ListPending возвращает все изменения в порядке добавления
	ListPending(ctx context.Context) ([]models.PendingChange, error)

	// RemovePending удаляет изменения с указанными seq. Неизвестные seq игнорируются.
	RemovePending(ctx context.Context, seqs []uint64) error

	// ClearPending удаляет всю очередь
	ClearPending(ctx context.Context) error
}
