package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/tallysync/internal/models"
)

// seqKey кодирует seq в big-endian, чтобы курсор обходил очередь в порядке добавления
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// AppendPending добавляет изменение в конец очереди.
// Seq назначается последовательностью bucket'а и записывается в change.
func (s *Storage) AppendPending(ctx context.Context, change *models.PendingChange) (uint64, error) {
	var seq uint64

	err := s.update(bucketPending, func(b *bbolt.Bucket) error {
		next, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		stored := *change
		stored.Seq = next
		data, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("failed to marshal pending change: %w", err)
		}

		if err := b.Put(seqKey(next), data); err != nil {
			return fmt.Errorf("failed to save pending change: %w", err)
		}

		seq = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	change.Seq = seq
	return seq, nil
}

// ListPending возвращает очередь в порядке добавления
func (s *Storage) ListPending(ctx context.Context) ([]models.PendingChange, error) {
	changes := make([]models.PendingChange, 0)

	err := s.view(bucketPending, func(b *bbolt.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			var change models.PendingChange
			if err := json.Unmarshal(v, &change); err != nil {
				return fmt.Errorf("failed to unmarshal pending change %d: %w", binary.BigEndian.Uint64(k), err)
			}
			changes = append(changes, change)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return changes, nil
}

// RemovePending удаляет изменения с указанными seq одной транзакцией
func (s *Storage) RemovePending(ctx context.Context, seqs []uint64) error {
	if len(seqs) == 0 {
		return nil
	}

	return s.update(bucketPending, func(b *bbolt.Bucket) error {
		for _, seq := range seqs {
			if err := b.Delete(seqKey(seq)); err != nil {
				return fmt.Errorf("failed to delete pending change %d: %w", seq, err)
			}
		}
		return nil
	})
}

// ClearPending удаляет всю очередь. Последовательность seq при этом не сбрасывается.
func (s *Storage) ClearPending(ctx context.Context) error {
	return s.update(bucketPending, func(b *bbolt.Bucket) error {
		// Удаление через курсор во время обхода пропускает ключи, поэтому сначала собираем их
		var keys [][]byte
		if err := b.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return err
		}

		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("failed to clear pending changes: %w", err)
			}
		}
		return nil
	})
}
