// Package local хранит локальное состояние клиента: снимок счетчиков
// и очередь изменений, еще не подтвержденных сервером.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/tallysync/internal/client/storage"
	"github.com/iudanet/tallysync/internal/clock"
	"github.com/iudanet/tallysync/internal/models"
)

// DefaultHistoryDays глубина истории, сохраняемая при нехватке места
const DefaultHistoryDays = 14

// Store локальное хранилище изменений.
// Операции со снимком выполняются под mu, поэтому read-modify-write
// из агрегатора, драйвера синхронизации и пользовательских действий не теряют записи.
type Store struct {
	snapshots   storage.SnapshotStorage
	pending     storage.PendingStorage
	logger      *slog.Logger
	stamper     *clock.Stamper
	historyDays int
	mu          sync.Mutex
}

// Option configures Store
type Option func(*Store)

// WithClock задает источник времени
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.stamper = clock.NewStamper(c)
	}
}

// WithHistoryDays задает глубину истории для сокращенного снимка
func WithHistoryDays(days int) Option {
	return func(s *Store) {
		s.historyDays = days
	}
}

// New создает локальное хранилище поверх постоянного хранилища
func New(snapshots storage.SnapshotStorage, pending storage.PendingStorage, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		snapshots:   snapshots,
		pending:     pending,
		logger:      logger,
		stamper:     clock.NewStamper(clock.System()),
		historyDays: DefaultHistoryDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now возвращает текущее время часов хранилища
func (s *Store) Now() int64 {
	return s.stamper.Now().UnixMilli()
}

// Today возвращает ключ текущего дня
func (s *Store) Today() string {
	return models.DayKey(s.stamper.Now())
}

// Stamp возвращает строго возрастающий timestamp для нового изменения
func (s *Store) Stamp() int64 {
	return s.stamper.Tick()
}

// Snapshot возвращает сохраненный снимок или nil, если его нет.
// Ошибки хранилища не возвращаются: они логируются, и результат считается пустым.
func (s *Store) Snapshot(ctx context.Context) *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked(ctx)
}

// ReadSnapshot возвращает последний сохраненный список счетчиков или пустой список
func (s *Store) ReadSnapshot(ctx context.Context) []models.Counter {
	snap := s.Snapshot(ctx)
	if snap == nil {
		return []models.Counter{}
	}
	return snap.Counters
}

// Counter возвращает счетчик из снимка
func (s *Store) Counter(ctx context.Context, id string) (models.Counter, bool) {
	for _, c := range s.ReadSnapshot(ctx) {
		if c.ID == id {
			return c, true
		}
	}
	return models.Counter{}, false
}

// WriteSnapshot сохраняет список счетчиков и выставляет lastSync = now.
// serverSyncTime, если задан, становится новым lastServerSync; иначе
// сохраняется прежнее значение.
//
// При нехватке места история сокращается до historyDays дней и запись
// повторяется один раз. Если и это не удалось, снимок удаляется целиком.
func (s *Store) WriteSnapshot(ctx context.Context, counters []models.Counter, serverSyncTime *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeLocked(ctx, counters, serverSyncTime)
}

// Update выполняет read-modify-write снимка атомарно относительно других записей.
// fn получает копию текущего списка и возвращает новый.
func (s *Store) Update(ctx context.Context, fn func(counters []models.Counter) []models.Counter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counters []models.Counter
	if snap := s.loadLocked(ctx); snap != nil {
		counters = snap.Counters
	}
	return s.writeLocked(ctx, fn(counters), nil)
}

// UpsertCounter заменяет счетчик с тем же ID или добавляет его в конец списка
func (s *Store) UpsertCounter(ctx context.Context, counter models.Counter) error {
	return s.Update(ctx, func(counters []models.Counter) []models.Counter {
		return Upsert(counters, counter)
	})
}

// RemoveCounter удаляет счетчик из снимка. Отсутствующий ID не является ошибкой.
func (s *Store) RemoveCounter(ctx context.Context, id string) error {
	return s.Update(ctx, func(counters []models.Counter) []models.Counter {
		return Remove(counters, id)
	})
}

// EnqueuePendingChange добавляет изменение в конец очереди.
// Нулевой Timestamp заменяется меткой часов хранилища.
func (s *Store) EnqueuePendingChange(ctx context.Context, change models.PendingChange) (models.PendingChange, error) {
	if change.Timestamp == 0 {
		change.Timestamp = s.Stamp()
	} else {
		s.stamper.Observe(change.Timestamp)
	}

	if _, err := s.pending.AppendPending(ctx, &change); err != nil {
		return change, fmt.Errorf("failed to enqueue pending change: %w", err)
	}

	s.logger.Debug("Pending change enqueued",
		"id", change.ID,
		"type", change.Type,
		"seq", change.Seq,
		"timestamp", change.Timestamp,
	)
	return change, nil
}

// ReadPendingChanges возвращает очередь в порядке добавления
func (s *Store) ReadPendingChanges(ctx context.Context) ([]models.PendingChange, error) {
	changes, err := s.pending.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending changes: %w", err)
	}

	// После перезапуска новые метки должны быть старше сохраненных
	for _, c := range changes {
		s.stamper.Observe(c.Timestamp)
	}
	return changes, nil
}

// RemovePendingChanges удаляет подтвержденные или отброшенные изменения
func (s *Store) RemovePendingChanges(ctx context.Context, seqs []uint64) error {
	if err := s.pending.RemovePending(ctx, seqs); err != nil {
		return fmt.Errorf("failed to remove pending changes: %w", err)
	}
	return nil
}

// ClearPendingChanges очищает очередь
func (s *Store) ClearPendingChanges(ctx context.Context) error {
	if err := s.pending.ClearPending(ctx); err != nil {
		return fmt.Errorf("failed to clear pending changes: %w", err)
	}
	return nil
}

// HasPendingChanges сообщает, есть ли в очереди изменения для счетчика
func (s *Store) HasPendingChanges(ctx context.Context, id string) bool {
	changes, err := s.ReadPendingChanges(ctx)
	if err != nil {
		s.logger.Error("Failed to check pending changes", "error", err, "id", id)
		return false
	}
	for _, c := range changes {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) loadLocked(ctx context.Context) *models.Snapshot {
	snap, err := s.snapshots.LoadSnapshot(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrSnapshotNotFound) {
			s.logger.Error("Failed to read local snapshot", "error", err)
		}
		return nil
	}

	if snap.Counters == nil {
		snap.Counters = []models.Counter{}
	}
	today := s.Today()
	for i := range snap.Counters {
		snap.Counters[i].Normalize(today)
	}
	return snap
}

func (s *Store) writeLocked(ctx context.Context, counters []models.Counter, serverSyncTime *int64) error {
	snap := &models.Snapshot{
		Counters: make([]models.Counter, 0, len(counters)),
		LastSync: s.Now(),
	}

	if serverSyncTime != nil {
		snap.LastServerSync = *serverSyncTime
	} else if prev, err := s.snapshots.LoadSnapshot(ctx); err == nil {
		snap.LastServerSync = prev.LastServerSync
	}

	today := s.Today()
	for _, c := range counters {
		c := *c.Clone()
		c.Normalize(today)
		snap.Counters = append(snap.Counters, c)
	}

	err := s.snapshots.SaveSnapshot(ctx, snap)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	pruned := 0
	for i := range snap.Counters {
		pruned += snap.Counters[i].PruneHistory(s.historyDays)
	}
	s.logger.Warn("Snapshot exceeds storage quota, retrying with pruned history",
		"error", err,
		"keep_days", s.historyDays,
		"pruned_days", pruned,
	)

	retryErr := s.snapshots.SaveSnapshot(ctx, snap)
	if retryErr == nil {
		return nil
	}

	// Поврежденный или частичный снимок хуже пустого: сервер восстановит состояние
	s.logger.Error("Pruned snapshot still does not fit, clearing local snapshot", "error", retryErr)
	if clearErr := s.snapshots.ClearSnapshot(ctx); clearErr != nil {
		s.logger.Error("Failed to clear local snapshot", "error", clearErr)
	}
	return fmt.Errorf("failed to write snapshot: %w", retryErr)
}

// Upsert заменяет счетчик с тем же ID или добавляет его в конец
func Upsert(counters []models.Counter, counter models.Counter) []models.Counter {
	out := make([]models.Counter, 0, len(counters)+1)
	found := false
	for _, c := range counters {
		if c.ID == counter.ID {
			out = append(out, counter)
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found {
		out = append(out, counter)
	}
	return out
}

// Remove удаляет счетчик с указанным ID
func Remove(counters []models.Counter, id string) []models.Counter {
	out := make([]models.Counter, 0, len(counters))
	for _, c := range counters {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
