// Package data реализует пользовательские действия над счетчиками.
//
// При наличии связи изменение сразу отправляется на сервер, и локальный
// снимок обновляется авторитетным ответом. Без связи или при временной
// ошибке изменение применяется локально и ставится в очередь.
package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/tallysync/internal/client/aggregator"
	"github.com/iudanet/tallysync/internal/client/api"
	"github.com/iudanet/tallysync/internal/client/connectivity"
	"github.com/iudanet/tallysync/internal/client/local"
	"github.com/iudanet/tallysync/internal/models"
	"github.com/iudanet/tallysync/internal/validation"
	pkgapi "github.com/iudanet/tallysync/pkg/api"
)

var (
	// ErrCounterNotFound счетчика нет в локальном снимке
	ErrCounterNotFound = errors.New("counter not found")
	// ErrAmbiguousCounter ссылке соответствует несколько счетчиков
	ErrAmbiguousCounter = errors.New("counter reference is ambiguous")
)

// Service выполняет действия пользователя над счетчиками
type Service struct {
	api    api.CounterAPI
	store  *local.Store
	agg    *aggregator.Aggregator
	conn   *connectivity.Monitor
	logger *slog.Logger
	newID  func() string
}

// NewService создает сервис действий пользователя
func NewService(client api.CounterAPI, store *local.Store, agg *aggregator.Aggregator, conn *connectivity.Monitor, logger *slog.Logger) *Service {
	return &Service{
		api:    client,
		store:  store,
		agg:    agg,
		conn:   conn,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// List возвращает счетчики из локального снимка
func (s *Service) List(ctx context.Context) []models.Counter {
	return s.store.ReadSnapshot(ctx)
}

// Resolve находит счетчик по точному ID, уникальному префиксу ID или точному названию
func (s *Service) Resolve(ctx context.Context, ref string) (models.Counter, error) {
	counters := s.store.ReadSnapshot(ctx)

	for _, c := range counters {
		if c.ID == ref {
			return c, nil
		}
	}

	var matches []models.Counter
	for _, c := range counters {
		if strings.HasPrefix(c.ID, ref) || strings.EqualFold(c.Name, ref) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return models.Counter{}, fmt.Errorf("%w: %s", ErrCounterNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.Counter{}, fmt.Errorf("%w: %s matches %d counters", ErrAmbiguousCounter, ref, len(matches))
	}
}

// PendingTaps возвращает число нажатий, еще не отправленных агрегатором
func (s *Service) PendingTaps(counterID string) int {
	return s.agg.Pending(counterID)
}

// Create создает счетчик с клиентским ID
func (s *Service) Create(ctx context.Context, name string, goal *int64) (models.Counter, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateCounterName(name); err != nil {
		return models.Counter{}, err
	}
	if err := validation.ValidateDailyGoal(goal); err != nil {
		return models.Counter{}, err
	}

	now := s.store.Now()
	counter := models.Counter{
		ID:          s.newID(),
		Name:        name,
		DailyGoal:   goal,
		CreatedAt:   now,
		LastUpdated: now,
	}
	counter.Normalize(s.store.Today())
	fields := counter.Fields()

	if s.conn.Online() {
		created, err := s.api.CreateCounter(ctx, fields.CreateRequest(counter.ID))
		if err == nil {
			return s.storeAuthoritative(ctx, created)
		}
		if !s.fallback(err) {
			return models.Counter{}, fmt.Errorf("failed to create counter: %w", err)
		}
	}

	if err := s.store.UpsertCounter(ctx, counter); err != nil {
		return models.Counter{}, err
	}
	if _, err := s.store.EnqueuePendingChange(ctx, models.PendingChange{
		ID:     counter.ID,
		Type:   models.ChangeCreate,
		Fields: &fields,
	}); err != nil {
		return models.Counter{}, err
	}
	return counter, nil
}

// Rename меняет название счетчика
func (s *Service) Rename(ctx context.Context, id, name string) (models.Counter, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateCounterName(name); err != nil {
		return models.Counter{}, err
	}
	return s.update(ctx, id, models.CounterFields{Name: &name})
}

// SetGoal задает дневную цель. nil убирает цель.
func (s *Service) SetGoal(ctx context.Context, id string, goal *int64) (models.Counter, error) {
	if err := validation.ValidateDailyGoal(goal); err != nil {
		return models.Counter{}, err
	}
	if goal == nil {
		return s.update(ctx, id, models.CounterFields{ClearDailyGoal: true})
	}
	return s.update(ctx, id, models.CounterFields{DailyGoal: goal})
}

// Reset обнуляет значение и вклад пользователей и удаляет прогресс за сегодня.
// История предыдущих дней сохраняется.
func (s *Service) Reset(ctx context.Context, id string) (models.Counter, error) {
	counter, ok := s.store.Counter(ctx, id)
	if !ok {
		return models.Counter{}, fmt.Errorf("%w: %s", ErrCounterNotFound, id)
	}

	counter.Reset(s.store.Today(), s.store.Now())
	zero := int64(0)
	return s.update(ctx, id, models.CounterFields{
		Value:   &zero,
		Users:   map[string]int64{},
		History: counter.History,
	})
}

// update отправляет частичное обновление или применяет его локально
func (s *Service) update(ctx context.Context, id string, fields models.CounterFields) (models.Counter, error) {
	s.settle(ctx, id)
	counter, ok := s.store.Counter(ctx, id)
	if !ok {
		return models.Counter{}, fmt.Errorf("%w: %s", ErrCounterNotFound, id)
	}

	// имя нужно серверу, если PUT превратится в создание
	if fields.Name == nil {
		name := counter.Name
		fields.Name = &name
	}

	if s.direct(ctx, id) {
		updated, err := s.api.UpdateCounter(ctx, id, fields.UpdateRequest())
		if err == nil {
			return s.storeAuthoritative(ctx, updated)
		}
		if !s.fallback(err) {
			return models.Counter{}, fmt.Errorf("failed to update counter: %w", err)
		}
	}

	counter.ApplyFields(fields, s.store.Today(), s.store.Now())
	if err := s.store.UpsertCounter(ctx, counter); err != nil {
		return models.Counter{}, err
	}
	if _, err := s.store.EnqueuePendingChange(ctx, models.PendingChange{
		ID:     id,
		Type:   models.ChangeUpdate,
		Fields: &fields,
	}); err != nil {
		return models.Counter{}, err
	}
	return counter, nil
}

// Delete удаляет счетчик. Отсутствие счетчика на сервере не является ошибкой.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.settle(ctx, id)
	if s.direct(ctx, id) {
		err := s.api.DeleteCounter(ctx, id)
		if err == nil || api.IsNotFound(err) {
			return s.store.RemoveCounter(ctx, id)
		}
		if !s.fallback(err) {
			return fmt.Errorf("failed to delete counter: %w", err)
		}
	}

	if err := s.store.RemoveCounter(ctx, id); err != nil {
		return err
	}
	_, err := s.store.EnqueuePendingChange(ctx, models.PendingChange{ID: id, Type: models.ChangeDelete})
	return err
}

// Increment записывает одно нажатие "+1". Нажатие отправляется агрегатором
// пакетом вместе с соседними; день берется на момент нажатия.
func (s *Service) Increment(ctx context.Context, id, user string) error {
	if err := validation.ValidateUserName(user); err != nil {
		return err
	}
	if _, ok := s.store.Counter(ctx, id); !ok {
		return fmt.Errorf("%w: %s", ErrCounterNotFound, id)
	}
	return s.agg.Record(id, user, s.store.Today())
}

// Decrement уменьшает счетчик на единицу отдельным запросом
func (s *Service) Decrement(ctx context.Context, id, user string) (models.Counter, error) {
	if err := validation.ValidateUserName(user); err != nil {
		return models.Counter{}, err
	}
	s.settle(ctx, id)
	counter, ok := s.store.Counter(ctx, id)
	if !ok {
		return models.Counter{}, fmt.Errorf("%w: %s", ErrCounterNotFound, id)
	}
	if counter.Value == 0 {
		return counter, nil
	}

	today := s.store.Today()
	if s.direct(ctx, id) {
		updated, err := s.api.Increment(ctx, id, pkgapi.IncrementRequest{ActingUser: user, DayKey: today, Delta: -1})
		if err == nil {
			return s.storeAuthoritative(ctx, updated)
		}
		if !s.fallback(err) {
			return models.Counter{}, fmt.Errorf("failed to decrement counter: %w", err)
		}
	}

	counter.ApplyIncrement(user, today, -1, today, s.store.Now())
	if err := s.store.UpsertCounter(ctx, counter); err != nil {
		return models.Counter{}, err
	}
	if _, err := s.store.EnqueuePendingChange(ctx, models.PendingChange{
		ID:         id,
		Type:       models.ChangeIncrement,
		ActingUser: user,
		DayKey:     today,
		Delta:      -1,
	}); err != nil {
		return models.Counter{}, err
	}
	return counter, nil
}

// settle отправляет накопленные нажатия счетчика до следующего изменения
func (s *Service) settle(ctx context.Context, id string) {
	if s.agg.Pending(id) == 0 {
		return
	}
	if err := s.agg.Flush(ctx); err != nil {
		s.logger.Warn("Failed to flush pending taps", "error", err, "id", id)
	}
}

// direct сообщает, можно ли отправить изменение сразу. Изменения счетчика
// с непустой очередью тоже идут через очередь, чтобы сохранить порядок.
func (s *Service) direct(ctx context.Context, id string) bool {
	return s.conn.Online() && !s.store.HasPendingChanges(ctx, id)
}

func (s *Service) storeAuthoritative(ctx context.Context, in *pkgapi.Counter) (models.Counter, error) {
	counter := models.CounterFromAPI(*in)
	counter.Normalize(s.store.Today())
	if err := s.store.UpsertCounter(ctx, counter); err != nil {
		return models.Counter{}, err
	}
	return counter, nil
}

// fallback сообщает, можно ли сохранить изменение локально после ошибки запроса.
// Транспортная ошибка переводит клиента в offline.
func (s *Service) fallback(err error) bool {
	if !api.IsTransient(err) {
		return false
	}

	var se *api.StatusError
	if !errors.As(err, &se) {
		s.conn.Set(false)
	}
	s.logger.Warn("Server unavailable, saving change locally", "error", err)
	return true
}
