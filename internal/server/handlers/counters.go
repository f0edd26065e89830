package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iudanet/tallysync/internal/models"
	"github.com/iudanet/tallysync/internal/server/storage"
	"github.com/iudanet/tallysync/internal/validation"
	"github.com/iudanet/tallysync/pkg/api"
)

// Committer выполняет изменение хранилища и публикует его событие
// в том же порядке, в котором изменения были записаны.
type Committer interface {
	Commit(ctx context.Context, fn func(ctx context.Context) (api.Event, error)) error
}

// IncrementRecorder учитывает примененные инкременты (метрики)
type IncrementRecorder interface {
	IncrementsApplied(n int64)
}

// CounterHandler обрабатывает CRUD и инкременты счетчиков
type CounterHandler struct {
	logger    *slog.Logger
	storage   storage.CounterStorage
	committer Committer
	recorder  IncrementRecorder
}

// NewCounterHandler создает handler счетчиков. recorder может быть nil.
func NewCounterHandler(logger *slog.Logger, storage storage.CounterStorage, committer Committer, recorder IncrementRecorder) *CounterHandler {
	return &CounterHandler{
		logger:    logger,
		storage:   storage,
		committer: committer,
		recorder:  recorder,
	}
}

// List обрабатывает GET /api/v1/counters
func (h *CounterHandler) List(w http.ResponseWriter, r *http.Request) {
	counters, err := h.storage.ListCounters(r.Context())
	if err != nil {
		h.logger.Error("Failed to list counters", "error", err)
		h.sendError(w, "failed to list counters", http.StatusInternalServerError)
		return
	}

	resp := make([]api.Counter, 0, len(counters))
	for _, c := range counters {
		resp = append(resp, c.ToAPI())
	}
	h.sendJSON(w, resp, http.StatusOK)
}

// Get обрабатывает GET /api/v1/counters/{id}
func (h *CounterHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	counter, err := h.storage.GetCounter(r.Context(), id)
	if err != nil {
		h.sendStorageError(w, err, id)
		return
	}
	h.sendJSON(w, counter.ToAPI(), http.StatusOK)
}

// Create обрабатывает POST /api/v1/counters
// ID может прийти от клиента (счетчик создан офлайн); повторное создание дает 409.
func (h *CounterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req api.CreateCounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode create request", "error", err)
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateCreate(req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var created *models.Counter
	err := h.committer.Commit(r.Context(), func(ctx context.Context) (api.Event, error) {
		c, err := h.storage.AddCounter(ctx, counterFromFields(req.ID, models.FieldsFromCreate(req)))
		if err != nil {
			return nil, err
		}
		created = c
		return api.CounterCreatedEvent{Counter: c.ToAPI()}, nil
	})
	if err != nil {
		h.sendStorageError(w, err, req.ID)
		return
	}

	h.logger.Info("Counter created", "id", created.ID, "name", created.Name)
	h.sendJSON(w, created.ToAPI(), http.StatusCreated)
}

// Update обрабатывает PUT /api/v1/counters/{id}
// Частичное обновление; отсутствующий счетчик создается, если задано имя.
func (h *CounterHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req api.UpdateCounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode update request", "error", err, "id", id)
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateUpdate(req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	fields := models.FieldsFromUpdate(req)
	status := http.StatusOK

	var result *models.Counter
	err := h.committer.Commit(r.Context(), func(ctx context.Context) (api.Event, error) {
		c, err := h.storage.UpdateCounter(ctx, id, fields)
		if err == nil {
			result = c
			return api.CounterUpdatedEvent{Counter: c.ToAPI()}, nil
		}
		if !errors.Is(err, storage.ErrCounterNotFound) {
			return nil, err
		}

		// Счетчик удален или еще не создан на сервере: обновление становится созданием
		// из пришедших полей
		c, err = h.storage.AddCounter(ctx, counterFromFields(id, fields))
		if err != nil {
			return nil, err
		}
		result = c
		status = http.StatusCreated
		return api.CounterCreatedEvent{Counter: c.ToAPI()}, nil
	})
	if err != nil {
		h.sendStorageError(w, err, id)
		return
	}

	h.sendJSON(w, result.ToAPI(), status)
}

// Delete обрабатывает DELETE /api/v1/counters/{id}
// Удаление отсутствующего счетчика не является ошибкой.
func (h *CounterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.committer.Commit(r.Context(), func(ctx context.Context) (api.Event, error) {
		existed, err := h.storage.DeleteCounter(ctx, id)
		if err != nil {
			return nil, err
		}
		if !existed {
			return nil, nil
		}
		return api.CounterDeletedEvent{ID: id}, nil
	})
	if err != nil {
		h.sendStorageError(w, err, id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Increment обрабатывает POST /api/v1/counters/{id}/increment
// Отрицательный delta означает декремент.
func (h *CounterHandler) Increment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req api.IncrementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode increment request", "error", err, "id", id)
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Delta == 0 {
		req.Delta = 1
	}

	if err := validateIncrement(req.ActingUser, req.DayKey); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateDelta(req.Delta); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	group := models.IncrementGroup{ActingUser: req.ActingUser, DayKey: req.DayKey, Count: req.Delta}
	counter, err := h.applyGroups(r.Context(), id, []models.IncrementGroup{group})
	if err != nil {
		h.sendStorageError(w, err, id)
		return
	}

	h.sendJSON(w, counter.ToAPI(), http.StatusOK)
}

// IncrementBatch обрабатывает POST /api/v1/counters/{id}/increment-batch
// Все группы применяются одной транзакцией, каждая к своему дню.
func (h *CounterHandler) IncrementBatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req api.BatchIncrementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode batch request", "error", err, "id", id)
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Increments) == 0 {
		h.sendError(w, "increments cannot be empty", http.StatusBadRequest)
		return
	}
	if len(req.Increments) > validation.MaxBatchSize {
		h.sendError(w, fmt.Sprintf("batch must not exceed %d items", validation.MaxBatchSize), http.StatusBadRequest)
		return
	}

	groups := make([]models.IncrementGroup, 0, len(req.Increments))
	for i, inc := range req.Increments {
		if inc.Count == 0 {
			inc.Count = 1
		}
		if err := validateIncrement(inc.ActingUser, inc.DayKey); err != nil {
			h.sendError(w, fmt.Sprintf("increment %d: %v", i, err), http.StatusBadRequest)
			return
		}
		if err := validation.ValidateCount(inc.Count); err != nil {
			h.sendError(w, fmt.Sprintf("increment %d: %v", i, err), http.StatusBadRequest)
			return
		}
		groups = append(groups, models.IncrementGroup{ActingUser: inc.ActingUser, DayKey: inc.DayKey, Count: inc.Count})
	}

	counter, err := h.applyGroups(r.Context(), id, groups)
	if err != nil {
		h.sendStorageError(w, err, id)
		return
	}

	h.logger.Debug("Batch applied", "id", id, "groups", len(groups))
	h.sendJSON(w, counter.ToAPI(), http.StatusOK)
}

// applyGroups применяет группы и публикует одно событие с итоговым счетчиком.
// Атрибуция события берется из первой группы, delta равна сумме групп.
func (h *CounterHandler) applyGroups(ctx context.Context, id string, groups []models.IncrementGroup) (*models.Counter, error) {
	var total int64
	for _, g := range groups {
		total += g.Count
	}

	var result *models.Counter
	err := h.committer.Commit(ctx, func(ctx context.Context) (api.Event, error) {
		c, err := h.storage.ApplyIncrements(ctx, id, groups)
		if err != nil {
			return nil, err
		}
		result = c

		first := groups[0]
		if total < 0 {
			return api.CounterDecrementedEvent{
				ActingUser: first.ActingUser,
				DayKey:     first.DayKey,
				Counter:    c.ToAPI(),
				Delta:      total,
			}, nil
		}
		return api.CounterIncrementedEvent{
			ActingUser: first.ActingUser,
			DayKey:     first.DayKey,
			Counter:    c.ToAPI(),
			Delta:      total,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if h.recorder != nil {
		h.recorder.IncrementsApplied(total)
	}
	return result, nil
}

func counterFromFields(id string, f models.CounterFields) *models.Counter {
	c := &models.Counter{ID: id, Name: id, Users: f.Users, History: f.History}
	// без имени счетчик называется по ID, пока клиент его не переименует
	if f.Name != nil {
		c.Name = *f.Name
	}
	if f.Value != nil {
		c.Value = max(*f.Value, 0)
	}
	if !f.ClearDailyGoal && f.DailyGoal != nil {
		goal := *f.DailyGoal
		c.DailyGoal = &goal
	}
	return c
}

func validateCreate(req api.CreateCounterRequest) error {
	if err := validation.ValidateCounterName(req.Name); err != nil {
		return err
	}
	if req.Value < 0 {
		return fmt.Errorf("value cannot be negative")
	}
	if err := validation.ValidateDailyGoal(req.DailyGoal); err != nil {
		return err
	}
	return validateAttribution(req.Users, req.History)
}

func validateUpdate(req api.UpdateCounterRequest) error {
	if req.Name != nil {
		if err := validation.ValidateCounterName(*req.Name); err != nil {
			return err
		}
	}
	if req.Value != nil && *req.Value < 0 {
		return fmt.Errorf("value cannot be negative")
	}
	if err := validation.ValidateDailyGoal(req.DailyGoal); err != nil {
		return err
	}
	return validateAttribution(req.Users, req.History)
}

func validateAttribution(users map[string]int64, history map[string]api.DayRecord) error {
	for user := range users {
		if err := validation.ValidateUserName(user); err != nil {
			return err
		}
	}
	for key := range history {
		if err := validation.ValidateDayKey(key); err != nil {
			return err
		}
	}
	return nil
}

func validateIncrement(user, dayKey string) error {
	if err := validation.ValidateUserName(user); err != nil {
		return err
	}
	return validation.ValidateDayKey(dayKey)
}

// sendStorageError отображает ошибки хранилища в HTTP статусы
func (h *CounterHandler) sendStorageError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, storage.ErrCounterNotFound):
		h.sendError(w, "counter not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrCounterExists):
		h.sendError(w, "counter already exists", http.StatusConflict)
	case errors.Is(err, context.Canceled):
		h.logger.Debug("Request canceled", "id", id)
	default:
		h.logger.Error("Storage operation failed", "error", err, "id", id)
		h.sendError(w, "internal server error", http.StatusInternalServerError)
	}
}

// sendJSON отправляет JSON ответ
func (h *CounterHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	writeJSON(h.logger, w, data, statusCode)
}

// sendError отправляет JSON ответ с ошибкой
func (h *CounterHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	writeError(h.logger, w, message, statusCode)
}
