package models

import (
	"fmt"

	"github.com/iudanet/tallysync/pkg/api"
)

// ChangeType тип локально накопленного изменения
type ChangeType string

const (
	ChangeIncrement ChangeType = "increment"
	ChangeCreate    ChangeType = "create"
	ChangeUpdate    ChangeType = "update"
	ChangeDelete    ChangeType = "delete"
)

// PendingChange представляет изменение, примененное локально,
// но еще не подтвержденное сервером. Каждая запись атомарна:
// она либо полностью применена на сервере, либо остается в очереди.
type PendingChange struct {
	Fields        *CounterFields `json:"fields,omitempty"` // create/update
	ID            string         `json:"id"`               // ID счетчика
	Type          ChangeType     `json:"type"`
	ActingUser    string         `json:"actingUser,omitempty"` // increment
	DayKey        string         `json:"dayKey,omitempty"`     // increment
	Seq           uint64         `json:"seq"`                  // порядковый номер в очереди, назначается хранилищем
	Timestamp     int64          `json:"timestamp"`            // часы клиента в момент постановки в очередь, мс
	Delta         int64          `json:"delta,omitempty"`
	PreviousValue int64          `json:"previousValue,omitempty"`
	NewValue      int64          `json:"newValue,omitempty"`
}

// Validate проверяет, что тип изменения известен и payload согласован с типом
func (c *PendingChange) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("pending change has empty counter id")
	}

	switch c.Type {
	case ChangeIncrement:
		if c.Delta == 0 {
			return fmt.Errorf("increment change %s has zero delta", c.ID)
		}
	case ChangeCreate, ChangeUpdate:
		if c.Fields == nil {
			return fmt.Errorf("%s change %s has no fields", c.Type, c.ID)
		}
	case ChangeDelete:
	default:
		return fmt.Errorf("unknown pending change type %q", c.Type)
	}

	return nil
}

// PendingIncrement одиночный инкремент, ожидающий пакетной отправки
type PendingIncrement struct {
	ID         string `json:"id"` // уникален для каждой постановки в очередь
	CounterID  string `json:"counterId"`
	ActingUser string `json:"actingUser"`
	DayKey     string `json:"dayKey"` // день, к которому относится инкремент (не день отправки)
	Timestamp  int64  `json:"timestamp"`
}

// Snapshot последнее известное клиенту состояние счетчиков
type Snapshot struct {
	Counters       []Counter `json:"counters"`
	LastSync       int64     `json:"lastSync"`       // время последней локальной записи, мс
	LastServerSync int64     `json:"lastServerSync"` // время последнего подтвержденного получения с сервера, мс
}

// CreateRequest формирует запрос на создание счетчика с заданным ID
func (f *CounterFields) CreateRequest(id string) api.CreateCounterRequest {
	req := api.CreateCounterRequest{
		ID:      id,
		Users:   f.Users,
		History: HistoryToAPI(f.History),
	}
	if f.Name != nil {
		req.Name = *f.Name
	}
	if f.Value != nil {
		req.Value = *f.Value
	}
	if !f.ClearDailyGoal {
		req.DailyGoal = f.DailyGoal
	}
	return req
}

// UpdateRequest формирует запрос на частичное обновление
func (f *CounterFields) UpdateRequest() api.UpdateCounterRequest {
	return api.UpdateCounterRequest{
		Name:           f.Name,
		Value:          f.Value,
		DailyGoal:      f.DailyGoal,
		ClearDailyGoal: f.ClearDailyGoal,
		Users:          f.Users,
		History:        HistoryToAPI(f.History),
	}
}

// FieldsFromCreate извлекает поля из запроса на создание
func FieldsFromCreate(req api.CreateCounterRequest) CounterFields {
	name := req.Name
	value := req.Value
	return CounterFields{
		Name:           &name,
		Value:          &value,
		DailyGoal:      req.DailyGoal,
		ClearDailyGoal: req.DailyGoal == nil,
		Users:          req.Users,
		History:        HistoryFromAPI(req.History),
	}
}

// FieldsFromUpdate извлекает поля из запроса на обновление
func FieldsFromUpdate(req api.UpdateCounterRequest) CounterFields {
	return CounterFields{
		Name:           req.Name,
		Value:          req.Value,
		DailyGoal:      req.DailyGoal,
		ClearDailyGoal: req.ClearDailyGoal,
		Users:          req.Users,
		History:        HistoryFromAPI(req.History),
	}
}
