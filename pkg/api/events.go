package api

import (
	"encoding/json"
	"fmt"
)

// EventType тип события в потоке /sync
type EventType string

// Типы событий потока обновлений
const (
	EventInitial            EventType = "initial"
	EventCounterCreated     EventType = "counter_created"
	EventCounterUpdated     EventType = "counter_updated"
	EventCounterDeleted     EventType = "counter_deleted"
	EventCounterIncremented EventType = "counter_incremented"
	EventCounterDecremented EventType = "counter_decremented"
	EventPing               EventType = "ping"
)

// Event вариант события потока. Реализуется только типами ниже.
type Event interface {
	EventType() EventType
}

// InitialEvent полный снимок счетчиков, первое событие каждой подписки
type InitialEvent struct {
	Counters []Counter `json:"counters"`
}

// CounterCreatedEvent счетчик создан
type CounterCreatedEvent struct {
	Counter Counter `json:"counter"`
}

// CounterUpdatedEvent изменены поля счетчика (имя, цель, сброс)
type CounterUpdatedEvent struct {
	Counter Counter `json:"counter"`
}

// CounterDeletedEvent счетчик удален
type CounterDeletedEvent struct {
	ID string `json:"id"`
}

// CounterIncrementedEvent счетчик после увеличения и атрибуция изменения
type CounterIncrementedEvent struct {
	ActingUser string  `json:"actingUser"`
	DayKey     string  `json:"dayKey"`
	Counter    Counter `json:"counter"`
	Delta      int64   `json:"delta"`
}

// CounterDecrementedEvent счетчик после уменьшения, Delta отрицательная
type CounterDecrementedEvent struct {
	ActingUser string  `json:"actingUser"`
	DayKey     string  `json:"dayKey"`
	Counter    Counter `json:"counter"`
	Delta      int64   `json:"delta"`
}

// PingEvent поддерживает простаивающий поток, клиенты его игнорируют
type PingEvent struct{}

func (InitialEvent) EventType() EventType            { return EventInitial }
func (CounterCreatedEvent) EventType() EventType     { return EventCounterCreated }
func (CounterUpdatedEvent) EventType() EventType     { return EventCounterUpdated }
func (CounterDeletedEvent) EventType() EventType     { return EventCounterDeleted }
func (CounterIncrementedEvent) EventType() EventType { return EventCounterIncremented }
func (CounterDecrementedEvent) EventType() EventType { return EventCounterDecremented }
func (PingEvent) EventType() EventType               { return EventPing }

// Message одна строка NDJSON потока
type Message struct {
	Event     Event
	Seq       uint64
	Timestamp int64
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	Type      EventType       `json:"type"`
	Seq       uint64          `json:"seq"`
	Timestamp int64           `json:"timestamp"`
}

// MarshalJSON кодирует сообщение как {"type", "seq", "timestamp", "data"}
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Event == nil {
		return nil, fmt.Errorf("message has no event")
	}

	data, err := json.Marshal(m.Event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", m.Event.EventType(), err)
	}

	return json.Marshal(envelope{
		Type:      m.Event.EventType(),
		Seq:       m.Seq,
		Timestamp: m.Timestamp,
		Data:      data,
	})
}

// UnmarshalJSON декодирует конверт и выбирает вариант по полю type
func (m *Message) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("failed to decode event envelope: %w", err)
	}

	var ev Event
	switch env.Type {
	case EventInitial:
		ev = &InitialEvent{}
	case EventCounterCreated:
		ev = &CounterCreatedEvent{}
	case EventCounterUpdated:
		ev = &CounterUpdatedEvent{}
	case EventCounterDeleted:
		ev = &CounterDeletedEvent{}
	case EventCounterIncremented:
		ev = &CounterIncrementedEvent{}
	case EventCounterDecremented:
		ev = &CounterDecrementedEvent{}
	case EventPing:
		ev = &PingEvent{}
	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}

	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return fmt.Errorf("failed to decode %s event: %w", env.Type, err)
		}
	}

	m.Seq = env.Seq
	m.Timestamp = env.Timestamp
	m.Event = deref(ev)
	return nil
}

// deref возвращает вариант по значению, чтобы type switch у получателя
// работал одинаково для закодированных и декодированных событий
func deref(ev Event) Event {
	switch e := ev.(type) {
	case *InitialEvent:
		return *e
	case *CounterCreatedEvent:
		return *e
	case *CounterUpdatedEvent:
		return *e
	case *CounterDeletedEvent:
		return *e
	case *CounterIncrementedEvent:
		return *e
	case *CounterDecrementedEvent:
		return *e
	case *PingEvent:
		return *e
	}
	return ev
}
