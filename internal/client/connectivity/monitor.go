// Package connectivity отслеживает доступность сервера.
// Сигнал push-style: его выставляют поток обновлений и результаты запросов,
// подписчики получают только переходы между состояниями.
package connectivity

import (
	"log/slog"
	"sync"
)

// Monitor хранит текущее состояние связи с сервером
type Monitor struct {
	logger    *slog.Logger
	listeners map[int]chan bool
	nextID    int
	online    bool
	mu        sync.Mutex
}

// New создает монитор с начальным состоянием online
func New(logger *slog.Logger, online bool) *Monitor {
	return &Monitor{
		logger:    logger,
		listeners: make(map[int]chan bool),
		online:    online,
	}
}

// Online сообщает, доступен ли сервер
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set выставляет состояние. Подписчики уведомляются только при смене состояния.
// Возвращает true, если состояние изменилось.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return false
	}
	m.online = online
	m.logger.Info("Connectivity changed", "online", online)

	for _, ch := range m.listeners {
		// Отстающему подписчику важно только последнее состояние
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
	return true
}

// Subscribe возвращает канал переходов и функцию отписки.
// Канал буферизован на одно значение и хранит последнее непрочитанное состояние.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.listeners, id)
		})
	}
}
