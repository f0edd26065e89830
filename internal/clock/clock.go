package clock

import (
	"sync"
	"time"
)

// Clock источник текущего времени. Подменяется в тестах.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// System возвращает часы реального времени
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Stamper выдает строго возрастающие timestamp'ы в миллисекундах.
// Как и у логических часов, два события одного процесса никогда не получают
// одинаковую метку, даже если произошли в одну миллисекунду или часы ушли назад.
// Это сохраняет порядок очереди при сортировке по timestamp.
type Stamper struct {
	clock Clock
	last  int64
	mu    sync.Mutex
}

// NewStamper создает Stamper поверх заданных часов
func NewStamper(c Clock) *Stamper {
	return &Stamper{clock: c}
}

// Tick возвращает новый timestamp: max(now, last+1)
func (s *Stamper) Tick() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UnixMilli()
	if now <= s.last {
		now = s.last + 1
	}
	s.last = now
	return now
}

// Observe сдвигает часы вперед до ts, если ts больше последней выданной метки.
// Используется при восстановлении очереди после перезапуска.
func (s *Stamper) Observe(ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ts > s.last {
		s.last = ts
	}
}

// Now возвращает текущее время нижележащих часов
func (s *Stamper) Now() time.Time {
	return s.clock.Now()
}

// Manual часы с ручным управлением для тестов
type Manual struct {
	now time.Time
	mu  sync.Mutex
}

// NewManual создает ручные часы, установленные на t
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set устанавливает текущее время
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance сдвигает время вперед на d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
