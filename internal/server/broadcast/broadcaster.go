package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/tallysync/internal/clock"
	"github.com/iudanet/tallysync/pkg/api"
)

// Observer получает уведомления для метрик
type Observer interface {
	SubscriberAdded()
	SubscriberRemoved()
	SubscriberDropped()
	EventPublished(eventType api.EventType)
}

type noopObserver struct{}

func (noopObserver) SubscriberAdded()             {}
func (noopObserver) SubscriberRemoved()           {}
func (noopObserver) SubscriberDropped()           {}
func (noopObserver) EventPublished(api.EventType) {}

// Broadcaster рассылает авторитетные события изменений всем подписчикам.
//
// mu защищает только множество подписчиков. publishMu упорядочивает публикации:
// каждый подписчик получает события в порядке вызова Publish, а новый подписчик
// получает initial snapshot строго до первого инкрементального события.
type Broadcaster struct {
	logger    *slog.Logger
	clock     clock.Clock
	observer  Observer
	subs      map[Channel]struct{}
	seq       uint64
	mu        sync.RWMutex
	publishMu sync.Mutex
}

// Option configures Broadcaster
type Option func(*Broadcaster)

// WithClock задает источник времени для timestamp событий
func WithClock(c clock.Clock) Option {
	return func(b *Broadcaster) {
		b.clock = c
	}
}

// WithObserver подключает сбор метрик
func WithObserver(o Observer) Option {
	return func(b *Broadcaster) {
		b.observer = o
	}
}

// New creates a new broadcaster
func New(logger *slog.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		logger:   logger,
		clock:    clock.System(),
		observer: noopObserver{},
		subs:     make(map[Channel]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe регистрирует канал. Повторная регистрация ничего не делает.
func (b *Broadcaster) Subscribe(ch Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[ch]; ok {
		return
	}
	b.subs[ch] = struct{}{}
	b.observer.SubscriberAdded()
}

// Unsubscribe удаляет канал. Безопасен для неизвестного или уже удаленного канала.
func (b *Broadcaster) Unsubscribe(ch Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	b.observer.SubscriberRemoved()
}

// SubscribeWithSnapshot отправляет подписчику initial событие со snapshot
// и регистрирует его. Публикации на это время приостанавливаются, поэтому
// подписчик не может пропустить или получить раньше snapshot'а ни одно событие.
func (b *Broadcaster) SubscribeWithSnapshot(ctx context.Context, ch Channel, snapshot func(ctx context.Context) ([]api.Counter, error)) error {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	counters, err := snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	msg := b.nextMessage(api.InitialEvent{Counters: counters})
	if err := ch.Write(msg); err != nil {
		return fmt.Errorf("failed to deliver initial snapshot: %w", err)
	}

	b.Subscribe(ch)
	b.observer.EventPublished(api.EventInitial)
	return nil
}

// Publish рассылает событие всем текущим подписчикам.
// Ошибка записи одному подписчику не мешает остальным и не возвращается вызывающему.
func (b *Broadcaster) Publish(ev api.Event) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.publishLocked(ev)
}

// Commit выполняет изменение хранилища и публикует его результат атомарно
// относительно других публикаций и новых подписок. Порядок записей в хранилище
// совпадает с порядком событий у подписчиков. Если fn вернул ошибку или nil
// событие, ничего не публикуется.
func (b *Broadcaster) Commit(ctx context.Context, fn func(ctx context.Context) (api.Event, error)) error {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	ev, err := fn(ctx)
	if err != nil {
		return err
	}
	if ev != nil {
		b.publishLocked(ev)
	}
	return nil
}

// RunHeartbeat периодически публикует ping, пока ctx не отменен
func (b *Broadcaster) RunHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Publish(api.PingEvent{})
		case <-ctx.Done():
			return
		}
	}
}

// Len возвращает количество подписчиков
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// CloseAll отключает всех подписчиков (при остановке сервера)
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[Channel]struct{})
	b.mu.Unlock()

	for ch := range subs {
		ch.Close()
		b.observer.SubscriberRemoved()
	}
}

func (b *Broadcaster) publishLocked(ev api.Event) {
	msg := b.nextMessage(ev)

	// Снимок списка под read lock, запись без удержания блокировки
	b.mu.RLock()
	targets := make([]Channel, 0, len(b.subs))
	for ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	var failed []Channel
	for _, ch := range targets {
		if err := ch.Write(msg); err != nil {
			b.logger.Debug("Dropping subscriber", "error", err, "event", ev.EventType(), "seq", msg.Seq)
			failed = append(failed, ch)
		}
	}

	b.observer.EventPublished(ev.EventType())

	// Ленивая очистка отвалившихся подписчиков
	for _, ch := range failed {
		ch.Close()
		b.Unsubscribe(ch)
		b.observer.SubscriberDropped()
	}
}

func (b *Broadcaster) nextMessage(ev api.Event) api.Message {
	b.seq++
	return api.Message{
		Event:     ev,
		Seq:       b.seq,
		Timestamp: b.clock.Now().UnixMilli(),
	}
}
