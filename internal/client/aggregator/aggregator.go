// Package aggregator собирает одиночные нажатия "+1" в пакетные запросы.
//
// Нажатия накапливаются в памяти; один общий debounce-таймер и
// страховочный тикер запускают flush. Онлайн flush отправляет по одному
// пакету на счетчик, офлайн flush применяет нажатия к локальному хранилищу
// и ставит их в очередь изменений.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/tallysync/internal/client/api"
	"github.com/iudanet/tallysync/internal/client/connectivity"
	"github.com/iudanet/tallysync/internal/client/local"
	"github.com/iudanet/tallysync/internal/models"
	pkgapi "github.com/iudanet/tallysync/pkg/api"
)

const (
	DefaultFlushDelay     = 2 * time.Second
	DefaultSafetyInterval = 30 * time.Second
	DefaultMaxBatch       = 10

	// сколько счетчиков отправляется параллельно
	flushConcurrency = 4
)

// ErrClosed возвращается после Close
var ErrClosed = errors.New("aggregator closed")

// Aggregator накапливает нажатия и отправляет их пакетами
type Aggregator struct {
	api       api.CounterAPI
	store     *local.Store
	conn      *connectivity.Monitor
	logger    *slog.Logger
	onApplied func(models.Counter)
	newID     func() string
	kickC     chan struct{}
	stopC     chan struct{}
	doneC     chan struct{}
	queue     []models.PendingIncrement

	flushDelay     time.Duration
	safetyInterval time.Duration
	maxBatch       int

	mu       sync.Mutex
	flushMu  sync.Mutex
	startMu  sync.Mutex
	started  bool
	closed   bool
	stopOnce sync.Once
}

// Option configures Aggregator
type Option func(*Aggregator)

// WithFlushDelay задает debounce-окно
func WithFlushDelay(d time.Duration) Option {
	return func(a *Aggregator) {
		a.flushDelay = d
	}
}

// WithSafetyInterval задает период страховочного flush
func WithSafetyInterval(d time.Duration) Option {
	return func(a *Aggregator) {
		a.safetyInterval = d
	}
}

// WithMaxBatch ограничивает число нажатий одного счетчика в одном запросе
func WithMaxBatch(n int) Option {
	return func(a *Aggregator) {
		a.maxBatch = n
	}
}

// WithOnApplied задает callback, получающий счетчик после применения пакета
func WithOnApplied(fn func(models.Counter)) Option {
	return func(a *Aggregator) {
		a.onApplied = fn
	}
}

// New создает агрегатор. Таймеры запускаются методом Start.
func New(client api.CounterAPI, store *local.Store, conn *connectivity.Monitor, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		api:            client,
		store:          store,
		conn:           conn,
		logger:         logger,
		newID:          uuid.NewString,
		kickC:          make(chan struct{}, 1),
		stopC:          make(chan struct{}),
		doneC:          make(chan struct{}),
		flushDelay:     DefaultFlushDelay,
		safetyInterval: DefaultSafetyInterval,
		maxBatch:       DefaultMaxBatch,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start запускает цикл таймеров. Повторный вызов ничего не делает.
func (a *Aggregator) Start(ctx context.Context) {
	a.startMu.Lock()
	defer a.startMu.Unlock()

	if a.started {
		return
	}
	a.started = true
	go a.run(ctx)
}

// run единственное место, где планируются flush по таймеру
func (a *Aggregator) run(ctx context.Context) {
	defer close(a.doneC)

	debounce := time.NewTimer(a.flushDelay)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	safety := time.NewTicker(a.safetyInterval)
	defer safety.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopC:
			return
		case <-a.kickC:
			debounce.Reset(a.flushDelay)
		case <-debounce.C:
			a.flushLogged(ctx)
		case <-safety.C:
			if a.Pending("") > 0 {
				a.flushLogged(ctx)
			}
		}
	}
}

func (a *Aggregator) flushLogged(ctx context.Context) {
	if err := a.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("Increment flush failed, will retry", "error", err, "pending", a.Pending(""))
	}
}

// Record ставит одно нажатие в очередь и переносит общий flush на now+delay.
// dayKey относится к моменту нажатия, а не отправки.
func (a *Aggregator) Record(counterID, actingUser, dayKey string) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.queue = append(a.queue, models.PendingIncrement{
		ID:         a.newID(),
		CounterID:  counterID,
		ActingUser: actingUser,
		DayKey:     dayKey,
		Timestamp:  a.store.Now(),
	})
	a.mu.Unlock()

	select {
	case a.kickC <- struct{}{}:
	default:
	}
	return nil
}

// Pending возвращает число неотправленных нажатий для счетчика.
// Пустой counterID означает все счетчики.
func (a *Aggregator) Pending(counterID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if counterID == "" {
		return len(a.queue)
	}
	n := 0
	for _, inc := range a.queue {
		if inc.CounterID == counterID {
			n++
		}
	}
	return n
}

// flushResult итог отправки пакета одного счетчика
type flushResult struct {
	err     error
	counter *pkgapi.Counter
	ids     []string
	drop    bool
}

// Flush отправляет накопленные нажатия. Для каждого счетчика отправляется
// не больше maxBatch самых старых нажатий; остаток ждет следующего flush.
// Без связи нажатия применяются локально и становятся PendingChange.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	if !a.conn.Online() {
		return a.flushOffline(ctx)
	}

	a.mu.Lock()
	limited := partition(a.queue, a.maxBatch)
	all := partition(a.queue, 0)
	a.mu.Unlock()

	if len(limited) == 0 {
		return nil
	}

	// Счетчик с неотправленными изменениями (например, созданный офлайн)
	// получает нажатия через очередь, иначе пакет обгонит его создание
	var batches, queued []batch
	for i, b := range limited {
		if a.store.HasPendingChanges(ctx, b.counterID) {
			queued = append(queued, all[i])
			continue
		}
		batches = append(batches, b)
	}

	var errs []error
	if len(queued) > 0 {
		if err := a.applyLocally(ctx, queued); err != nil {
			errs = append(errs, err)
		}
	}

	results := make([]flushResult, len(batches))

	var g errgroup.Group
	g.SetLimit(flushConcurrency)
	for i, b := range batches {
		g.Go(func() error {
			results[i] = a.sendBatch(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	var (
		done    []string
		applied []models.Counter
		offline bool
	)
	for i, r := range results {
		switch {
		case r.err == nil:
			done = append(done, r.ids...)
			applied = append(applied, models.CounterFromAPI(*r.counter))
		case r.drop:
			done = append(done, r.ids...)
		default:
			errs = append(errs, fmt.Errorf("counter %s: %w", batches[i].counterID, r.err))
			var se *api.StatusError
			if !errors.As(r.err, &se) && !errors.Is(r.err, context.Canceled) {
				offline = true
			}
		}
	}

	a.remove(done)

	for _, c := range applied {
		if err := a.store.UpsertCounter(ctx, c); err != nil {
			a.logger.Error("Failed to store flushed counter", "error", err, "id", c.ID)
		}
		if a.onApplied != nil {
			a.onApplied(c)
		}
	}

	if offline {
		a.conn.Set(false)
	}
	return errors.Join(errs...)
}

func (a *Aggregator) sendBatch(ctx context.Context, b batch) flushResult {
	ids := make([]string, 0, len(b.incs))
	for _, inc := range b.incs {
		ids = append(ids, inc.ID)
	}

	groups := Group(b.incs)
	req := pkgapi.BatchIncrementRequest{Increments: make([]pkgapi.BatchIncrement, 0, len(groups))}
	for _, g := range groups {
		req.Increments = append(req.Increments, pkgapi.BatchIncrement{
			ActingUser: g.ActingUser,
			DayKey:     g.DayKey,
			Count:      g.Count,
		})
	}

	counter, err := a.api.IncrementBatch(ctx, b.counterID, req)
	if err == nil {
		a.logger.Debug("Increment batch applied", "id", b.counterID, "taps", len(b.incs), "groups", len(groups))
		return flushResult{counter: counter, ids: ids}
	}

	if api.IsNotFound(err) {
		a.logger.Warn("Counter no longer exists, dropping increments", "id", b.counterID, "taps", len(b.incs))
		return flushResult{err: err, ids: ids, drop: true}
	}
	if !api.IsTransient(err) && !errors.Is(err, context.Canceled) {
		a.logger.Error("Increment batch rejected, dropping increments", "error", err, "id", b.counterID, "taps", len(b.incs))
		return flushResult{err: err, ids: ids, drop: true}
	}
	return flushResult{err: err, ids: ids}
}

// flushOffline применяет всю очередь к локальному хранилищу
func (a *Aggregator) flushOffline(ctx context.Context) error {
	a.mu.Lock()
	batches := partition(a.queue, 0)
	a.mu.Unlock()

	return a.applyLocally(ctx, batches)
}

// applyLocally применяет нажатия к локальному снимку: каждая группа
// (счетчик, пользователь, день) становится одним PendingChange с delta = count
func (a *Aggregator) applyLocally(ctx context.Context, batches []batch) error {
	if len(batches) == 0 {
		return nil
	}

	type appliedGroup struct {
		counterID string
		group     models.IncrementGroup
	}

	var (
		done    []string
		applied []appliedGroup
		errs    []error
	)

	for _, b := range batches {
		for _, g := range Group(b.incs) {
			_, err := a.store.EnqueuePendingChange(ctx, models.PendingChange{
				ID:         b.counterID,
				Type:       models.ChangeIncrement,
				ActingUser: g.ActingUser,
				DayKey:     g.DayKey,
				Delta:      g.Count,
			})
			if err != nil {
				errs = append(errs, err)
				continue
			}
			applied = append(applied, appliedGroup{counterID: b.counterID, group: g})
			for _, inc := range b.incs {
				if inc.ActingUser == g.ActingUser && inc.DayKey == g.DayKey {
					done = append(done, inc.ID)
				}
			}
		}
	}

	a.remove(done)

	if len(applied) > 0 {
		today, now := a.store.Today(), a.store.Now()
		var changed []models.Counter
		err := a.store.Update(ctx, func(counters []models.Counter) []models.Counter {
			touched := make(map[string]bool)
			for _, ag := range applied {
				for i := range counters {
					if counters[i].ID == ag.counterID {
						counters[i].ApplyIncrement(ag.group.ActingUser, ag.group.DayKey, ag.group.Count, today, now)
						touched[ag.counterID] = true
					}
				}
			}
			for _, c := range counters {
				if touched[c.ID] {
					changed = append(changed, *c.Clone())
				}
			}
			return counters
		})
		if err != nil {
			errs = append(errs, err)
		}

		a.logger.Info("Offline increments applied locally", "groups", len(applied), "taps", len(done))
		if a.onApplied != nil {
			for _, c := range changed {
				a.onApplied(c)
			}
		}
	}

	return errors.Join(errs...)
}

func (a *Aggregator) remove(ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.queue[:0]
	for _, inc := range a.queue {
		if _, ok := drop[inc.ID]; !ok {
			kept = append(kept, inc)
		}
	}
	a.queue = kept
}

// Close останавливает таймеры и выполняет финальный flush.
// Если сеть не приняла оставшиеся нажатия, они применяются локально,
// так что при выходе ни одно нажатие не теряется.
func (a *Aggregator) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.stopOnce.Do(func() { close(a.stopC) })

	a.startMu.Lock()
	started := a.started
	a.startMu.Unlock()
	if started {
		<-a.doneC
	}

	// Flush отправляет не больше maxBatch нажатий на счетчик, поэтому повторяем, пока есть прогресс
	for pending := a.Pending(""); pending > 0; {
		if err := a.Flush(ctx); err != nil {
			a.logger.Warn("Final flush failed, applying remaining increments locally", "error", err)
			break
		}
		left := a.Pending("")
		if left >= pending {
			break
		}
		pending = left
	}

	if a.Pending("") == 0 {
		return nil
	}

	a.flushMu.Lock()
	defer a.flushMu.Unlock()
	if err := a.flushOffline(ctx); err != nil {
		return fmt.Errorf("failed to save remaining increments: %w", err)
	}
	return nil
}
