// Package sync реализует драйвер синхронизации клиента: отправку очереди
// изменений, слияние со снимком сервера и обработку потока обновлений.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/tallysync/internal/client/api"
	"github.com/iudanet/tallysync/internal/client/connectivity"
	"github.com/iudanet/tallysync/internal/client/local"
	"github.com/iudanet/tallysync/internal/client/reconcile"
	"github.com/iudanet/tallysync/internal/models"
	pkgapi "github.com/iudanet/tallysync/pkg/api"
)

// Status состояние синхронизации, видимое пользователю
type Status string

const (
	// StatusOffline показываются локальные, возможно устаревшие данные
	StatusOffline Status = "offline"
	// StatusSyncing идет отправка очереди или получение снимка
	StatusSyncing Status = "syncing"
	// StatusSynced локальное состояние совпадает с сервером
	StatusSynced Status = "synced"
)

const (
	drainIdle int32 = iota
	drainRunning
)

var (
	// ErrDrainInProgress возвращается, если синхронизация уже выполняется.
	// Запрос не ставится в очередь: следующий переход в online или таймер повторят попытку.
	ErrDrainInProgress = errors.New("sync already in progress")
	// ErrOffline возвращается при попытке синхронизации без связи
	ErrOffline = errors.New("server is unreachable")
)

// Result итог одного цикла синхронизации
type Result struct {
	Applied   int  // изменения, подтвержденные сервером
	Discarded int  // некорректные изменения, удаленные из очереди
	Deferred  int  // изменения, оставшиеся в очереди до следующего цикла
	Fetched   bool // снимок сервера получен и слит с локальным
	Counters  int  // счетчиков после слияния
}

// Driver переключает клиента между online и offline: при появлении связи
// отправляет очередь изменений, получает снимок сервера и сливает его с локальным.
type Driver struct {
	api          api.CounterAPI
	store        *local.Store
	conn         *connectivity.Monitor
	logger       *slog.Logger
	onStatus     func(Status)
	onEvent      func(pkgapi.Message)
	cancelDrain  context.CancelFunc
	status       Status
	pollInterval time.Duration
	minBackoff   time.Duration
	maxBackoff   time.Duration
	drainState   atomic.Int32
	streaming    atomic.Bool
	mu           stdsync.Mutex
	applyMu      stdsync.Mutex
}

// Option configures Driver
type Option func(*Driver)

// WithStatusHook задает callback смены статуса
func WithStatusHook(fn func(Status)) Option {
	return func(d *Driver) {
		d.onStatus = fn
	}
}

// WithEventHook задает callback, вызываемый для каждого события потока после его применения
func WithEventHook(fn func(pkgapi.Message)) Option {
	return func(d *Driver) {
		d.onEvent = fn
	}
}

// WithPollInterval включает периодическую синхронизацию, пока поток обновлений не активен
func WithPollInterval(interval time.Duration) Option {
	return func(d *Driver) {
		d.pollInterval = interval
	}
}

// WithReconnectBackoff задает границы экспоненциальной задержки переподключения
func WithReconnectBackoff(minDelay, maxDelay time.Duration) Option {
	return func(d *Driver) {
		d.minBackoff = minDelay
		d.maxBackoff = maxDelay
	}
}

// NewDriver создает драйвер синхронизации
func NewDriver(client api.CounterAPI, store *local.Store, conn *connectivity.Monitor, logger *slog.Logger, opts ...Option) *Driver {
	d := &Driver{
		api:        client,
		store:      store,
		conn:       conn,
		logger:     logger,
		status:     StatusOffline,
		minBackoff: time.Second,
		maxBackoff: time.Minute,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Status возвращает текущий статус синхронизации
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Driver) setStatus(s Status) {
	d.mu.Lock()
	changed := d.status != s
	d.status = s
	d.mu.Unlock()

	if changed {
		d.logger.Debug("Sync status changed", "status", s)
		if d.onStatus != nil {
			d.onStatus(s)
		}
	}
}

// Streaming сообщает, активна ли подписка на поток обновлений
func (d *Driver) Streaming() bool {
	return d.streaming.Load()
}

// Sync отправляет очередь изменений в порядке возрастания timestamp и,
// если все изменения приняты, получает снимок сервера и сливает его с локальным.
//
// Одновременно выполняется только один цикл: параллельный вызов получает
// ErrDrainInProgress. Переход в offline отменяет текущий цикл; неподтвержденные
// изменения остаются в очереди.
func (d *Driver) Sync(ctx context.Context) (*Result, error) {
	if !d.drainState.CompareAndSwap(drainIdle, drainRunning) {
		return nil, ErrDrainInProgress
	}
	defer d.drainState.Store(drainIdle)

	if !d.conn.Online() {
		d.setStatus(StatusOffline)
		return nil, ErrOffline
	}

	drainCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancelDrain = cancel
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.cancelDrain = nil
		d.mu.Unlock()
		cancel()
	}()

	d.setStatus(StatusSyncing)

	result, err := d.sync(drainCtx)
	if err != nil || !result.Fetched || result.Deferred > 0 {
		d.setStatus(StatusOffline)
	} else {
		d.setStatus(StatusSynced)
	}
	return result, err
}

func (d *Driver) sync(ctx context.Context) (*Result, error) {
	result := &Result{}

	transport, err := d.drain(ctx, result)
	if err != nil {
		return result, err
	}
	if transport {
		d.conn.Set(false)
	}
	if result.Deferred > 0 {
		d.logger.Info("Sync incomplete, snapshot fetch postponed",
			"applied", result.Applied,
			"deferred", result.Deferred,
			"discarded", result.Discarded,
		)
		return result, nil
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	if err := d.fetchAndReconcile(ctx, result); err != nil {
		if !api.IsTransient(err) {
			return result, err
		}
		var se *api.StatusError
		if !errors.As(err, &se) {
			d.conn.Set(false)
		}
		d.logger.Warn("Snapshot fetch failed", "error", err)
		return result, nil
	}

	d.logger.Info("Sync completed",
		"applied", result.Applied,
		"discarded", result.Discarded,
		"counters", result.Counters,
	)
	return result, nil
}

// drain отправляет очередь по одному изменению. Ошибка одного изменения
// блокирует только последующие изменения того же счетчика.
// Возвращает true, если была транспортная ошибка.
func (d *Driver) drain(ctx context.Context, result *Result) (bool, error) {
	changes, err := d.store.ReadPendingChanges(ctx)
	if err != nil {
		return false, err
	}
	if len(changes) == 0 {
		return false, nil
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Timestamp < changes[j].Timestamp
	})

	d.logger.Info("Draining pending changes", "count", len(changes))

	var (
		done      []uint64
		blocked   = make(map[string]bool)
		transport bool
	)

	for i, change := range changes {
		if ctx.Err() != nil || !d.conn.Online() {
			result.Deferred += len(changes) - i
			break
		}
		if blocked[change.ID] {
			result.Deferred++
			continue
		}

		if err := change.Validate(); err != nil {
			d.logger.Error("Discarding malformed pending change", "error", err, "seq", change.Seq)
			done = append(done, change.Seq)
			result.Discarded++
			continue
		}

		err := d.apply(ctx, change)
		switch {
		case err == nil:
			done = append(done, change.Seq)
			result.Applied++
		case ctx.Err() != nil:
			result.Deferred += len(changes) - i
		case api.IsTransient(err):
			d.logger.Warn("Pending change failed, will retry",
				"error", err,
				"id", change.ID,
				"type", change.Type,
				"seq", change.Seq,
			)
			var se *api.StatusError
			if !errors.As(err, &se) {
				transport = true
			}
			blocked[change.ID] = true
			result.Deferred++
		default:
			d.logger.Error("Pending change rejected by server, discarding",
				"error", err,
				"id", change.ID,
				"type", change.Type,
				"seq", change.Seq,
			)
			done = append(done, change.Seq)
			result.Discarded++
		}

		if ctx.Err() != nil && err != nil {
			break
		}
	}

	if err := d.store.RemovePendingChanges(context.WithoutCancel(ctx), done); err != nil {
		return transport, fmt.Errorf("failed to remove applied changes: %w", err)
	}
	return transport, nil
}

// apply отправляет одно изменение соответствующим запросом
func (d *Driver) apply(ctx context.Context, change models.PendingChange) error {
	switch change.Type {
	case models.ChangeCreate:
		_, err := d.api.CreateCounter(ctx, change.Fields.CreateRequest(change.ID))
		if api.IsConflict(err) {
			// счетчик уже создан прошлой попыткой
			return nil
		}
		return err
	case models.ChangeUpdate:
		_, err := d.api.UpdateCounter(ctx, change.ID, change.Fields.UpdateRequest())
		return err
	case models.ChangeDelete:
		err := d.api.DeleteCounter(ctx, change.ID)
		if api.IsNotFound(err) {
			return nil
		}
		return err
	case models.ChangeIncrement:
		_, err := d.api.Increment(ctx, change.ID, pkgapi.IncrementRequest{
			ActingUser: change.ActingUser,
			DayKey:     change.DayKey,
			Delta:      change.Delta,
		})
		return err
	default:
		return fmt.Errorf("unknown pending change type %q", change.Type)
	}
}

// fetchAndReconcile получает снимок сервера и сохраняет результат слияния.
// lastServerSync становится временем получения, если очередь пуста.
func (d *Driver) fetchAndReconcile(ctx context.Context, result *Result) error {
	counters, err := d.api.ListCounters(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch counters: %w", err)
	}

	n, err := d.applyServerSnapshot(ctx, counters)
	if err != nil {
		return err
	}
	result.Fetched = true
	result.Counters = n
	return nil
}

func (d *Driver) applyServerSnapshot(ctx context.Context, counters []pkgapi.Counter) (int, error) {
	fetchedAt := d.store.Now()

	server := make([]models.Counter, 0, len(counters))
	for _, c := range counters {
		server = append(server, models.CounterFromAPI(c))
	}

	d.applyMu.Lock()
	defer d.applyMu.Unlock()

	pending, err := d.store.ReadPendingChanges(ctx)
	if err != nil {
		return 0, err
	}

	merged := reconcile.Reconcile(server, d.store.Snapshot(ctx), pending)

	// lastServerSync сдвигается только при пустой очереди: иначе следующее
	// слияние посчитает неотправленные изменения устаревшими
	serverSyncTime := &fetchedAt
	if len(pending) > 0 {
		serverSyncTime = nil
	}
	if err := d.store.WriteSnapshot(ctx, merged, serverSyncTime); err != nil {
		return 0, fmt.Errorf("failed to save reconciled snapshot: %w", err)
	}
	return len(merged), nil
}

// HandleMessage применяет событие потока к локальному хранилищу
func (d *Driver) HandleMessage(ctx context.Context, msg pkgapi.Message) error {
	switch ev := msg.Event.(type) {
	case pkgapi.InitialEvent:
		n, err := d.applyServerSnapshot(ctx, ev.Counters)
		if err != nil {
			return err
		}
		d.logger.Debug("Initial snapshot reconciled", "counters", n)
	case pkgapi.CounterCreatedEvent:
		d.applyRemote(ctx, ev.Counter, msg.Event.EventType())
	case pkgapi.CounterUpdatedEvent:
		d.applyRemote(ctx, ev.Counter, msg.Event.EventType())
	case pkgapi.CounterIncrementedEvent:
		d.applyRemote(ctx, ev.Counter, msg.Event.EventType())
	case pkgapi.CounterDecrementedEvent:
		d.applyRemote(ctx, ev.Counter, msg.Event.EventType())
	case pkgapi.CounterDeletedEvent:
		d.applyMu.Lock()
		err := d.store.RemoveCounter(ctx, ev.ID)
		d.applyMu.Unlock()
		if err != nil {
			return err
		}
	case pkgapi.PingEvent:
	default:
		d.logger.Warn("Ignoring unknown stream event", "seq", msg.Seq)
	}

	if d.onEvent != nil {
		d.onEvent(msg)
	}
	return nil
}

// applyRemote заменяет локальный счетчик серверным, если для него нет
// неподтвержденных локальных изменений
func (d *Driver) applyRemote(ctx context.Context, counter pkgapi.Counter, kind pkgapi.EventType) {
	d.applyMu.Lock()
	defer d.applyMu.Unlock()

	if d.store.HasPendingChanges(ctx, counter.ID) {
		d.logger.Debug("Skipping remote update, local changes pending", "id", counter.ID, "event", kind)
		return
	}
	if err := d.store.UpsertCounter(ctx, models.CounterFromAPI(counter)); err != nil {
		d.logger.Error("Failed to apply remote update", "error", err, "id", counter.ID, "event", kind)
	}
}

// goOffline отменяет текущий цикл синхронизации
func (d *Driver) goOffline() {
	d.mu.Lock()
	cancel := d.cancelDrain
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.setStatus(StatusOffline)
}

func (d *Driver) trySync(ctx context.Context) {
	if _, err := d.Sync(ctx); err != nil &&
		!errors.Is(err, ErrDrainInProgress) &&
		!errors.Is(err, ErrOffline) &&
		!errors.Is(err, context.Canceled) {
		d.logger.Error("Sync failed", "error", err)
	}
}

// Run реагирует на переходы связи, держит поток обновлений открытым и,
// если задан интервал, синхронизирует по таймеру, пока поток не активен.
// Блокируется до отмены ctx.
func (d *Driver) Run(ctx context.Context) {
	transitions, unsubscribe := d.conn.Subscribe()
	defer unsubscribe()

	var wg stdsync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.RunStream(ctx)
	}()

	if d.conn.Online() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.trySync(ctx)
		}()
	}

	var pollC <-chan time.Time
	if d.pollInterval > 0 {
		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()
		pollC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case online := <-transitions:
			if !online {
				d.goOffline()
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.trySync(ctx)
			}()
		case <-pollC:
			if d.Streaming() || !d.conn.Online() {
				continue
			}
			// цикл продолжает читать переходы, чтобы offline отменил отправку
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.trySync(ctx)
			}()
		}
	}
}
