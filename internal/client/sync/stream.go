package sync

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"

	pkgapi "github.com/iudanet/tallysync/pkg/api"
)

// RunStream держит подписку на /sync открытой до отмены ctx.
// Первое сообщение сессии переводит клиента в online, обрыв потока в offline.
// Переподключение идет с экспоненциальной задержкой; после сессии, получившей
// хотя бы одно сообщение, задержка сбрасывается.
func (d *Driver) RunStream(ctx context.Context) {
	for ctx.Err() == nil {
		err := retry.Do(ctx, d.newBackoff(), func(ctx context.Context) error {
			received, err := d.streamSession(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}

			d.conn.Set(false)
			d.logger.Info("Live updates disconnected", "error", err, "received", received)

			if received {
				return nil
			}
			return retry.RetryableError(err)
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			d.logger.Error("Live updates stopped", "error", err)
			return
		}
	}
}

func (d *Driver) newBackoff() retry.Backoff {
	b := retry.NewExponential(d.minBackoff)
	b = retry.WithJitterPercent(10, b)
	return retry.WithCappedDuration(d.maxBackoff, b)
}

// streamSession читает поток до обрыва. Возвращает true, если было получено
// хотя бы одно сообщение.
func (d *Driver) streamSession(ctx context.Context) (bool, error) {
	received := false
	defer d.streaming.Store(false)

	err := d.api.Subscribe(ctx, func(msg pkgapi.Message) error {
		if !received {
			received = true
			d.streaming.Store(true)
			d.logger.Info("Live updates connected")
			// Set(true) запускает отправку очереди через Run
			d.conn.Set(true)
		}
		if err := d.HandleMessage(ctx, msg); err != nil {
			d.logger.Error("Failed to apply stream event", "error", err, "type", msg.Event.EventType(), "seq", msg.Seq)
		}
		return nil
	})
	return received, err
}
