package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/tallysync/internal/server/broadcast"
	"github.com/iudanet/tallysync/internal/server/storage"
	"github.com/iudanet/tallysync/pkg/api"
)

// Hub регистрирует подписчиков потока изменений
type Hub interface {
	SubscribeWithSnapshot(ctx context.Context, ch broadcast.Channel, snapshot func(ctx context.Context) ([]api.Counter, error)) error
	Unsubscribe(ch broadcast.Channel)
}

// StreamHandler отдает поток изменений в формате NDJSON:
// первая строка initial со всеми счетчиками, далее события по мере записи.
type StreamHandler struct {
	logger  *slog.Logger
	hub     Hub
	storage storage.CounterStorage
	buffer  int
}

// NewStreamHandler создает handler потока. buffer ограничивает очередь
// подписчика; медленный клиент с переполненной очередью отключается.
func NewStreamHandler(logger *slog.Logger, hub Hub, storage storage.CounterStorage, buffer int) *StreamHandler {
	if buffer <= 0 {
		buffer = broadcast.DefaultBuffer
	}
	return &StreamHandler{
		logger:  logger,
		hub:     hub,
		storage: storage,
		buffer:  buffer,
	}
}

// Stream обрабатывает GET /api/v1/sync
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("Streaming unsupported by response writer")
		writeError(h.logger, w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := broadcast.NewSubscriber(h.buffer)
	if err := h.hub.SubscribeWithSnapshot(ctx, sub, h.snapshot); err != nil {
		h.logger.Error("Failed to subscribe", "error", err)
		writeError(h.logger, w, "failed to load snapshot", http.StatusInternalServerError)
		return
	}
	defer func() {
		h.hub.Unsubscribe(sub)
		sub.Close()
	}()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Info("Stream opened", "remote_addr", r.RemoteAddr)
	defer h.logger.Info("Stream closed", "remote_addr", r.RemoteAddr)

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			// Отключен broadcaster'ом (переполнение или остановка сервера)
			return
		case msg := <-sub.Messages():
			if err := enc.Encode(msg); err != nil {
				h.logger.Debug("Failed to write stream message", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (h *StreamHandler) snapshot(ctx context.Context) ([]api.Counter, error) {
	counters, err := h.storage.ListCounters(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]api.Counter, 0, len(counters))
	for _, c := range counters {
		out = append(out, c.ToAPI())
	}
	return out, nil
}
