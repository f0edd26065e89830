package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iudanet/tallysync/internal/server/broadcast"
	"github.com/iudanet/tallysync/internal/server/metrics"
	"github.com/iudanet/tallysync/internal/server/middleware"
	"github.com/iudanet/tallysync/internal/server/storage"
)

// APIPrefix префикс всех API маршрутов
const APIPrefix = "/api/v1"

// Store хранилище счетчиков с проверкой доступности
type Store interface {
	storage.CounterStorage
	Pinger
}

// RouterConfig зависимости HTTP слоя
type RouterConfig struct {
	Logger       *slog.Logger
	Storage      Store
	Broadcaster  *broadcast.Broadcaster
	Metrics      *metrics.Metrics
	Limiter      *middleware.RateLimiter // nil отключает ограничение частоты
	Version      string
	StreamBuffer int
}

// NewRouter собирает маршруты сервера
func NewRouter(cfg RouterConfig) http.Handler {
	counters := NewCounterHandler(cfg.Logger, cfg.Storage, cfg.Broadcaster, cfg.Metrics)
	stream := NewStreamHandler(cfg.Logger, cfg.Broadcaster, cfg.Storage, cfg.StreamBuffer)
	health := NewHealthHandler(cfg.Logger, cfg.Version, cfg.Storage, cfg.Broadcaster)

	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware(cfg.Logger))
	r.Use(middleware.LoggingMiddleware(cfg.Logger, cfg.Metrics, "/metrics", APIPrefix+"/health"))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(cfg.Logger, w, "route not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(cfg.Logger, w, "method not allowed", http.StatusMethodNotAllowed)
	})

	r.Methods(http.MethodGet).Path("/metrics").Handler(cfg.Metrics.Handler())

	api := r.PathPrefix(APIPrefix).Subrouter()
	if cfg.Limiter != nil {
		api.Use(middleware.RateLimitMiddleware(cfg.Limiter, cfg.Logger))
	}

	api.Methods(http.MethodGet).Path("/health").HandlerFunc(health.Health)
	api.Methods(http.MethodGet).Path("/sync").HandlerFunc(stream.Stream)

	api.Methods(http.MethodGet).Path("/counters").HandlerFunc(counters.List)
	api.Methods(http.MethodPost).Path("/counters").HandlerFunc(counters.Create)
	api.Methods(http.MethodGet).Path("/counters/{id}").HandlerFunc(counters.Get)
	api.Methods(http.MethodPut).Path("/counters/{id}").HandlerFunc(counters.Update)
	api.Methods(http.MethodDelete).Path("/counters/{id}").HandlerFunc(counters.Delete)
	api.Methods(http.MethodPost).Path("/counters/{id}/increment").HandlerFunc(counters.Increment)
	api.Methods(http.MethodPost).Path("/counters/{id}/increment-batch").HandlerFunc(counters.IncrementBatch)

	return r
}
