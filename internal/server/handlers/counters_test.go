package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tallysync/internal/clock"
	"github.com/iudanet/tallysync/internal/server/broadcast"
	"github.com/iudanet/tallysync/internal/server/metrics"
	"github.com/iudanet/tallysync/internal/server/storage/sqlite"
	"github.com/iudanet/tallysync/pkg/api"
)

const testDay = "2024-01-15"

var testNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

type testEnv struct {
	router      http.Handler
	storage     *sqlite.Storage
	broadcaster *broadcast.Broadcaster
	metrics     *metrics.Metrics
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := setupTestLogger()
	clk := clock.NewManual(testNow)

	s, err := sqlite.New(context.Background(), ":memory:", sqlite.WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	m := metrics.New()
	b := broadcast.New(logger, broadcast.WithClock(clk), broadcast.WithObserver(m))
	t.Cleanup(b.CloseAll)

	router := NewRouter(RouterConfig{
		Logger:      logger,
		Storage:     s,
		Broadcaster: b,
		Metrics:     m,
		Version:     "test",
	})

	return &testEnv{router: router, storage: s, broadcaster: b, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeCounter(t *testing.T, w *httptest.ResponseRecorder) api.Counter {
	t.Helper()
	var c api.Counter
	require.NoError(t, json.NewDecoder(w.Body).Decode(&c))
	return c
}

func (e *testEnv) createCounter(t *testing.T, req api.CreateCounterRequest) api.Counter {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/counters", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeCounter(t, w)
}

func TestCounterHandler_CreateGetList(t *testing.T) {
	env := setupTestEnv(t)

	goal := int64(20)
	created := env.createCounter(t, api.CreateCounterRequest{Name: "Pushups", DailyGoal: &goal})
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Pushups", created.Name)
	assert.Equal(t, testNow.UnixMilli(), created.CreatedAt)
	require.NotNil(t, created.DailyGoal)
	assert.Equal(t, int64(20), *created.DailyGoal)

	w := env.do(t, http.MethodGet, "/api/v1/counters/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decodeCounter(t, w).ID)

	env.createCounter(t, api.CreateCounterRequest{ID: "client-id", Name: "Squats"})

	w = env.do(t, http.MethodGet, "/api/v1/counters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []api.Counter
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, "client-id", list[1].ID)
}

func TestCounterHandler_Create_Errors(t *testing.T) {
	env := setupTestEnv(t)
	env.createCounter(t, api.CreateCounterRequest{ID: "dup", Name: "Pushups"})

	negative := int64(-1)
	tests := []struct {
		body       any
		name       string
		wantStatus int
	}{
		{name: "malformed json", body: "{not json", wantStatus: http.StatusBadRequest},
		{name: "empty name", body: api.CreateCounterRequest{Name: "  "}, wantStatus: http.StatusBadRequest},
		{name: "negative goal", body: api.CreateCounterRequest{Name: "x", DailyGoal: &negative}, wantStatus: http.StatusBadRequest},
		{name: "bad history key", body: api.CreateCounterRequest{
			Name:    "x",
			History: map[string]api.DayRecord{"yesterday": {}},
		}, wantStatus: http.StatusBadRequest},
		{name: "duplicate id", body: api.CreateCounterRequest{ID: "dup", Name: "again"}, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/counters", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestCounterHandler_Get_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/counters/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCounterHandler_Update(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createCounter(t, api.CreateCounterRequest{ID: "c1", Name: "Pushups"})

	name := "Push-ups"
	goal := int64(30)
	w := env.do(t, http.MethodPut, "/api/v1/counters/"+created.ID, api.UpdateCounterRequest{Name: &name, DailyGoal: &goal})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeCounter(t, w)
	assert.Equal(t, "Push-ups", updated.Name)
	require.NotNil(t, updated.DailyGoal)
	assert.Equal(t, int64(30), *updated.DailyGoal)

	w = env.do(t, http.MethodPut, "/api/v1/counters/"+created.ID, api.UpdateCounterRequest{ClearDailyGoal: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeCounter(t, w).DailyGoal)
}

func TestCounterHandler_Update_Upsert(t *testing.T) {
	env := setupTestEnv(t)

	name := "Recreated"
	value := int64(7)
	w := env.do(t, http.MethodPut, "/api/v1/counters/gone", api.UpdateCounterRequest{Name: &name, Value: &value})
	require.Equal(t, http.StatusCreated, w.Code)
	c := decodeCounter(t, w)
	assert.Equal(t, "gone", c.ID)
	assert.Equal(t, int64(7), c.Value)

	// без имени счетчик создается с ID вместо имени
	w = env.do(t, http.MethodPut, "/api/v1/counters/other", api.UpdateCounterRequest{Value: &value})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "other", decodeCounter(t, w).Name)
}

func TestCounterHandler_Update_UpsertPartialFields(t *testing.T) {
	goal := int64(5)
	zero := int64(0)

	tests := []struct {
		name  string
		check func(t *testing.T, c api.Counter)
		req   api.UpdateCounterRequest
	}{
		{
			name: "goal only",
			req:  api.UpdateCounterRequest{DailyGoal: &goal},
			check: func(t *testing.T, c api.Counter) {
				require.NotNil(t, c.DailyGoal)
				assert.Equal(t, int64(5), *c.DailyGoal)
			},
		},
		{
			name: "reset",
			req:  api.UpdateCounterRequest{Value: &zero, Users: map[string]int64{}},
			check: func(t *testing.T, c api.Counter) {
				assert.Zero(t, c.Value)
				assert.Empty(t, c.Users)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)

			w := env.do(t, http.MethodPut, "/api/v1/counters/missing-id", tt.req)
			require.Equal(t, http.StatusCreated, w.Code)
			c := decodeCounter(t, w)
			assert.Equal(t, "missing-id", c.ID)
			tt.check(t, c)

			w = env.do(t, http.MethodGet, "/api/v1/counters/missing-id", nil)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestCounterHandler_Delete(t *testing.T) {
	env := setupTestEnv(t)
	env.createCounter(t, api.CreateCounterRequest{ID: "c1", Name: "Pushups"})

	w := env.do(t, http.MethodDelete, "/api/v1/counters/c1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// повторное удаление не является ошибкой
	w = env.do(t, http.MethodDelete, "/api/v1/counters/c1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/counters/c1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCounterHandler_Increment(t *testing.T) {
	env := setupTestEnv(t)
	env.createCounter(t, api.CreateCounterRequest{ID: "c1", Name: "Pushups"})

	// delta по умолчанию 1
	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/counters/c1/increment", api.IncrementRequest{ActingUser: "alice", DayKey: testDay})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := env.do(t, http.MethodPost, "/api/v1/counters/c1/increment", api.IncrementRequest{ActingUser: "bob", DayKey: testDay, Delta: -1})
	require.Equal(t, http.StatusOK, w.Code)
	c := decodeCounter(t, w)

	assert.Equal(t, int64(2), c.Value)
	assert.Equal(t, int64(3), c.Users["alice"])
	assert.NotContains(t, c.Users, "bob")
	assert.Equal(t, int64(3), c.DailyCount)
	assert.Equal(t, int64(3), c.History[testDay].Total)
	assert.Equal(t, "Monday", c.History[testDay].DayOfWeek)
}

func TestCounterHandler_Increment_Errors(t *testing.T) {
	env := setupTestEnv(t)
	env.createCounter(t, api.CreateCounterRequest{ID: "c1", Name: "Pushups"})

	tests := []struct {
		body       any
		name       string
		path       string
		wantStatus int
	}{
		{name: "unknown counter", path: "/api/v1/counters/nope/increment",
			body: api.IncrementRequest{ActingUser: "alice", DayKey: testDay}, wantStatus: http.StatusNotFound},
		{name: "missing user", path: "/api/v1/counters/c1/increment",
			body: api.IncrementRequest{DayKey: testDay}, wantStatus: http.StatusBadRequest},
		{name: "bad day key", path: "/api/v1/counters/c1/increment",
			body: api.IncrementRequest{ActingUser: "alice", DayKey: "15.01.2024"}, wantStatus: http.StatusBadRequest},
		{name: "delta too large", path: "/api/v1/counters/c1/increment",
			body: api.IncrementRequest{ActingUser: "alice", DayKey: testDay, Delta: 1_000_000}, wantStatus: http.StatusBadRequest},
		{name: "malformed json", path: "/api/v1/counters/c1/increment", body: "[", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestCounterHandler_IncrementBatch(t *testing.T) {
	env := setupTestEnv(t)
	env.createCounter(t, api.CreateCounterRequest{ID: "c1", Name: "Pushups"})

	req := api.BatchIncrementRequest{Increments: []api.BatchIncrement{
		{ActingUser: "alice", DayKey: testDay, Count: 3},
		{ActingUser: "alice", DayKey: "2024-01-14", Count: 2},
		{ActingUser: "bob", DayKey: testDay}, // count по умолчанию 1
	}}

	w := env.do(t, http.MethodPost, "/api/v1/counters/c1/increment-batch", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := decodeCounter(t, w)

	assert.Equal(t, int64(6), c.Value)
	assert.Equal(t, int64(5), c.Users["alice"])
	assert.Equal(t, int64(1), c.Users["bob"])
	assert.Equal(t, int64(4), c.DailyCount)
	assert.Equal(t, int64(2), c.History["2024-01-14"].Total)
	assert.Equal(t, "Sunday", c.History["2024-01-14"].DayOfWeek)
}

func TestCounterHandler_IncrementBatch_Errors(t *testing.T) {
	env := setupTestEnv(t)
	env.createCounter(t, api.CreateCounterRequest{ID: "c1", Name: "Pushups"})

	tooMany := make([]api.BatchIncrement, 501)
	for i := range tooMany {
		tooMany[i] = api.BatchIncrement{ActingUser: "alice", DayKey: testDay}
	}

	tests := []struct {
		body       any
		name       string
		wantStatus int
	}{
		{name: "empty", body: api.BatchIncrementRequest{}, wantStatus: http.StatusBadRequest},
		{name: "too many", body: api.BatchIncrementRequest{Increments: tooMany}, wantStatus: http.StatusBadRequest},
		{name: "negative count", body: api.BatchIncrementRequest{Increments: []api.BatchIncrement{
			{ActingUser: "alice", DayKey: testDay, Count: -2},
		}}, wantStatus: http.StatusBadRequest},
		{name: "invalid user", body: api.BatchIncrementRequest{Increments: []api.BatchIncrement{
			{ActingUser: "a/b", DayKey: testDay},
		}}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/counters/c1/increment-batch", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	// ничего не применилось
	w := env.do(t, http.MethodGet, "/api/v1/counters/c1", nil)
	assert.Equal(t, int64(0), decodeCounter(t, w).Value)
}

func TestCounterHandler_PublishesEvents(t *testing.T) {
	env := setupTestEnv(t)

	sub := broadcast.NewSubscriber(16)
	env.broadcaster.Subscribe(sub)

	env.createCounter(t, api.CreateCounterRequest{ID: "c1", Name: "Pushups"})
	env.do(t, http.MethodPost, "/api/v1/counters/c1/increment", api.IncrementRequest{ActingUser: "alice", DayKey: testDay, Delta: 2})
	env.do(t, http.MethodPost, "/api/v1/counters/c1/increment", api.IncrementRequest{ActingUser: "alice", DayKey: testDay, Delta: -1})
	name := "Renamed"
	env.do(t, http.MethodPut, "/api/v1/counters/c1", api.UpdateCounterRequest{Name: &name})
	env.do(t, http.MethodDelete, "/api/v1/counters/c1", nil)
	// удаление отсутствующего счетчика событие не публикует
	env.do(t, http.MethodDelete, "/api/v1/counters/c1", nil)
	// отклоненный запрос событие не публикует
	env.do(t, http.MethodPost, "/api/v1/counters/c1/increment", api.IncrementRequest{ActingUser: "alice", DayKey: testDay})

	var got []api.Event
	var seqs []uint64
	for len(sub.Messages()) > 0 {
		msg := <-sub.Messages()
		got = append(got, msg.Event)
		seqs = append(seqs, msg.Seq)
	}

	require.Len(t, got, 5)
	assert.IsType(t, api.CounterCreatedEvent{}, got[0])

	inc, ok := got[1].(api.CounterIncrementedEvent)
	require.True(t, ok)
	assert.Equal(t, "alice", inc.ActingUser)
	assert.Equal(t, int64(2), inc.Delta)
	assert.Equal(t, int64(2), inc.Counter.Value)

	dec, ok := got[2].(api.CounterDecrementedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(-1), dec.Delta)
	assert.Equal(t, int64(1), dec.Counter.Value)

	upd, ok := got[3].(api.CounterUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, "Renamed", upd.Counter.Name)

	assert.Equal(t, api.CounterDeletedEvent{ID: "c1"}, got[4])
	assert.IsIncreasing(t, seqs)
}

func TestRouter_UnknownRoute(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	w = env.do(t, http.MethodPatch, "/api/v1/counters", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	env := setupTestEnv(t)
	env.createCounter(t, api.CreateCounterRequest{ID: "c1", Name: "Pushups"})
	env.do(t, http.MethodPost, "/api/v1/counters/c1/increment", api.IncrementRequest{ActingUser: "alice", DayKey: testDay, Delta: 4})

	w := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "tallysync_increments_applied_total 4")
	assert.Contains(t, body, `tallysync_sync_events_published_total{type="counter_created"} 1`)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthHandler_Health(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var healthResp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&healthResp))
	assert.Equal(t, "ok", healthResp.Status)
	assert.Equal(t, "test", healthResp.Version)
}

func TestHealthHandler_Unavailable(t *testing.T) {
	handler := NewHealthHandler(setupTestLogger(), "dev", failingPinger{}, nil)

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var healthResp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&healthResp))
	assert.Equal(t, "unavailable", healthResp.Status)
}
