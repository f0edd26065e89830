package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tallysync/pkg/api"
)

func streamServer(t *testing.T, msgs []api.Message, hold bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sync", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)

		enc := json.NewEncoder(w)
		for _, m := range msgs {
			require.NoError(t, enc.Encode(m))
		}
		w.(http.Flusher).Flush()

		if hold {
			<-r.Context().Done()
		}
	}))
}

func TestClient_Subscribe_ReadsUntilClosed(t *testing.T) {
	msgs := []api.Message{
		{Event: api.InitialEvent{Counters: []api.Counter{{ID: "c1"}}}, Seq: 1},
		{Event: api.PingEvent{}, Seq: 2},
		{Event: api.CounterDeletedEvent{ID: "c1"}, Seq: 3},
	}
	server := streamServer(t, msgs, false)
	defer server.Close()

	client := NewClient(server.URL)

	var got []api.Message
	err := client.Subscribe(context.Background(), func(m api.Message) error {
		got = append(got, m)
		return nil
	})

	assert.ErrorIs(t, err, ErrStreamClosed)
	require.Len(t, got, 3)
	assert.IsType(t, api.InitialEvent{}, got[0].Event)
	assert.Equal(t, api.CounterDeletedEvent{ID: "c1"}, got[2].Event)
	assert.Equal(t, uint64(3), got[2].Seq)
}

func TestClient_Subscribe_ContextCanceled(t *testing.T) {
	server := streamServer(t, []api.Message{{Event: api.InitialEvent{}, Seq: 1}}, true)
	defer server.Close()

	client := NewClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- client.Subscribe(ctx, func(m api.Message) error {
			cancel()
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

func TestClient_Subscribe_HandlerError(t *testing.T) {
	server := streamServer(t, []api.Message{{Event: api.InitialEvent{}, Seq: 1}}, true)
	defer server.Close()

	client := NewClient(server.URL)
	stop := errors.New("stop")

	err := client.Subscribe(context.Background(), func(m api.Message) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
}

func TestClient_Subscribe_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Subscribe(context.Background(), func(api.Message) error { return nil })

	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestClient_Subscribe_MalformedLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{\"type\":\"bogus\",\"seq\":1,\"timestamp\":0,\"data\":{}}\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Subscribe(context.Background(), func(api.Message) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode stream message")
}
