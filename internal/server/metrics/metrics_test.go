package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/iudanet/tallysync/pkg/api"
)

func TestMetrics_Subscribers(t *testing.T) {
	m := New()

	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()
	m.SubscriberDropped()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.subscribers))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.subscribersDropped))
}

func TestMetrics_EventsAndIncrements(t *testing.T) {
	m := New()

	m.EventPublished(api.EventCounterIncremented)
	m.EventPublished(api.EventCounterIncremented)
	m.EventPublished(api.EventInitial)
	m.IncrementsApplied(7)
	m.IncrementsApplied(0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.eventsPublished.WithLabelValues("counter_incremented")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.incrementsApplied))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tallysync_http_requests_total")
}
