package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tallysync/internal/models"
)

func counter(id string, value int64) models.Counter {
	return models.Counter{ID: id, Value: value, Users: map[string]int64{}, History: map[string]models.DayRecord{}}
}

func ids(counters []models.Counter) []string {
	out := make([]string, 0, len(counters))
	for _, c := range counters {
		out = append(out, c.ID)
	}
	return out
}

func TestReconcile_NoLocalSnapshot(t *testing.T) {
	server := []models.Counter{counter("c1", 5)}

	got := Reconcile(server, nil, []models.PendingChange{{ID: "c1", Timestamp: 999}})

	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, int64(5), got[0].Value)

	// результат не разделяет память с входом
	got[0].Users["x"] = 1
	assert.Empty(t, server[0].Users)
}

func TestReconcile_Scenarios(t *testing.T) {
	local := func(lastServerSync int64) *models.Snapshot {
		c := counter("c1", 5)
		c.LastUpdated = 100
		return &models.Snapshot{Counters: []models.Counter{c}, LastServerSync: lastServerSync}
	}
	server := []models.Counter{counter("c1", 7)}
	pending := []models.PendingChange{{ID: "c1", Type: models.ChangeUpdate, Timestamp: 200}}

	tests := []struct {
		name      string
		local     *models.Snapshot
		pending   []models.PendingChange
		wantValue int64
	}{
		{name: "edit newer than last sync keeps local", local: local(150), pending: pending, wantValue: 5},
		{name: "edit already seen by server takes server", local: local(250), pending: pending, wantValue: 7},
		{name: "equal timestamp takes server", local: local(200), pending: pending, wantValue: 7},
		{name: "no pending takes server", local: local(150), pending: nil, wantValue: 7},
		{
			name:  "pending for another counter is ignored",
			local: local(150),
			pending: []models.PendingChange{
				{ID: "c2", Type: models.ChangeUpdate, Timestamp: 500},
			},
			wantValue: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(server, tt.local, tt.pending)
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantValue, got[0].Value)
		})
	}
}

func TestReconcile_LatestPendingWins(t *testing.T) {
	local := &models.Snapshot{Counters: []models.Counter{counter("c1", 5)}, LastServerSync: 150}
	server := []models.Counter{counter("c1", 7)}

	// порядок в очереди не важен, берется максимальный timestamp
	pending := []models.PendingChange{
		{ID: "c1", Timestamp: 300},
		{ID: "c1", Timestamp: 100},
	}

	got := Reconcile(server, local, pending)
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].Value)
}

func TestReconcile_OrderAndUniqueness(t *testing.T) {
	local := &models.Snapshot{
		Counters: []models.Counter{counter("local-only", 1), counter("shared", 2), counter("shared", 3)},
	}
	server := []models.Counter{counter("server-a", 10), counter("shared", 20), counter("server-b", 30), counter("server-a", 11)}

	got := Reconcile(server, local, nil)

	assert.Equal(t, []string{"local-only", "shared", "server-a", "server-b"}, ids(got))
	assert.Equal(t, int64(1), got[0].Value)
	assert.Equal(t, int64(20), got[1].Value)
	assert.Equal(t, int64(10), got[2].Value)
}

func TestReconcile_Deterministic(t *testing.T) {
	local := &models.Snapshot{
		Counters:       []models.Counter{counter("a", 1), counter("b", 2)},
		LastServerSync: 100,
	}
	server := []models.Counter{counter("b", 5), counter("c", 6)}
	pending := []models.PendingChange{{ID: "b", Timestamp: 101}}

	first := Reconcile(server, local, pending)
	second := Reconcile(server, local, pending)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), local.Counters[1].Value, "input must not be modified")
}

func TestReconcile_EmptyInputs(t *testing.T) {
	assert.Empty(t, Reconcile(nil, nil, nil))
	assert.NotNil(t, Reconcile(nil, nil, nil))

	got := Reconcile(nil, &models.Snapshot{Counters: []models.Counter{counter("a", 1)}}, nil)
	assert.Equal(t, []string{"a"}, ids(got))
}
