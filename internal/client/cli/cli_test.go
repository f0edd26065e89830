package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tallysync/internal/client/aggregator"
	"github.com/iudanet/tallysync/internal/client/api"
	"github.com/iudanet/tallysync/internal/client/connectivity"
	"github.com/iudanet/tallysync/internal/client/data"
	"github.com/iudanet/tallysync/internal/client/iocli"
	"github.com/iudanet/tallysync/internal/client/local"
	"github.com/iudanet/tallysync/internal/client/storage"
	"github.com/iudanet/tallysync/internal/client/storage/boltdb"
	"github.com/iudanet/tallysync/internal/client/sync"
	"github.com/iudanet/tallysync/internal/clock"
	"github.com/iudanet/tallysync/internal/models"
	pkgapi "github.com/iudanet/tallysync/pkg/api"
)

const testDay = "2024-01-15"

var testNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	cli   *Cli
	out   *bytes.Buffer
	store *local.Store
	agg   *aggregator.Aggregator
	db    *boltdb.Storage
}

// newTestEnv собирает CLI поверх настоящего bolt хранилища. online=false
// включает режим --offline.
func newTestEnv(t *testing.T, mock *api.CounterAPIMock, online bool, input string, opts ...Option) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := local.New(db, db, logger, local.WithClock(clock.NewManual(testNow)))
	conn := connectivity.New(logger, online)
	agg := aggregator.New(mock, store, conn, logger)
	service := data.NewService(mock, store, agg, conn, logger)
	driver := sync.NewDriver(mock, store, conn, logger)

	out := &bytes.Buffer{}
	opts = append([]Option{WithOffline(!online), WithServerURL("http://test")}, opts...)
	c := New(iocli.New(strings.NewReader(input), out), service, driver, store, db, opts...)

	return &testEnv{cli: c, out: out, store: store, agg: agg, db: db}
}

func (e *testEnv) seed(t *testing.T, counters ...models.Counter) {
	t.Helper()
	for _, c := range counters {
		c.Normalize(testDay)
		require.NoError(t, e.store.UpsertCounter(context.Background(), c))
	}
}

func TestCli_UnknownCommand(t *testing.T) {
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "")

	err := env.cli.Run(context.Background(), "frobnicate", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, env.out.String(), "Usage:")
}

func TestCli_ListEmpty(t *testing.T) {
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "")

	require.NoError(t, env.cli.Run(context.Background(), "list", nil))
	assert.Contains(t, env.out.String(), "No counters found.")
}

func TestCli_CreateAndListOffline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "")

	require.NoError(t, env.cli.Run(ctx, "create", []string{"Pushups", "50"}))
	assert.Contains(t, env.out.String(), `Counter "Pushups" created`)

	env.out.Reset()
	require.NoError(t, env.cli.Run(ctx, "list", nil))

	out := env.out.String()
	assert.Contains(t, out, "Found 1 counter(s):")
	assert.Contains(t, out, "- Pushups: 0")
	assert.Contains(t, out, "Today: 0 / 50")

	changes, err := env.store.ReadPendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, models.ChangeCreate, changes[0].Type)
}

func TestCli_CreateValidation(t *testing.T) {
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "")

	require.Error(t, env.cli.Run(context.Background(), "create", nil))
	require.Error(t, env.cli.Run(context.Background(), "create", []string{"Pushups", "many"}))
}

func TestCli_Increment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "", WithUser("alice"))
	env.seed(t, models.Counter{ID: "c1", Name: "Pushups"})

	require.NoError(t, env.cli.Run(ctx, "inc", []string{"pushups", "3"}))
	assert.Equal(t, 3, env.agg.Pending("c1"))
	assert.Contains(t, env.out.String(), `alice +3 on "Pushups"`)

	env.out.Reset()
	require.NoError(t, env.cli.Run(ctx, "list", nil))
	assert.Contains(t, env.out.String(), "Unsent taps: 3")
}

func TestCli_IncrementErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		opts    []Option
		wantErr string
	}{
		{name: "missing counter", args: nil, opts: []Option{WithUser("alice")}, wantErr: "missing counter"},
		{name: "unknown counter", args: []string{"nope"}, opts: []Option{WithUser("alice")}, wantErr: "counter not found"},
		{name: "bad times", args: []string{"c1", "x"}, opts: []Option{WithUser("alice")}, wantErr: "invalid times"},
		{name: "zero times", args: []string{"c1", "0"}, opts: []Option{WithUser("alice")}, wantErr: "count must be positive"},
		{name: "no user", args: []string{"c1"}, wantErr: "acting user is not set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &api.CounterAPIMock{}, false, "", tt.opts...)
			env.seed(t, models.Counter{ID: "c1", Name: "Pushups"})

			err := env.cli.Run(context.Background(), "inc", tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, 0, env.agg.Pending(""))
		})
	}
}

func TestCli_IncrementSavedUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "")
	env.seed(t, models.Counter{ID: "c1", Name: "Pushups"})

	require.NoError(t, env.cli.Run(ctx, "user", []string{"Bob", "Smith"}))
	user, err := env.db.GetActingUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bob Smith", user)

	require.NoError(t, env.cli.Run(ctx, "inc", []string{"c1"}))
	assert.Contains(t, env.out.String(), `Bob Smith +1 on "Pushups"`)
}

func TestCli_Decrement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "", WithUser("alice"))
	c := models.Counter{ID: "c1", Name: "Pushups"}
	c.ApplyIncrement("alice", testDay, 2, testDay, testNow.UnixMilli())
	env.seed(t, c)

	require.NoError(t, env.cli.Run(ctx, "dec", []string{"Pushups"}))
	assert.Contains(t, env.out.String(), "value 1")

	stored, ok := env.store.Counter(ctx, "c1")
	require.True(t, ok)
	assert.Equal(t, int64(1), stored.Value)
}

func TestCli_Show(t *testing.T) {
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "")
	goal := int64(10)
	c := models.Counter{ID: "c1", Name: "Pushups", DailyGoal: &goal}
	c.ApplyIncrement("alice", "2024-01-14", 5, testDay, testNow.UnixMilli())
	c.ApplyIncrement("bob", testDay, 2, testDay, testNow.UnixMilli())
	c.ApplyIncrement("alice", testDay, 1, testDay, testNow.UnixMilli())
	env.seed(t, c)

	require.NoError(t, env.cli.Run(context.Background(), "show", []string{"c1"}))

	out := env.out.String()
	assert.Contains(t, out, "Value:   8")
	assert.Contains(t, out, "Today:   3 / 10")
	// пользователи по убыванию вклада, дни от новых к старым
	assert.Less(t, strings.Index(out, "alice"), strings.Index(out, "bob"))
	assert.Less(t, strings.Index(out, "2024-01-15"), strings.Index(out, "2024-01-14"))
	assert.Contains(t, out, "Sunday")
}

func TestCli_Goal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "")
	goal := int64(10)
	env.seed(t, models.Counter{ID: "c1", Name: "Pushups", DailyGoal: &goal})

	require.NoError(t, env.cli.Run(ctx, "goal", []string{"c1", "none"}))
	assert.Contains(t, env.out.String(), "Daily goal cleared")

	stored, ok := env.store.Counter(ctx, "c1")
	require.True(t, ok)
	assert.Nil(t, stored.DailyGoal)

	require.NoError(t, env.cli.Run(ctx, "goal", []string{"c1", "25"}))
	stored, _ = env.store.Counter(ctx, "c1")
	require.NotNil(t, stored.DailyGoal)
	assert.Equal(t, int64(25), *stored.DailyGoal)

	require.Error(t, env.cli.Run(ctx, "goal", []string{"c1"}))
}

func TestCli_RenameAndReset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "")
	c := models.Counter{ID: "c1", Name: "Pushups"}
	c.ApplyIncrement("alice", testDay, 4, testDay, testNow.UnixMilli())
	env.seed(t, c)

	require.NoError(t, env.cli.Run(ctx, "rename", []string{"c1", "Morning", "pushups"}))
	require.NoError(t, env.cli.Run(ctx, "reset", []string{"Morning pushups"}))

	stored, ok := env.store.Counter(ctx, "c1")
	require.True(t, ok)
	assert.Equal(t, "Morning pushups", stored.Name)
	assert.Equal(t, int64(0), stored.Value)
	assert.Equal(t, int64(0), stored.DailyCount)
}

func TestCli_Delete(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		args    []string
		deleted bool
	}{
		{name: "declined", input: "n\n", args: []string{"c1"}, deleted: false},
		{name: "confirmed", input: "yes\n", args: []string{"c1"}, deleted: true},
		{name: "flag", args: []string{"c1", "-y"}, deleted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t, &api.CounterAPIMock{}, false, tt.input)
			env.seed(t, models.Counter{ID: "c1", Name: "Pushups"})

			require.NoError(t, env.cli.Run(ctx, "delete", tt.args))

			_, ok := env.store.Counter(ctx, "c1")
			assert.Equal(t, !tt.deleted, ok)
		})
	}
}

func TestCli_Status(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "", WithUser("alice"))
	env.seed(t, models.Counter{ID: "c1", Name: "Pushups", Value: 3})
	require.NoError(t, env.cli.Run(ctx, "dec", []string{"c1"}))

	env.out.Reset()
	require.NoError(t, env.cli.Run(ctx, "status", nil))

	out := env.out.String()
	assert.Contains(t, out, "Server:           http://test")
	assert.Contains(t, out, "Acting user:      alice")
	assert.Contains(t, out, "Counters:         1")
	assert.Contains(t, out, "Queued changes:   1")
	assert.Contains(t, out, "increment c1 -1")
	assert.Contains(t, out, "Last server sync: never")
}

func TestCli_SyncOnline(t *testing.T) {
	ctx := context.Background()
	mock := &api.CounterAPIMock{
		ListCountersFunc: func(ctx context.Context) ([]pkgapi.Counter, error) {
			return []pkgapi.Counter{{ID: "s1", Name: "Squats", Value: 12}}, nil
		},
	}
	env := newTestEnv(t, mock, true, "")

	require.NoError(t, env.cli.Run(ctx, "sync", nil))
	out := env.out.String()
	assert.Contains(t, out, "Counters:           1")
	assert.Contains(t, out, "Status:             synced")

	_, ok := env.store.Counter(ctx, "s1")
	assert.True(t, ok)
}

func TestCli_ListRefreshesFromServer(t *testing.T) {
	ctx := context.Background()
	mock := &api.CounterAPIMock{
		ListCountersFunc: func(ctx context.Context) ([]pkgapi.Counter, error) {
			return []pkgapi.Counter{{ID: "s1", Name: "Squats", Value: 12}}, nil
		},
	}
	env := newTestEnv(t, mock, true, "")

	require.NoError(t, env.cli.Run(ctx, "list", nil))
	assert.Len(t, mock.ListCountersCalls(), 1)
	assert.Contains(t, env.out.String(), "- Squats: 12")
	assert.NotContains(t, env.out.String(), "Working offline")
}

func TestCli_ListServerUnreachable(t *testing.T) {
	ctx := context.Background()
	mock := &api.CounterAPIMock{
		ListCountersFunc: func(ctx context.Context) ([]pkgapi.Counter, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	env := newTestEnv(t, mock, true, "")
	env.seed(t, models.Counter{ID: "c1", Name: "Pushups", Value: 2})

	require.NoError(t, env.cli.Run(ctx, "list", nil))
	out := env.out.String()
	assert.Contains(t, out, "Working offline")
	assert.Contains(t, out, "- Pushups: 2")
}

func TestCli_OfflineModeRejectsSync(t *testing.T) {
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "")

	require.Error(t, env.cli.Run(context.Background(), "sync", nil))
	require.Error(t, env.cli.Run(context.Background(), "watch", nil))
}

func TestCli_UserWithMetadataMock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.CounterAPIMock{}, false, "")

	saved := ""
	meta := &storage.MetadataStorageMock{
		GetActingUserFunc: func(ctx context.Context) (string, error) {
			return saved, nil
		},
		SaveActingUserFunc: func(ctx context.Context, user string) error {
			saved = user
			return nil
		},
	}
	env.cli.metadata = meta

	err := env.cli.Run(ctx, "user", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acting user is not set")

	require.Error(t, env.cli.Run(ctx, "user", []string{"bad/name"}))
	assert.Empty(t, meta.SaveActingUserCalls())

	require.NoError(t, env.cli.Run(ctx, "user", []string{"carol"}))
	require.Len(t, meta.SaveActingUserCalls(), 1)
	assert.Equal(t, "carol", meta.SaveActingUserCalls()[0].User)

	env.out.Reset()
	require.NoError(t, env.cli.Run(ctx, "user", nil))
	assert.Contains(t, env.out.String(), "Acting user: carol")
}

func TestEventPrinter(t *testing.T) {
	var lines []string
	mockIO := &iocli.IOMock{
		PrintfFunc: func(format string, a ...any) {
			lines = append(lines, format)
		},
	}

	printEvent := EventPrinter(mockIO)
	printEvent(pkgapi.Message{Event: pkgapi.InitialEvent{Counters: []pkgapi.Counter{{ID: "c1"}}}})
	printEvent(pkgapi.Message{Event: pkgapi.CounterIncrementedEvent{
		ActingUser: "alice",
		Delta:      3,
		Counter:    pkgapi.Counter{ID: "c1", Name: "Pushups", Value: 3},
	}})
	printEvent(pkgapi.Message{Event: pkgapi.PingEvent{}})

	calls := mockIO.PrintfCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, []any{1}, calls[0].A)
	assert.Equal(t, []any{"alice", int64(3), "Pushups", int64(3)}, calls[1].A)
	assert.Len(t, lines, 2)
}

func TestParseGoal(t *testing.T) {
	goal, err := parseGoal("15")
	require.NoError(t, err)
	require.NotNil(t, goal)
	assert.Equal(t, int64(15), *goal)

	goal, err = parseGoal("None")
	require.NoError(t, err)
	assert.Nil(t, goal)

	_, err = parseGoal("lots")
	assert.Error(t, err)
}

func TestPrintUsage(t *testing.T) {
	var out bytes.Buffer
	PrintUsage(iocli.New(strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "Tallysync Client")
	assert.Contains(t, out.String(), "inc <counter> [times]")
}
