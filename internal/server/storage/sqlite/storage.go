package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/tallysync/internal/clock"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DefaultBusyTimeout время ожидания блокировки записи
const DefaultBusyTimeout = 5 * time.Second

// Storage хранит счетчики в SQLite. Все изменения счетчика выполняются
// в одной транзакции, поэтому параллельные инкременты не теряются.
type Storage struct {
	db          *sql.DB
	clock       clock.Clock
	busyTimeout time.Duration
	version     int64
}

// Option configures Storage
type Option func(*Storage)

// WithClock задает источник времени для lastUpdated и определения текущего дня
func WithClock(c clock.Clock) Option {
	return func(s *Storage) {
		s.clock = c
	}
}

// WithBusyTimeout задает, сколько писатель ждет освобождения базы
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Storage) {
		s.busyTimeout = d
	}
}

// New открывает базу счетчиков и применяет миграции.
// ":memory:" подходит для тестов: пул ограничен одним соединением.
func New(ctx context.Context, dbPath string, opts ...Option) (*Storage, error) {
	s := &Storage{clock: clock.System(), busyTimeout: DefaultBusyTimeout}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// один писатель: read-modify-write счетчика не пересекается с другим
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if err := s.configure(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) configure(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", s.busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// migrate применяет миграции из embedded FS через goose provider
func (s *Storage) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	s.version, err = provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	return nil
}

// SchemaVersion возвращает версию схемы после миграций
func (s *Storage) SchemaVersion() int64 {
	return s.version
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping проверяет доступность базы данных (health check)
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
