// Package config загружает конфигурацию клиента из флагов и переменных окружения.
// Приоритет: флаг > переменная окружения TALLYSYNC_* > значение по умолчанию.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/tallysync/internal/client/aggregator"
	"github.com/iudanet/tallysync/internal/client/local"
	"github.com/iudanet/tallysync/internal/client/storage/boltdb"
	"github.com/iudanet/tallysync/internal/validation"
)

// Значения по умолчанию
const (
	DefaultServerURL    = "http://localhost:8080"
	DefaultDBPath       = "tallysync-client.db"
	DefaultLogLevel     = "warn"
	DefaultPollInterval = 30 * time.Second
	DefaultTimeout      = 10 * time.Second
)

// Config конфигурация клиента
type Config struct {
	ServerURL      string
	DBPath         string
	User           string // пусто - берется сохраненный пользователь
	Command        string
	Args           []string
	LogLevel       slog.Level
	FlushDelay     time.Duration
	SafetyInterval time.Duration
	PollInterval   time.Duration
	Timeout        time.Duration // таймаут одного HTTP запроса
	MaxBatch       int
	SnapshotLimit  int // байт, 0 отключает ограничение
	HistoryDays    int
	Offline        bool // работать только с локальными данными
	ShowVersion    bool
}

// Load разбирает аргументы командной строки (без имени программы).
// Первый позиционный аргумент - команда, остальные - ее аргументы.
func Load(args []string, getenv func(string) string) (*Config, error) {
	env := envSource{getenv: getenv}

	fs := flag.NewFlagSet("tallysync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := &Config{}
	var logLevel string

	fs.StringVar(&cfg.ServerURL, "server", env.str("TALLYSYNC_SERVER", DefaultServerURL), "Server URL")
	fs.StringVar(&cfg.DBPath, "db", env.str("TALLYSYNC_CLIENT_DB", DefaultDBPath), "Path to local database")
	fs.StringVar(&cfg.User, "user", env.str("TALLYSYNC_USER", ""), "Acting user name")
	fs.StringVar(&logLevel, "log-level", env.str("TALLYSYNC_LOG_LEVEL", DefaultLogLevel), "Log level: debug, info, warn, error")
	fs.DurationVar(&cfg.FlushDelay, "flush-delay", env.duration("TALLYSYNC_FLUSH_DELAY", aggregator.DefaultFlushDelay), "Quiet period before taps are sent")
	fs.DurationVar(&cfg.SafetyInterval, "safety-interval", env.duration("TALLYSYNC_SAFETY_INTERVAL", aggregator.DefaultSafetyInterval), "Periodic flush interval for pending taps")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", env.duration("TALLYSYNC_POLL_INTERVAL", DefaultPollInterval), "Sync interval while live updates are down (0 disables)")
	fs.DurationVar(&cfg.Timeout, "timeout", env.duration("TALLYSYNC_TIMEOUT", DefaultTimeout), "HTTP request timeout")
	fs.IntVar(&cfg.MaxBatch, "max-batch", env.int("TALLYSYNC_MAX_BATCH", aggregator.DefaultMaxBatch), "Max taps per counter in one flush (0 disables)")
	fs.IntVar(&cfg.SnapshotLimit, "snapshot-limit", env.int("TALLYSYNC_SNAPSHOT_LIMIT", boltdb.DefaultSnapshotLimit), "Local snapshot size limit in bytes (0 disables)")
	fs.IntVar(&cfg.HistoryDays, "history-days", env.int("TALLYSYNC_HISTORY_DAYS", local.DefaultHistoryDays), "Days of history kept per counter")
	fs.BoolVar(&cfg.Offline, "offline", env.bool("TALLYSYNC_OFFLINE"), "Do not contact the server, queue changes locally")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	if env.err != nil {
		return nil, env.err
	}

	level, err := ParseLogLevel(logLevel)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if rest := fs.Args(); len(rest) > 0 {
		cfg.Command = rest[0]
		cfg.Args = rest[1:]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server url cannot be empty")
	}
	if c.DBPath == "" {
		return errors.New("db path cannot be empty")
	}
	if c.User != "" {
		if err := validation.ValidateUserName(c.User); err != nil {
			return err
		}
	}
	if c.FlushDelay <= 0 {
		return errors.New("flush delay must be positive")
	}
	if c.SafetyInterval <= 0 {
		return errors.New("safety interval must be positive")
	}
	if c.PollInterval < 0 {
		return errors.New("poll interval cannot be negative")
	}
	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if c.MaxBatch < 0 {
		return errors.New("max batch cannot be negative")
	}
	if c.SnapshotLimit < 0 {
		return errors.New("snapshot limit cannot be negative")
	}
	if c.HistoryDays <= 0 {
		return errors.New("history days must be positive")
	}
	return nil
}

// ParseLogLevel разбирает уровень логирования slog
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

type envSource struct {
	getenv func(string) string
	err    error
}

func (e *envSource) str(key, def string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return def
}

func (e *envSource) int(key string, def int) int {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (e *envSource) bool(key string) bool {
	v := e.getenv(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return false
	}
	return b
}

func (e *envSource) duration(key string, def time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func (e *envSource) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
