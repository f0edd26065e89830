// Package config загружает конфигурацию сервера из флагов и переменных окружения.
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

	"github.com/iudanet/tallysync/internal/server/storage/sqlite"
)

// Значения по умолчанию
const (
	DefaultAddr            = ":8080"
	DefaultDBPath          = "tallysync.db"
	DefaultLogLevel        = "info"
	DefaultRateLimit       = 600
	DefaultRateWindow      = time.Minute
	DefaultHeartbeat       = 25 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultStreamBuffer    = 256
	DefaultDBBusyTimeout   = sqlite.DefaultBusyTimeout
)

// Config конфигурация сервера
type Config struct {
	Addr            string
	DBPath          string
	DBBusyTimeout   time.Duration
	LogLevel        slog.Level
	RateLimit       int // запросов за RateWindow на IP, 0 отключает ограничение
	RateWindow      time.Duration
	Heartbeat       time.Duration
	ShutdownTimeout time.Duration
	StreamBuffer    int
	ShowVersion     bool
}

// Load разбирает аргументы командной строки (без имени программы).
// getenv обычно os.Getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	env := envSource{getenv: getenv}

	fs := flag.NewFlagSet("tallysync-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := &Config{}
	var logLevel string

	fs.StringVar(&cfg.Addr, "addr", env.str("TALLYSYNC_ADDR", DefaultAddr), "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", env.str("TALLYSYNC_DB", DefaultDBPath), "Path to SQLite database")
	fs.DurationVar(&cfg.DBBusyTimeout, "db-busy-timeout", env.duration("TALLYSYNC_DB_BUSY_TIMEOUT", DefaultDBBusyTimeout), "How long a write waits for a locked database")
	fs.StringVar(&logLevel, "log-level", env.str("TALLYSYNC_LOG_LEVEL", DefaultLogLevel), "Log level: debug, info, warn, error")
	fs.IntVar(&cfg.RateLimit, "rate-limit", env.int("TALLYSYNC_RATE_LIMIT", DefaultRateLimit), "Requests per window per client IP (0 disables)")
	fs.DurationVar(&cfg.RateWindow, "rate-window", env.duration("TALLYSYNC_RATE_WINDOW", DefaultRateWindow), "Rate limit window")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", env.duration("TALLYSYNC_HEARTBEAT", DefaultHeartbeat), "Ping interval on the sync stream (0 disables)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", env.duration("TALLYSYNC_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout), "Graceful shutdown timeout")
	fs.IntVar(&cfg.StreamBuffer, "stream-buffer", env.int("TALLYSYNC_STREAM_BUFFER", DefaultStreamBuffer), "Per-subscriber event queue size")
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr cannot be empty")
	}
	if c.DBPath == "" {
		return errors.New("db path cannot be empty")
	}
	if c.DBBusyTimeout < 0 {
		return errors.New("db busy timeout cannot be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit cannot be negative")
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		return errors.New("rate window must be positive")
	}
	if c.Heartbeat < 0 {
		return errors.New("heartbeat cannot be negative")
	}
	if c.StreamBuffer <= 0 {
		return errors.New("stream buffer must be positive")
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

// envSource читает значения по умолчанию из окружения и запоминает первую ошибку разбора
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
