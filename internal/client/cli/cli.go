// Package cli реализует команды клиента tallysync.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/iudanet/tallysync/internal/client/data"
	"github.com/iudanet/tallysync/internal/client/iocli"
	"github.com/iudanet/tallysync/internal/client/local"
	"github.com/iudanet/tallysync/internal/client/storage"
	"github.com/iudanet/tallysync/internal/client/sync"
	"github.com/iudanet/tallysync/internal/models"
)

// ErrUnknownCommand неизвестная команда
var ErrUnknownCommand = errors.New("unknown command")

// Cli выполняет команды пользователя
type Cli struct {
	io          iocli.IO
	dataService *data.Service
	syncDriver  *sync.Driver
	store       *local.Store
	metadata    storage.MetadataStorage
	serverURL   string
	user        string // пользователь из флага или окружения
	offline     bool
}

// Option configures Cli
type Option func(*Cli)

// WithUser задает пользователя, от имени которого выполняются изменения
func WithUser(user string) Option {
	return func(c *Cli) {
		c.user = user
	}
}

// WithOffline отключает синхронизацию перед командами
func WithOffline(offline bool) Option {
	return func(c *Cli) {
		c.offline = offline
	}
}

// WithServerURL задает адрес сервера для вывода статуса
func WithServerURL(url string) Option {
	return func(c *Cli) {
		c.serverURL = url
	}
}

func New(io iocli.IO, dataService *data.Service, syncDriver *sync.Driver, store *local.Store, metadata storage.MetadataStorage, opts ...Option) *Cli {
	c := &Cli{
		io:          io,
		dataService: dataService,
		syncDriver:  syncDriver,
		store:       store,
		metadata:    metadata,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run выполняет команду
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	handler, ok := c.commands()[command]
	if !ok {
		PrintUsage(c.io)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}

	if handler.fresh {
		c.refresh(ctx)
	}
	return handler.run(ctx, args)
}

type command struct {
	run   func(ctx context.Context, args []string) error
	fresh bool // перед выполнением отправить очередь и получить снимок сервера
}

func (c *Cli) commands() map[string]command {
	return map[string]command{
		"list":   {run: c.runList, fresh: true},
		"show":   {run: c.runShow, fresh: true},
		"create": {run: c.runCreate, fresh: true},
		"rename": {run: c.runRename, fresh: true},
		"goal":   {run: c.runGoal, fresh: true},
		"inc":    {run: c.runIncrement, fresh: true},
		"dec":    {run: c.runDecrement, fresh: true},
		"reset":  {run: c.runReset, fresh: true},
		"delete": {run: c.runDelete, fresh: true},
		"sync":   {run: c.runSync},
		"status": {run: c.runStatus},
		"watch":  {run: c.runWatch},
		"user":   {run: c.runUser},
		"help":   {run: c.runHelp},
	}
}

// refresh синхронизирует перед командой. Без связи команда работает с локальным снимком.
func (c *Cli) refresh(ctx context.Context) {
	if c.offline {
		return
	}
	if _, err := c.syncDriver.Sync(ctx); err != nil && !errors.Is(err, sync.ErrOffline) {
		c.io.Printf("Warning: sync failed: %v\n", err)
	}
	if c.syncDriver.Status() != sync.StatusSynced {
		c.io.Println("Working offline: showing local data.")
	}
}

// actingUser возвращает пользователя из флага, иначе сохраненного
func (c *Cli) actingUser(ctx context.Context) (string, error) {
	if c.user != "" {
		return c.user, nil
	}
	user, err := c.metadata.GetActingUser(ctx)
	if err != nil {
		return "", err
	}
	if user == "" {
		return "", fmt.Errorf("acting user is not set. Use 'tallysync user <name>' or --user")
	}
	return user, nil
}

// resolve находит счетчик по первому аргументу
func (c *Cli) resolve(ctx context.Context, args []string, usage string) (models.Counter, error) {
	if len(args) == 0 {
		return models.Counter{}, fmt.Errorf("missing counter. Usage: tallysync %s", usage)
	}
	return c.dataService.Resolve(ctx, args[0])
}

func (c *Cli) render(tmpl *template.Template, data any) error {
	if err := tmpl.Execute(c.io, data); err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	return nil
}

// parseGoal разбирает дневную цель. "none" и "-" убирают цель.
func parseGoal(s string) (*int64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "-", "off":
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid goal %q: must be a number or 'none'", s)
	}
	return &n, nil
}

func (c *Cli) runHelp(ctx context.Context, args []string) error {
	PrintUsage(c.io)
	return nil
}

// PrintUsage выводит справку
func PrintUsage(out iocli.IO) {
	_ = usageTmpl.Execute(out, nil)
}
