package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/tallysync/internal/client/iocli"
	"github.com/iudanet/tallysync/internal/client/sync"
	"github.com/iudanet/tallysync/internal/models"
	"github.com/iudanet/tallysync/internal/validation"
	pkgapi "github.com/iudanet/tallysync/pkg/api"
)

type syncView struct {
	Status sync.Status
	sync.Result
}

func (c *Cli) runSync(ctx context.Context, args []string) error {
	if c.offline {
		return fmt.Errorf("sync is not available in offline mode")
	}

	result, err := c.syncDriver.Sync(ctx)
	if errors.Is(err, sync.ErrOffline) {
		return fmt.Errorf("server %s is unreachable, changes stay queued", c.serverURL)
	}
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}

	return c.render(syncResultTmpl, syncView{Result: *result, Status: c.syncDriver.Status()})
}

type statusView struct {
	Server         string
	User           string
	LastSync       string
	LastServerSync string
	Queued         []models.PendingChange
	Counters       int
	PendingChanges int
}

func (c *Cli) runStatus(ctx context.Context, args []string) error {
	v := statusView{
		Server:         c.serverURL,
		LastSync:       "never",
		LastServerSync: "never",
	}

	// пользователь не обязателен для статуса
	if user, err := c.actingUser(ctx); err == nil {
		v.User = user
	}

	if snap := c.store.Snapshot(ctx); snap != nil {
		v.Counters = len(snap.Counters)
		v.LastSync = formatMillis(snap.LastSync)
		v.LastServerSync = formatMillis(snap.LastServerSync)
	}

	changes, err := c.store.ReadPendingChanges(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queued changes: %w", err)
	}
	v.Queued = changes
	v.PendingChanges = len(changes)

	return c.render(statusTmpl, v)
}

func (c *Cli) runWatch(ctx context.Context, args []string) error {
	if c.offline {
		return fmt.Errorf("watch is not available in offline mode")
	}

	c.io.Println("Watching for live updates. Press Ctrl+C to stop.")
	c.syncDriver.Run(ctx)
	c.io.Println("Stopped.")
	return nil
}

// EventPrinter возвращает callback, печатающий события потока обновлений
func EventPrinter(out iocli.IO) func(pkgapi.Message) {
	return func(msg pkgapi.Message) {
		switch ev := msg.Event.(type) {
		case pkgapi.InitialEvent:
			out.Printf("Connected: %d counter(s)\n", len(ev.Counters))
		case pkgapi.CounterCreatedEvent:
			out.Printf("+ %s created\n", ev.Counter.Name)
		case pkgapi.CounterUpdatedEvent:
			out.Printf("~ %s: %d (today %d)\n", ev.Counter.Name, ev.Counter.Value, ev.Counter.DailyCount)
		case pkgapi.CounterDeletedEvent:
			out.Printf("- %s deleted\n", ev.ID)
		case pkgapi.CounterIncrementedEvent:
			out.Printf("%s %+d %s: %d\n", ev.ActingUser, ev.Delta, ev.Counter.Name, ev.Counter.Value)
		case pkgapi.CounterDecrementedEvent:
			out.Printf("%s %+d %s: %d\n", ev.ActingUser, ev.Delta, ev.Counter.Name, ev.Counter.Value)
		}
	}
}

func (c *Cli) runUser(ctx context.Context, args []string) error {
	if len(args) == 0 {
		user, err := c.actingUser(ctx)
		if err != nil {
			return err
		}
		c.io.Printf("Acting user: %s\n", user)
		return nil
	}

	user := strings.Join(args, " ")
	if err := validation.ValidateUserName(user); err != nil {
		return err
	}
	if err := c.metadata.SaveActingUser(ctx, user); err != nil {
		return fmt.Errorf("failed to save acting user: %w", err)
	}

	c.io.Printf("✓ Acting user set to %s\n", user)
	return nil
}
