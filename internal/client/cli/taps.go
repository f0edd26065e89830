package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/iudanet/tallysync/internal/validation"
)

func (c *Cli) runIncrement(ctx context.Context, args []string) error {
	counter, err := c.resolve(ctx, args, "inc <counter> [times]")
	if err != nil {
		return err
	}

	times := int64(1)
	if len(args) > 1 {
		times, err = strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid times %q: must be a number", args[1])
		}
	}
	if err := validation.ValidateCount(times); err != nil {
		return err
	}

	user, err := c.actingUser(ctx)
	if err != nil {
		return err
	}

	// каждое нажатие записывается отдельно, агрегатор отправит их одним пакетом
	for i := int64(0); i < times; i++ {
		if err := c.dataService.Increment(ctx, counter.ID, user); err != nil {
			return fmt.Errorf("failed to record tap: %w", err)
		}
	}

	c.io.Printf("✓ %s +%d on %q\n", user, times, counter.Name)
	return nil
}

func (c *Cli) runDecrement(ctx context.Context, args []string) error {
	counter, err := c.resolve(ctx, args, "dec <counter>")
	if err != nil {
		return err
	}

	user, err := c.actingUser(ctx)
	if err != nil {
		return err
	}

	updated, err := c.dataService.Decrement(ctx, counter.ID, user)
	if err != nil {
		return fmt.Errorf("failed to decrement counter: %w", err)
	}

	c.io.Printf("✓ %s -1 on %q, value %d\n", user, updated.Name, updated.Value)
	return nil
}
