package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iudanet/tallysync/internal/models"
)

type counterView struct {
	ID          string
	Name        string
	CreatedAt   string
	LastUpdated string
	Users       []userView
	Days        []dayView
	Value       int64
	Today       int64
	Goal        int64
	PendingTaps int
	HasGoal     bool
	GoalMet     bool
}

type userView struct {
	Name  string
	Count int64
}

type dayView struct {
	Key     string
	Weekday string
	Total   int64
}

func (c *Cli) view(counter models.Counter) counterView {
	v := counterView{
		ID:          counter.ID,
		Name:        counter.Name,
		Value:       counter.Value,
		Today:       counter.DailyCount,
		CreatedAt:   formatMillis(counter.CreatedAt),
		LastUpdated: formatMillis(counter.LastUpdated),
		PendingTaps: c.dataService.PendingTaps(counter.ID),
	}
	if counter.DailyGoal != nil {
		v.HasGoal = true
		v.Goal = *counter.DailyGoal
		v.GoalMet = v.Goal > 0 && v.Today >= v.Goal
	}

	for name, n := range counter.Users {
		v.Users = append(v.Users, userView{Name: name, Count: n})
	}
	sort.Slice(v.Users, func(i, j int) bool {
		if v.Users[i].Count != v.Users[j].Count {
			return v.Users[i].Count > v.Users[j].Count
		}
		return v.Users[i].Name < v.Users[j].Name
	})

	for key, rec := range counter.History {
		v.Days = append(v.Days, dayView{Key: key, Weekday: rec.DayOfWeek, Total: rec.Total})
	}
	// новые дни сверху
	sort.Slice(v.Days, func(i, j int) bool { return v.Days[i].Key > v.Days[j].Key })

	return v
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

func (c *Cli) runList(ctx context.Context, args []string) error {
	counters := c.dataService.List(ctx)
	sort.SliceStable(counters, func(i, j int) bool {
		return strings.ToLower(counters[i].Name) < strings.ToLower(counters[j].Name)
	})

	views := make([]counterView, 0, len(counters))
	for _, counter := range counters {
		views = append(views, c.view(counter))
	}
	return c.render(counterListTmpl, views)
}

func (c *Cli) runShow(ctx context.Context, args []string) error {
	counter, err := c.resolve(ctx, args, "show <counter>")
	if err != nil {
		return err
	}
	return c.render(counterDetailsTmpl, c.view(counter))
}

func (c *Cli) runCreate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing counter name. Usage: tallysync create <name> [goal]")
	}

	var goal *int64
	if len(args) > 1 {
		g, err := parseGoal(args[1])
		if err != nil {
			return err
		}
		goal = g
	}

	counter, err := c.dataService.Create(ctx, args[0], goal)
	if err != nil {
		return fmt.Errorf("failed to create counter: %w", err)
	}

	c.io.Printf("✓ Counter %q created (ID: %s)\n", counter.Name, counter.ID)
	return nil
}

func (c *Cli) runRename(ctx context.Context, args []string) error {
	counter, err := c.resolve(ctx, args, "rename <counter> <name>")
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("missing new name. Usage: tallysync rename <counter> <name>")
	}

	updated, err := c.dataService.Rename(ctx, counter.ID, strings.Join(args[1:], " "))
	if err != nil {
		return fmt.Errorf("failed to rename counter: %w", err)
	}

	c.io.Printf("✓ Counter renamed: %q -> %q\n", counter.Name, updated.Name)
	return nil
}

func (c *Cli) runGoal(ctx context.Context, args []string) error {
	counter, err := c.resolve(ctx, args, "goal <counter> <n|none>")
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("missing goal. Usage: tallysync goal <counter> <n|none>")
	}

	goal, err := parseGoal(args[1])
	if err != nil {
		return err
	}

	if _, err := c.dataService.SetGoal(ctx, counter.ID, goal); err != nil {
		return fmt.Errorf("failed to set goal: %w", err)
	}

	if goal == nil {
		c.io.Printf("✓ Daily goal cleared for %q\n", counter.Name)
		return nil
	}
	c.io.Printf("✓ Daily goal for %q set to %d\n", counter.Name, *goal)
	return nil
}

func (c *Cli) runReset(ctx context.Context, args []string) error {
	counter, err := c.resolve(ctx, args, "reset <counter>")
	if err != nil {
		return err
	}

	if _, err := c.dataService.Reset(ctx, counter.ID); err != nil {
		return fmt.Errorf("failed to reset counter: %w", err)
	}

	c.io.Printf("✓ Counter %q reset\n", counter.Name)
	return nil
}

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	counter, err := c.resolve(ctx, args, "delete <counter> [-y]")
	if err != nil {
		return err
	}

	confirmed := false
	for _, a := range args[1:] {
		if a == "-y" || a == "--yes" {
			confirmed = true
		}
	}
	if !confirmed {
		answer, err := c.io.ReadInput(fmt.Sprintf("Delete counter %q with value %d? [y/N]: ", counter.Name, counter.Value))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			c.io.Println("Canceled.")
			return nil
		}
	}

	if err := c.dataService.Delete(ctx, counter.ID); err != nil {
		return fmt.Errorf("failed to delete counter: %w", err)
	}

	c.io.Printf("✓ Counter %q deleted\n", counter.Name)
	return nil
}
