package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/tallysync/internal/models"
	"github.com/iudanet/tallysync/internal/server/storage"
)

var _ storage.CounterStorage = (*Storage)(nil)

const counterColumns = `id, name, value, daily_goal, users, history, created_at, last_updated`

// queryer общий интерфейс *sql.DB и *sql.Tx для чтения
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetCounter retrieves a counter by ID
// Returns ErrCounterNotFound if counter doesn't exist
func (s *Storage) GetCounter(ctx context.Context, id string) (*models.Counter, error) {
	counter, err := s.getCounter(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	counter.Normalize(s.today())
	return counter, nil
}

// ListCounters retrieves all counters ordered by creation time
func (s *Storage) ListCounters(ctx context.Context) ([]*models.Counter, error) {
	query := `SELECT ` + counterColumns + ` FROM counters ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query counters: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	today := s.today()
	counters := make([]*models.Counter, 0)
	for rows.Next() {
		counter, err := scanCounter(rows)
		if err != nil {
			return nil, err
		}
		counter.Normalize(today)
		counters = append(counters, counter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return counters, nil
}

// AddCounter creates a new counter
// Returns ErrCounterExists if counter with the same ID exists
func (s *Storage) AddCounter(ctx context.Context, counter *models.Counter) (*models.Counter, error) {
	c := counter.Clone()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	now := s.clock.Now().UnixMilli()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	c.LastUpdated = now
	c.Normalize(s.today())

	users, history, err := marshalMaps(c)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO counters (` + counterColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		c.ID,
		c.Name,
		c.Value,
		nullableGoal(c.DailyGoal),
		users,
		history,
		c.CreatedAt,
		c.LastUpdated,
	)
	if err != nil {
		// Проверяем на уникальность ID
		if isUniqueViolation(err) {
			return nil, storage.ErrCounterExists
		}
		return nil, fmt.Errorf("failed to insert counter: %w", err)
	}

	return c, nil
}

// UpdateCounter applies partial fields to an existing counter
// Returns ErrCounterNotFound if counter doesn't exist
func (s *Storage) UpdateCounter(ctx context.Context, id string, fields models.CounterFields) (*models.Counter, error) {
	return s.mutate(ctx, id, func(c *models.Counter, today string, now int64) {
		c.ApplyFields(fields, today, now)
	})
}

// ApplyIncrements applies grouped increments, each attributed to its own day key
// Returns ErrCounterNotFound if counter doesn't exist
func (s *Storage) ApplyIncrements(ctx context.Context, id string, groups []models.IncrementGroup) (*models.Counter, error) {
	return s.mutate(ctx, id, func(c *models.Counter, today string, now int64) {
		c.ApplyGroups(groups, today, now)
	})
}

// DeleteCounter removes a counter
// Returns false if counter didn't exist
func (s *Storage) DeleteCounter(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM counters WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete counter: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// mutate выполняет read-modify-write счетчика в одной транзакции
func (s *Storage) mutate(ctx context.Context, id string, apply func(c *models.Counter, today string, now int64)) (*models.Counter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	counter, err := s.getCounter(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	apply(counter, models.DayKey(now), now.UnixMilli())

	users, history, err := marshalMaps(counter)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE counters
		SET name = ?, value = ?, daily_goal = ?, users = ?, history = ?, last_updated = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, query,
		counter.Name,
		counter.Value,
		nullableGoal(counter.DailyGoal),
		users,
		history,
		counter.LastUpdated,
		counter.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to update counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return counter, nil
}

func (s *Storage) getCounter(ctx context.Context, q queryer, id string) (*models.Counter, error) {
	query := `SELECT ` + counterColumns + ` FROM counters WHERE id = ?`

	counter, err := scanCounter(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCounterNotFound
		}
		return nil, err
	}

	return counter, nil
}

func (s *Storage) today() string {
	return models.DayKey(s.clock.Now())
}

// scanner общий интерфейс *sql.Row и *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanCounter(row scanner) (*models.Counter, error) {
	counter := &models.Counter{}
	var goal sql.NullInt64
	var users, history string

	err := row.Scan(
		&counter.ID,
		&counter.Name,
		&counter.Value,
		&goal,
		&users,
		&history,
		&counter.CreatedAt,
		&counter.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan counter: %w", err)
	}

	if goal.Valid {
		g := goal.Int64
		counter.DailyGoal = &g
	}

	if err := json.Unmarshal([]byte(users), &counter.Users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal users of %s: %w", counter.ID, err)
	}
	if err := json.Unmarshal([]byte(history), &counter.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history of %s: %w", counter.ID, err)
	}

	return counter, nil
}

func marshalMaps(c *models.Counter) (string, string, error) {
	users, err := json.Marshal(c.Users)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal users: %w", err)
	}

	history, err := json.Marshal(c.History)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal history: %w", err)
	}

	return string(users), string(history), nil
}

func nullableGoal(goal *int64) sql.NullInt64 {
	if goal == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *goal, Valid: true}
}

// isUniqueViolation проверяет ошибку нарушения PRIMARY KEY/UNIQUE
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
