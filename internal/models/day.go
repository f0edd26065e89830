package models

import (
	"fmt"
	"time"
)

// DayKeyLayout формат ключа календарного дня в history
const DayKeyLayout = "2006-01-02"

// DayKey возвращает ключ календарного дня для момента t в его часовом поясе
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// ParseDayKey разбирает ключ дня вида YYYY-MM-DD
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.Parse(DayKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return t, nil
}

// WeekdayLabel возвращает название дня недели для ключа дня.
// Для некорректного ключа возвращается пустая строка.
func WeekdayLabel(key string) string {
	t, err := ParseDayKey(key)
	if err != nil {
		return ""
	}
	return t.Weekday().String()
}

// UnixMilli возвращает время в миллисекундах с начала эпохи
func UnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}
