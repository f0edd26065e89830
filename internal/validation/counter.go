package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/iudanet/tallysync/internal/models"
)

// UserNamePattern определяет допустимый формат имени пользователя
// Буквы любого алфавита, цифры, пробел, нижнее подчеркивание, точка и дефис
// Длина: 1-64 символа
var UserNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_ .\-]{1,64}$`)

const (
	// MaxCounterNameLen максимальная длина названия счетчика (в символах)
	MaxCounterNameLen = 100
	// MaxUserNameLen максимальная длина имени пользователя
	MaxUserNameLen = 64
	// MaxBatchSize максимальное количество элементов в пакете инкрементов
	MaxBatchSize = 500
	// MaxIncrementCount максимальное значение count/delta в одном запросе
	MaxIncrementCount = 10000
)

// ValidateCounterName проверяет название счетчика
func ValidateCounterName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("counter name cannot be empty")
	}

	if utf8.RuneCountInString(name) > MaxCounterNameLen {
		return fmt.Errorf("counter name must not exceed %d characters", MaxCounterNameLen)
	}

	return nil
}

// ValidateUserName проверяет имя пользователя, от имени которого идет изменение
func ValidateUserName(user string) error {
	if strings.TrimSpace(user) == "" {
		return fmt.Errorf("acting user cannot be empty")
	}

	if utf8.RuneCountInString(user) > MaxUserNameLen {
		return fmt.Errorf("acting user must not exceed %d characters", MaxUserNameLen)
	}

	if !UserNamePattern.MatchString(user) {
		return fmt.Errorf("acting user can only contain letters, numbers, spaces, '_', '.' and '-'")
	}

	return nil
}

// ValidateDayKey проверяет ключ дня формата YYYY-MM-DD
func ValidateDayKey(key string) error {
	if key == "" {
		return fmt.Errorf("day key cannot be empty")
	}

	if _, err := models.ParseDayKey(key); err != nil {
		return fmt.Errorf("day key must be in YYYY-MM-DD format")
	}

	return nil
}

// ValidateDailyGoal проверяет дневную цель (если задана)
func ValidateDailyGoal(goal *int64) error {
	if goal != nil && *goal < 0 {
		return fmt.Errorf("daily goal cannot be negative")
	}
	return nil
}

// ValidateDelta проверяет величину одиночного изменения
func ValidateDelta(delta int64) error {
	if delta == 0 {
		return fmt.Errorf("delta cannot be zero")
	}

	if delta > MaxIncrementCount || delta < -MaxIncrementCount {
		return fmt.Errorf("delta must be within ±%d", MaxIncrementCount)
	}

	return nil
}

// ValidateCount проверяет количество инкрементов в группе пакета
func ValidateCount(count int64) error {
	if count <= 0 {
		return fmt.Errorf("count must be positive")
	}

	if count > MaxIncrementCount {
		return fmt.Errorf("count must not exceed %d", MaxIncrementCount)
	}

	return nil
}
