package api

// DayRecord представляет вклад пользователей в счетчик за один календарный день
type DayRecord struct {
	Users     map[string]int64 `json:"users"`     // вклад каждого пользователя за день
	DayOfWeek string           `json:"dayOfWeek"` // человекочитаемый день недели ("Monday")
	Total     int64            `json:"total"`     // сумма Users
}

// Counter представляет общий счетчик в формате API
type Counter struct {
	Users       map[string]int64     `json:"users"`               // вклад пользователей за все время
	History     map[string]DayRecord `json:"history"`             // история по дням, ключ YYYY-MM-DD
	DailyGoal   *int64               `json:"dailyGoal,omitempty"` // дневная цель (опционально)
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Value       int64                `json:"value"`
	DailyCount  int64                `json:"dailyCount"`  // прогресс за сегодня, всегда равен history[today].total
	CreatedAt   int64                `json:"createdAt"`   // миллисекунды с начала эпохи
	LastUpdated int64                `json:"lastUpdated"` // миллисекунды с начала эпохи
}

// CreateCounterRequest представляет запрос на создание счетчика.
// ID можно задать на клиенте (офлайн создание), иначе его назначит сервер.
type CreateCounterRequest struct {
	Users     map[string]int64     `json:"users,omitempty"`
	History   map[string]DayRecord `json:"history,omitempty"`
	DailyGoal *int64               `json:"dailyGoal,omitempty"`
	ID        string               `json:"id,omitempty"`
	Name      string               `json:"name"`
	Value     int64                `json:"value"`
}

// UpdateCounterRequest представляет частичное обновление счетчика.
// Nil поля не изменяются.
type UpdateCounterRequest struct {
	Users          map[string]int64     `json:"users"`   // null - без изменений, {} - очистить
	History        map[string]DayRecord `json:"history"` // null - без изменений, {} - очистить
	Name           *string              `json:"name,omitempty"`
	Value          *int64               `json:"value,omitempty"`
	DailyGoal      *int64               `json:"dailyGoal,omitempty"`
	ClearDailyGoal bool                 `json:"clearDailyGoal,omitempty"`
}

// IncrementRequest представляет одиночное изменение значения счетчика.
// Delta по умолчанию 1, отрицательное значение означает декремент.
type IncrementRequest struct {
	ActingUser string `json:"actingUser"`
	DayKey     string `json:"dayKey"`
	Delta      int64  `json:"delta,omitempty"`
}

// BatchIncrement группа инкрементов одного пользователя за один день
type BatchIncrement struct {
	ActingUser string `json:"actingUser"`
	DayKey     string `json:"dayKey"`
	Count      int64  `json:"count,omitempty"` // 0 трактуется как 1
}

// BatchIncrementRequest представляет пакет инкрементов для одного счетчика
type BatchIncrementRequest struct {
	Increments []BatchIncrement `json:"increments"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
