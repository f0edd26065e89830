package models

import (
	"sort"

	"github.com/iudanet/tallysync/pkg/api"
)

// DayRecord представляет вклад пользователей за один календарный день
type DayRecord struct {
	Users     map[string]int64 `json:"users"`
	DayOfWeek string           `json:"dayOfWeek"`
	Total     int64            `json:"total"`
}

// Counter представляет общий счетчик с атрибуцией по пользователям и дням.
//
// Инварианты: History[today].Total == sum(History[today].Users) и
// DailyCount == History[today].Total (или 0, если записи за сегодня нет).
// Нарушения исправляются методом Normalize при каждом чтении и записи.
type Counter struct {
	Users       map[string]int64     `json:"users"`
	History     map[string]DayRecord `json:"history"`
	DailyGoal   *int64               `json:"dailyGoal,omitempty"`
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Value       int64                `json:"value"`
	DailyCount  int64                `json:"dailyCount"`
	CreatedAt   int64                `json:"createdAt"`
	LastUpdated int64                `json:"lastUpdated"`
}

// CounterFields набор полей для создания или частичного обновления счетчика.
// Nil поля не изменяются; пустая, но не nil карта очищает соответствующее поле.
type CounterFields struct {
	Users          map[string]int64     `json:"users"`
	History        map[string]DayRecord `json:"history"`
	Name           *string              `json:"name,omitempty"`
	Value          *int64               `json:"value,omitempty"`
	DailyGoal      *int64               `json:"dailyGoal,omitempty"`
	ClearDailyGoal bool                 `json:"clearDailyGoal,omitempty"`
}

// IncrementGroup суммарное количество инкрементов одного пользователя за один день
type IncrementGroup struct {
	ActingUser string `json:"actingUser"`
	DayKey     string `json:"dayKey"`
	Count      int64  `json:"count"`
}

// Normalize восстанавливает инварианты счетчика относительно дня today.
// Пересчитывает total для каждого дня, заполняет пропущенные дни недели
// и выставляет DailyCount. Возвращает true, если что-то было исправлено.
func (c *Counter) Normalize(today string) bool {
	changed := false

	if c.Users == nil {
		c.Users = make(map[string]int64)
	}
	if c.History == nil {
		c.History = make(map[string]DayRecord)
	}

	for key, rec := range c.History {
		if rec.Users == nil {
			rec.Users = make(map[string]int64)
		}
		var sum int64
		for _, n := range rec.Users {
			sum += n
		}
		if rec.Total != sum {
			rec.Total = sum
			changed = true
		}
		if rec.DayOfWeek == "" {
			if label := WeekdayLabel(key); label != "" {
				rec.DayOfWeek = label
				changed = true
			}
		}
		c.History[key] = rec
	}

	var daily int64
	if rec, ok := c.History[today]; ok {
		daily = rec.Total
	}
	if c.DailyCount != daily {
		c.DailyCount = daily
		changed = true
	}

	return changed
}

// ApplyIncrement применяет изменение delta от имени user к дню dayKey.
// Значения не опускаются ниже нуля; нулевые вклады удаляются.
func (c *Counter) ApplyIncrement(user, dayKey string, delta int64, today string, now int64) {
	if c.Users == nil {
		c.Users = make(map[string]int64)
	}
	if c.History == nil {
		c.History = make(map[string]DayRecord)
	}

	c.Value = max(c.Value+delta, 0)
	addClamped(c.Users, user, delta)

	rec, ok := c.History[dayKey]
	if !ok {
		rec = DayRecord{Users: make(map[string]int64), DayOfWeek: WeekdayLabel(dayKey)}
	}
	if rec.Users == nil {
		rec.Users = make(map[string]int64)
	}
	addClamped(rec.Users, user, delta)
	c.History[dayKey] = rec

	c.LastUpdated = now
	c.Normalize(today)
}

// ApplyGroups применяет сгруппированные инкременты пакета
func (c *Counter) ApplyGroups(groups []IncrementGroup, today string, now int64) {
	for _, g := range groups {
		c.ApplyIncrement(g.ActingUser, g.DayKey, g.Count, today, now)
	}
}

// ApplyFields применяет частичное обновление полей
func (c *Counter) ApplyFields(f CounterFields, today string, now int64) {
	if f.Name != nil {
		c.Name = *f.Name
	}
	if f.Value != nil {
		c.Value = max(*f.Value, 0)
	}
	if f.ClearDailyGoal {
		c.DailyGoal = nil
	} else if f.DailyGoal != nil {
		goal := *f.DailyGoal
		c.DailyGoal = &goal
	}
	if f.Users != nil {
		c.Users = copyUsers(f.Users)
	}
	if f.History != nil {
		c.History = copyHistory(f.History)
	}

	c.LastUpdated = now
	c.Normalize(today)
}

// Reset обнуляет значение, вклад пользователей и прогресс за сегодня.
// История предыдущих дней сохраняется.
func (c *Counter) Reset(today string, now int64) {
	c.Value = 0
	c.Users = make(map[string]int64)
	if c.History != nil {
		delete(c.History, today)
	}
	c.LastUpdated = now
	c.Normalize(today)
}

// PruneHistory оставляет только keepDays самых свежих дней истории.
// Возвращает количество удаленных дней.
func (c *Counter) PruneHistory(keepDays int) int {
	if keepDays < 0 || len(c.History) <= keepDays {
		return 0
	}

	keys := make([]string, 0, len(c.History))
	for k := range c.History {
		keys = append(keys, k)
	}
	// YYYY-MM-DD сортируется лексикографически в хронологическом порядке
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	removed := 0
	for _, k := range keys[keepDays:] {
		delete(c.History, k)
		removed++
	}
	return removed
}

// Fields возвращает полный набор полей счетчика (payload для create)
func (c *Counter) Fields() CounterFields {
	name := c.Name
	value := c.Value
	f := CounterFields{
		Name:    &name,
		Value:   &value,
		Users:   copyUsers(c.Users),
		History: copyHistory(c.History),
	}
	if c.DailyGoal != nil {
		goal := *c.DailyGoal
		f.DailyGoal = &goal
	} else {
		f.ClearDailyGoal = true
	}
	return f
}

// Clone создает глубокую копию счетчика
func (c *Counter) Clone() *Counter {
	clone := *c
	clone.Users = copyUsers(c.Users)
	clone.History = copyHistory(c.History)
	if c.DailyGoal != nil {
		goal := *c.DailyGoal
		clone.DailyGoal = &goal
	}
	return &clone
}

// ToAPI конвертирует счетчик в формат API
func (c *Counter) ToAPI() api.Counter {
	out := api.Counter{
		ID:          c.ID,
		Name:        c.Name,
		Value:       c.Value,
		DailyCount:  c.DailyCount,
		CreatedAt:   c.CreatedAt,
		LastUpdated: c.LastUpdated,
		Users:       copyUsers(c.Users),
		History:     make(map[string]api.DayRecord, len(c.History)),
	}
	if c.DailyGoal != nil {
		goal := *c.DailyGoal
		out.DailyGoal = &goal
	}
	for k, rec := range c.History {
		out.History[k] = api.DayRecord{Users: copyUsers(rec.Users), Total: rec.Total, DayOfWeek: rec.DayOfWeek}
	}
	return out
}

// CounterFromAPI конвертирует счетчик из формата API
func CounterFromAPI(in api.Counter) Counter {
	c := Counter{
		ID:          in.ID,
		Name:        in.Name,
		Value:       in.Value,
		DailyCount:  in.DailyCount,
		CreatedAt:   in.CreatedAt,
		LastUpdated: in.LastUpdated,
		Users:       copyUsers(in.Users),
		History:     HistoryFromAPI(in.History),
	}
	if in.DailyGoal != nil {
		goal := *in.DailyGoal
		c.DailyGoal = &goal
	}
	return c
}

// HistoryFromAPI конвертирует историю из формата API
func HistoryFromAPI(in map[string]api.DayRecord) map[string]DayRecord {
	if in == nil {
		return nil
	}
	out := make(map[string]DayRecord, len(in))
	for k, rec := range in {
		out[k] = DayRecord{Users: copyUsers(rec.Users), Total: rec.Total, DayOfWeek: rec.DayOfWeek}
	}
	return out
}

// HistoryToAPI конвертирует историю в формат API
func HistoryToAPI(in map[string]DayRecord) map[string]api.DayRecord {
	if in == nil {
		return nil
	}
	out := make(map[string]api.DayRecord, len(in))
	for k, rec := range in {
		out[k] = api.DayRecord{Users: copyUsers(rec.Users), Total: rec.Total, DayOfWeek: rec.DayOfWeek}
	}
	return out
}

func addClamped(m map[string]int64, key string, delta int64) {
	n := max(m[key]+delta, 0)
	if n == 0 {
		delete(m, key)
		return
	}
	m[key] = n
}

func copyUsers(in map[string]int64) map[string]int64 {
	if in == nil {
		return make(map[string]int64)
	}
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyHistory(in map[string]DayRecord) map[string]DayRecord {
	out := make(map[string]DayRecord, len(in))
	for k, rec := range in {
		out[k] = DayRecord{Users: copyUsers(rec.Users), Total: rec.Total, DayOfWeek: rec.DayOfWeek}
	}
	return out
}
