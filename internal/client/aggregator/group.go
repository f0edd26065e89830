package aggregator

import (
	"github.com/iudanet/tallysync/internal/models"
)

type groupKey struct {
	user string
	day  string
}

// Group суммирует инкременты по паре (actingUser, dayKey).
// Группы возвращаются в порядке первого появления пары.
func Group(incs []models.PendingIncrement) []models.IncrementGroup {
	index := make(map[groupKey]int, len(incs))
	groups := make([]models.IncrementGroup, 0, len(incs))

	for _, inc := range incs {
		k := groupKey{user: inc.ActingUser, day: inc.DayKey}
		if i, ok := index[k]; ok {
			groups[i].Count++
			continue
		}
		index[k] = len(groups)
		groups = append(groups, models.IncrementGroup{ActingUser: inc.ActingUser, DayKey: inc.DayKey, Count: 1})
	}
	return groups
}

// batch инкременты одного счетчика, отправляемые одним запросом
type batch struct {
	counterID string
	incs      []models.PendingIncrement
}

// partition раскладывает очередь по счетчикам в порядке первого появления,
// оставляя не больше limit самых старых инкрементов на счетчик. limit <= 0 снимает ограничение.
func partition(queue []models.PendingIncrement, limit int) []batch {
	index := make(map[string]int)
	var batches []batch

	for _, inc := range queue {
		i, ok := index[inc.CounterID]
		if !ok {
			i = len(batches)
			index[inc.CounterID] = i
			batches = append(batches, batch{counterID: inc.CounterID})
		}
		if limit > 0 && len(batches[i].incs) >= limit {
			continue
		}
		batches[i].incs = append(batches[i].incs, inc)
	}
	return batches
}
