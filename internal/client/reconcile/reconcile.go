// Package reconcile сливает свежий снимок сервера с локальным состоянием клиента.
//
// Конфликт разрешается целиком на уровне счетчика по правилу last-writer-wins:
// последнее локальное изменение сравнивается с lastServerSync по часам клиента.
package reconcile

import (
	"github.com/iudanet/tallysync/internal/models"
)

// Reconcile возвращает объединенный список счетчиков.
//
//   - нет локального снимка: результат равен снимку сервера;
//   - счетчик есть только локально: сохраняется как есть;
//   - счетчик есть на обеих сторонах: побеждает локальная версия, если самое
//     свежее изменение в очереди для него новее lastServerSync, иначе серверная;
//   - счетчики, известные только серверу, добавляются в конец в порядке сервера.
//
// Функция чистая: входные данные не изменяются, результат зависит только от них.
func Reconcile(server []models.Counter, local *models.Snapshot, pending []models.PendingChange) []models.Counter {
	if local == nil {
		out := make([]models.Counter, 0, len(server))
		for i := range server {
			out = append(out, *server[i].Clone())
		}
		return dedupe(out)
	}

	serverByID := make(map[string]*models.Counter, len(server))
	for i := range server {
		if _, ok := serverByID[server[i].ID]; !ok {
			serverByID[server[i].ID] = &server[i]
		}
	}

	latest := latestPending(pending)

	out := make([]models.Counter, 0, len(local.Counters)+len(server))
	seen := make(map[string]bool, len(local.Counters)+len(server))

	for i := range local.Counters {
		lc := &local.Counters[i]
		if seen[lc.ID] {
			continue
		}
		seen[lc.ID] = true

		sc, onServer := serverByID[lc.ID]
		if !onServer {
			out = append(out, *lc.Clone())
			continue
		}

		ts, hasPending := latest[lc.ID]
		if hasPending && ts > local.LastServerSync {
			out = append(out, *lc.Clone())
			continue
		}
		out = append(out, *sc.Clone())
	}

	for i := range server {
		if seen[server[i].ID] {
			continue
		}
		seen[server[i].ID] = true
		out = append(out, *server[i].Clone())
	}

	return out
}

// latestPending возвращает максимальный timestamp изменения для каждого счетчика
func latestPending(pending []models.PendingChange) map[string]int64 {
	latest := make(map[string]int64, len(pending))
	for _, p := range pending {
		if ts, ok := latest[p.ID]; !ok || p.Timestamp > ts {
			latest[p.ID] = p.Timestamp
		}
	}
	return latest
}

func dedupe(counters []models.Counter) []models.Counter {
	seen := make(map[string]bool, len(counters))
	out := counters[:0]
	for _, c := range counters {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}
