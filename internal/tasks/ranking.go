package tasks

import (
	"fmt"
	"sort"
	"time"
)

// DefaultAlertWindow - сколько дней вперёд смотрит Upcoming по умолчанию.
const DefaultAlertWindow = 1

// unknownPriorityRank - ранг для любых значений приоритета вне High/Medium/Low.
const unknownPriorityRank = 4

var priorityRank = map[Priority]int{
	PriorityHigh:   1,
	PriorityMedium: 2,
	PriorityLow:    3,
}

// Rank возвращает ранг приоритета: High=1, Medium=2, Low=3, остальное=4.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return unknownPriorityRank
}

// Valid сообщает, является ли приоритет одним из High/Medium/Low.
func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Alert - напоминание о задаче, дедлайн которой попал в окно.
type Alert struct {
	Title    string   `json:"title"`
	Priority Priority `json:"priority"`
	Deadline string   `json:"deadline"`
	DaysLeft int      `json:"daysLeft"`
}

func (a Alert) String() string {
	return fmt.Sprintf("%s - %s - Due %s", a.Title, a.Priority, a.Deadline)
}

// Rank сортирует копию списка: сначала по рангу приоритета, затем по дедлайну.
//
// Дедлайны сравниваются как строки: для YYYY-MM-DD это совпадает с порядком дат.
// Сортировка стабильная, входной слайс не меняется.
func Rank(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].Deadline < out[j].Deadline
	})
	return out
}

// Upcoming возвращает напоминания для задач, у которых 0 <= (deadline - today) <= window дней.
//
// Задачи с нераспознаваемым дедлайном пропускаются без ошибки.
// Порядок напоминаний совпадает с порядком задач во входном списке.
func Upcoming(tasks []Task, today time.Time, window int) []Alert {
	day := truncateToDate(today)
	alerts := make([]Alert, 0)
	for _, t := range tasks {
		d, err := time.ParseInLocation(DeadlineLayout, t.Deadline, time.UTC)
		if err != nil {
			continue
		}
		days := daysBetween(day, d)
		if days < 0 || days > window {
			continue
		}
		alerts = append(alerts, Alert{
			Title:    t.Title,
			Priority: t.Priority,
			Deadline: t.Deadline,
			DaysLeft: days,
		})
	}
	return alerts
}

// truncateToDate переносит календарную дату из локальной зоны t в полночь UTC,
// чтобы разница считалась в целых днях без влияния перехода на летнее время.
func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// daysBetween считает целые дни между двумя полночами UTC.
// Через Unix-секунды, а не time.Duration: Sub упирается в ~292 года.
func daysBetween(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / secondsPerDay)
}
