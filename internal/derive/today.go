// Package derive computes read-only views over the task collections. The
// functions here are pure: the same input slice and the same clock value
// always produce the same output, and nothing is cached between calls.
package derive

import (
	"math"
	"sort"
	"time"

	"projectcompanion/internal/model"
)

// highPriorityWindowDays is how far ahead a high-priority task's due date may
// be and still surface in the Today view.
const highPriorityWindowDays = 3

// TodayTasks selects the tasks that deserve attention right now:
//
//  1. tasks flagged is_today, always;
//  2. otherwise skip done tasks and tasks without a due date;
//  3. include tasks due today or overdue;
//  4. include high-priority tasks due within the next three calendar days.
//
// The result is ordered high < medium < low, ties broken by due date
// (undated last), then by the order of the input slice.
func TodayTasks(tasks []model.Task, now time.Time) []model.Task {
	today := truncateToDate(now)
	horizon := today.AddDate(0, 0, highPriorityWindowDays)

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsToday {
			out = append(out, t)
			continue
		}
		if t.Status == model.TaskStatusDone {
			continue
		}
		if t.DueDate == nil {
			continue
		}
		due := truncateToDate(*t.DueDate)
		if !due.After(today) {
			out = append(out, t)
			continue
		}
		if t.Priority == model.PriorityHigh && !due.After(horizon) {
			out = append(out, t)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := priorityRank(out[i].Priority), priorityRank(out[j].Priority)
		if ri != rj {
			return ri < rj
		}
		di, dj := out[i].DueDate, out[j].DueDate
		switch {
		case di == nil && dj == nil:
			return false
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
	return out
}

// ProjectProgress returns the percentage of done tasks in the project,
// rounded half-up. A project without tasks is at 0.
func ProjectProgress(tasks []model.Task, projectID string) int {
	total := 0
	done := 0
	for _, t := range tasks {
		if t.ProjectID != projectID {
			continue
		}
		total++
		if t.Status == model.TaskStatusDone {
			done++
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Floor(100*float64(done)/float64(total) + 0.5))
}

func priorityRank(p string) int {
	switch p {
	case model.PriorityHigh:
		return 0
	case model.PriorityMedium:
		return 1
	case model.PriorityLow:
		return 2
	default:
		return 3
	}
}

// truncateToDate keeps only the calendar date, normalized to UTC so values
// stored with different zones compare by the date the user wrote.
func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
