package derive

import (
	"testing"
	"time"

	"projectcompanion/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }

func task(id, priority string, due *time.Time) model.Task {
	return model.Task{
		ID:       id,
		Status:   model.TaskStatusTodo,
		Priority: priority,
		DueDate:  due,
	}
}

func ids(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestTodayTasksSelection(t *testing.T) {
	overdue := task("overdue", model.PriorityMedium, datePtr(now.AddDate(0, 0, -2)))
	dueToday := task("due-today", model.PriorityLow, datePtr(now))
	highSoon := task("high-soon", model.PriorityHigh, datePtr(now.AddDate(0, 0, 3)))
	highFar := task("high-far", model.PriorityHigh, datePtr(now.AddDate(0, 0, 4)))
	mediumSoon := task("medium-soon", model.PriorityMedium, datePtr(now.AddDate(0, 0, 2)))
	undated := task("undated", model.PriorityHigh, nil)

	flagged := task("flagged", model.PriorityLow, nil)
	flagged.IsToday = true

	flaggedDone := task("flagged-done", model.PriorityLow, nil)
	flaggedDone.IsToday = true
	flaggedDone.Status = model.TaskStatusDone

	doneDue := task("done-due", model.PriorityHigh, datePtr(now))
	doneDue.Status = model.TaskStatusDone

	got := TodayTasks([]model.Task{
		overdue, dueToday, highSoon, highFar, mediumSoon, undated, flagged, flaggedDone, doneDue,
	}, now)

	assert.ElementsMatch(t,
		[]string{"overdue", "due-today", "high-soon", "flagged", "flagged-done"},
		ids(got))
}

func TestTodayTasksOrdering(t *testing.T) {
	lowEarly := task("low-early", model.PriorityLow, datePtr(now.AddDate(0, 0, -3)))
	highLate := task("high-late", model.PriorityHigh, datePtr(now))
	highEarly := task("high-early", model.PriorityHigh, datePtr(now.AddDate(0, 0, -1)))
	medium := task("medium", model.PriorityMedium, datePtr(now))

	mediumFlagged := task("medium-flagged", model.PriorityMedium, nil)
	mediumFlagged.IsToday = true

	got := TodayTasks([]model.Task{lowEarly, highLate, highEarly, medium, mediumFlagged}, now)

	// High before medium before low; within a rank, earlier due date first
	// and undated last.
	assert.Equal(t,
		[]string{"high-early", "high-late", "medium", "medium-flagged", "low-early"},
		ids(got))
}

func TestTodayTasksStableForEqualKeys(t *testing.T) {
	a := task("a", model.PriorityHigh, datePtr(now))
	b := task("b", model.PriorityHigh, datePtr(now))
	c := task("c", model.PriorityHigh, datePtr(now))

	got := TodayTasks([]model.Task{a, b, c}, now)
	require.Equal(t, []string{"a", "b", "c"}, ids(got))

	// Same input, same output.
	again := TodayTasks([]model.Task{a, b, c}, now)
	assert.Equal(t, ids(got), ids(again))
}

func TestTodayBoundaryIsCalendarDate(t *testing.T) {
	// Due late tonight, evaluated in the morning: still today.
	morning := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	tonight := task("tonight", model.PriorityLow, datePtr(time.Date(2025, 6, 10, 23, 59, 0, 0, time.UTC)))
	tomorrow := task("tomorrow", model.PriorityLow, datePtr(time.Date(2025, 6, 11, 0, 1, 0, 0, time.UTC)))

	got := TodayTasks([]model.Task{tonight, tomorrow}, morning)
	assert.Equal(t, []string{"tonight"}, ids(got))
}

func TestProjectProgress(t *testing.T) {
	tasks := []model.Task{
		{ID: "1", ProjectID: "p", Status: model.TaskStatusDone},
		{ID: "2", ProjectID: "p", Status: model.TaskStatusTodo},
		{ID: "3", ProjectID: "p", Status: model.TaskStatusTodo},
		{ID: "4", ProjectID: "other", Status: model.TaskStatusDone},
	}

	// 1 of 3 done, rounded half-up.
	assert.Equal(t, 33, ProjectProgress(tasks, "p"))
	assert.Equal(t, 100, ProjectProgress(tasks, "other"))
	assert.Equal(t, 0, ProjectProgress(tasks, "empty"))
}

func TestProjectProgressRoundsHalfUp(t *testing.T) {
	tasks := []model.Task{
		{ID: "1", ProjectID: "p", Status: model.TaskStatusDone},
		{ID: "2", ProjectID: "p", Status: model.TaskStatusTodo},
		{ID: "3", ProjectID: "p", Status: model.TaskStatusDone},
		{ID: "4", ProjectID: "p", Status: model.TaskStatusTodo},
		{ID: "5", ProjectID: "p", Status: model.TaskStatusDone},
		{ID: "6", ProjectID: "p", Status: model.TaskStatusTodo},
		{ID: "7", ProjectID: "p", Status: model.TaskStatusDone},
		{ID: "8", ProjectID: "p", Status: model.TaskStatusTodo},
	}
	// 4/8 = 50 exactly; 5/8 = 62.5 rounds to 63.
	assert.Equal(t, 50, ProjectProgress(tasks, "p"))

	tasks[1].Status = model.TaskStatusDone
	assert.Equal(t, 63, ProjectProgress(tasks, "p"))
}
