package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"projectcompanion/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaskDraft struct {
	ProjectID      string     `json:"project_id"`
	MilestoneID    string     `json:"milestone_id"`
	ParentTaskID   string     `json:"parent_task_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	DueDate        *time.Time `json:"due_date"`
	StartDate      *time.Time `json:"start_date"`
	EstimatedHours float64    `json:"estimated_hours"`
	ActualHours    float64    `json:"actual_hours"`
	Dependencies   []string   `json:"dependencies"`
	BlockedBy      []string   `json:"blocked_by"`
	Tags           []string   `json:"tags"`
	IsToday        bool       `json:"is_today"`
}

type TaskUpdate struct {
	MilestoneID    *string    `json:"milestone_id"`
	ParentTaskID   *string    `json:"parent_task_id"`
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Status         *string    `json:"status"`
	Priority       *string    `json:"priority"`
	DueDate        *time.Time `json:"due_date"`
	StartDate      *time.Time `json:"start_date"`
	EstimatedHours *float64   `json:"estimated_hours"`
	ActualHours    *float64   `json:"actual_hours"`
	Dependencies   *[]string  `json:"dependencies"`
	BlockedBy      *[]string  `json:"blocked_by"`
	Tags           *[]string  `json:"tags"`
	IsToday        *bool      `json:"is_today"`
}

// TaskFilter narrows ListTasks; zero values mean "no filter".
type TaskFilter struct {
	ProjectID   string
	MilestoneID string
	Status      string
}

func (s *Store) CreateTask(ctx context.Context, draft TaskDraft) (*model.Task, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	status := draft.Status
	if status == "" {
		status = model.TaskStatusTodo
	}
	if !model.ValidTaskStatus(status) {
		return nil, &ValidationError{Field: "status", Reason: "unknown task status " + status}
	}
	priority := draft.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidPriority(priority) {
		return nil, &ValidationError{Field: "priority", Reason: "unknown priority " + priority}
	}
	if draft.EstimatedHours < 0 {
		return nil, &ValidationError{Field: "estimated_hours", Reason: "must not be negative"}
	}
	if draft.ActualHours < 0 {
		return nil, &ValidationError{Field: "actual_hours", Reason: "must not be negative"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[draft.ProjectID]; !ok {
		return nil, &ValidationError{Field: "project_id", Reason: "project does not exist: " + draft.ProjectID}
	}
	if draft.MilestoneID != "" {
		m, ok := s.milestones[draft.MilestoneID]
		if !ok {
			return nil, &ValidationError{Field: "milestone_id", Reason: "milestone does not exist: " + draft.MilestoneID}
		}
		if m.ProjectID != draft.ProjectID {
			return nil, &ValidationError{Field: "milestone_id", Reason: "milestone belongs to a different project"}
		}
	}
	if draft.ParentTaskID != "" {
		parent, ok := s.tasks[draft.ParentTaskID]
		if !ok {
			return nil, &ValidationError{Field: "parent_task_id", Reason: "parent task does not exist: " + draft.ParentTaskID}
		}
		if parent.ProjectID != draft.ProjectID {
			return nil, &ValidationError{Field: "parent_task_id", Reason: "parent task belongs to a different project"}
		}
	}
	for _, dep := range draft.Dependencies {
		if _, ok := s.tasks[dep]; !ok {
			return nil, &ValidationError{Field: "dependencies", Reason: "dependency does not exist: " + dep}
		}
	}

	now := s.now()
	t := &model.Task{
		ID:             uuid.NewString(),
		ProjectID:      draft.ProjectID,
		MilestoneID:    draft.MilestoneID,
		ParentTaskID:   draft.ParentTaskID,
		Title:          draft.Title,
		Description:    draft.Description,
		Status:         status,
		Priority:       priority,
		DueDate:        cloneTime(draft.DueDate),
		StartDate:      cloneTime(draft.StartDate),
		EstimatedHours: draft.EstimatedHours,
		ActualHours:    draft.ActualHours,
		Dependencies:   append([]string(nil), draft.Dependencies...),
		BlockedBy:      append([]string(nil), draft.BlockedBy...),
		Tags:           append([]string(nil), draft.Tags...),
		IsToday:        draft.IsToday,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if t.Dependencies == nil {
		t.Dependencies = []string{}
	}
	if t.BlockedBy == nil {
		t.BlockedBy = []string{}
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Status == model.TaskStatusDone {
		t.CompletedAt = &now
	}

	cp := s.checkpointLocked()
	s.tasks[t.ID] = t
	s.assignSeq(t.ID)
	if err := s.commitLocked(ctx, cp); err != nil {
		return nil, err
	}

	s.logger.Info("Task created",
		zap.String("task_id", t.ID),
		zap.String("project_id", t.ProjectID),
		zap.String("title", t.Title),
		zap.String("priority", t.Priority),
	)
	s.publishEvent("task.created", t)
	return cloneTask(t), nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, upd TaskUpdate) (*model.Task, error) {
	if upd.Status != nil && !model.ValidTaskStatus(*upd.Status) {
		return nil, &ValidationError{Field: "status", Reason: "unknown task status " + *upd.Status}
	}
	if upd.Priority != nil && !model.ValidPriority(*upd.Priority) {
		return nil, &ValidationError{Field: "priority", Reason: "unknown priority " + *upd.Priority}
	}
	if upd.EstimatedHours != nil && *upd.EstimatedHours < 0 {
		return nil, &ValidationError{Field: "estimated_hours", Reason: "must not be negative"}
	}
	if upd.ActualHours != nil && *upd.ActualHours < 0 {
		return nil, &ValidationError{Field: "actual_hours", Reason: "must not be negative"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}

	if upd.MilestoneID != nil && *upd.MilestoneID != "" {
		m, ok := s.milestones[*upd.MilestoneID]
		if !ok {
			return nil, &ValidationError{Field: "milestone_id", Reason: "milestone does not exist: " + *upd.MilestoneID}
		}
		if m.ProjectID != t.ProjectID {
			return nil, &ValidationError{Field: "milestone_id", Reason: "milestone belongs to a different project"}
		}
	}
	if upd.ParentTaskID != nil && *upd.ParentTaskID != "" {
		parent, ok := s.tasks[*upd.ParentTaskID]
		if !ok {
			return nil, &ValidationError{Field: "parent_task_id", Reason: "parent task does not exist: " + *upd.ParentTaskID}
		}
		if parent.ProjectID != t.ProjectID {
			return nil, &ValidationError{Field: "parent_task_id", Reason: "parent task belongs to a different project"}
		}
		if err := s.checkParentCycleLocked(id, *upd.ParentTaskID); err != nil {
			return nil, err
		}
	}
	if upd.Dependencies != nil {
		for _, dep := range *upd.Dependencies {
			if _, ok := s.tasks[dep]; !ok {
				return nil, &ValidationError{Field: "dependencies", Reason: "dependency does not exist: " + dep}
			}
		}
		if err := s.checkDependencyCycleLocked(id, *upd.Dependencies); err != nil {
			return nil, err
		}
	}

	cp := s.checkpointLocked()
	if upd.MilestoneID != nil {
		t.MilestoneID = *upd.MilestoneID
	}
	if upd.ParentTaskID != nil {
		t.ParentTaskID = *upd.ParentTaskID
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.DueDate != nil {
		t.DueDate = cloneTime(upd.DueDate)
	}
	if upd.StartDate != nil {
		t.StartDate = cloneTime(upd.StartDate)
	}
	if upd.EstimatedHours != nil {
		t.EstimatedHours = *upd.EstimatedHours
	}
	if upd.ActualHours != nil {
		t.ActualHours = *upd.ActualHours
	}
	if upd.Dependencies != nil {
		t.Dependencies = append([]string(nil), (*upd.Dependencies)...)
	}
	if upd.BlockedBy != nil {
		t.BlockedBy = append([]string(nil), (*upd.BlockedBy)...)
	}
	if upd.Tags != nil {
		t.Tags = append([]string(nil), (*upd.Tags)...)
	}
	if upd.IsToday != nil {
		t.IsToday = *upd.IsToday
	}
	now := s.now()
	if upd.Status != nil && *upd.Status != t.Status {
		s.applyTaskStatusLocked(t, *upd.Status, now)
	}
	t.UpdatedAt = now

	if err := s.commitLocked(ctx, cp); err != nil {
		return nil, err
	}
	return cloneTask(t), nil
}

// applyTaskStatusLocked moves a task to status, keeping completed_at coherent.
func (s *Store) applyTaskStatusLocked(t *model.Task, status string, now time.Time) {
	if status == model.TaskStatusDone {
		if t.Status != model.TaskStatusDone {
			s.prevStatus[t.ID] = t.Status
		}
		if t.CompletedAt == nil {
			t.CompletedAt = &now
		}
	} else {
		t.CompletedAt = nil
	}
	t.Status = status
}

// checkParentCycleLocked walks the parent chain from newParent and rejects
// the assignment when it would reach id. The walk is bounded by the number
// of tasks, so a pre-existing corrupt chain cannot loop forever.
func (s *Store) checkParentCycleLocked(id, newParent string) error {
	if newParent == id {
		return &ValidationError{Field: "parent_task_id", Reason: "task cannot be its own parent"}
	}
	cur := newParent
	for depth := 0; depth <= len(s.tasks); depth++ {
		t, ok := s.tasks[cur]
		if !ok || t.ParentTaskID == "" {
			return nil
		}
		if t.ParentTaskID == id {
			return &ValidationError{Field: "parent_task_id", Reason: "would create a subtask cycle"}
		}
		cur = t.ParentTaskID
	}
	return &ValidationError{Field: "parent_task_id", Reason: "parent chain too deep"}
}

// checkDependencyCycleLocked rejects a dependency set through which id can
// reach itself.
func (s *Store) checkDependencyCycleLocked(id string, deps []string) error {
	visited := make(map[string]bool)
	var walk func(cur string) bool
	walk = func(cur string) bool {
		if cur == id {
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
		t, ok := s.tasks[cur]
		if !ok {
			return false
		}
		for _, next := range t.Dependencies {
			if walk(next) {
				return true
			}
		}
		return false
	}
	for _, dep := range deps {
		if walk(dep) {
			return &ValidationError{Field: "dependencies", Reason: "would create a dependency cycle"}
		}
	}
	return nil
}

// DeleteTask removes the task, cascade-deletes its subtasks, and scrubs the
// id from every remaining dependencies / blocked_by list.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return &NotFoundError{Kind: "task", ID: id}
	}

	cp := s.checkpointLocked()
	removed := s.removeTaskTreeLocked(id)
	for _, victim := range removed {
		for _, t := range s.tasks {
			t.Dependencies = removeID(t.Dependencies, victim)
			t.BlockedBy = removeID(t.BlockedBy, victim)
		}
	}

	if err := s.commitLocked(ctx, cp); err != nil {
		return err
	}

	s.logger.Info("Task deleted",
		zap.String("task_id", id),
		zap.Int("subtasks_removed", len(removed)-1),
	)
	s.publishEvent("task.deleted", map[string]any{"task_id": id})
	return nil
}

// removeTaskTreeLocked deletes id and its subtask tree, returning every
// removed id.
func (s *Store) removeTaskTreeLocked(id string) []string {
	removed := []string{id}
	delete(s.tasks, id)
	delete(s.seq, id)
	delete(s.prevStatus, id)

	var children []string
	for tid, t := range s.tasks {
		if t.ParentTaskID == id {
			children = append(children, tid)
		}
	}
	for _, child := range children {
		removed = append(removed, s.removeTaskTreeLocked(child)...)
	}
	return removed
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (s *Store) GetTask(id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	return cloneTask(t), nil
}

// ListTasks returns tasks matching the filter in insertion order.
func (s *Store) ListTasks(filter TaskFilter) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.MilestoneID != "" && t.MilestoneID != filter.MilestoneID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, *cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	return out
}

// CompleteTask forces a task into done. Completing an already-done task is a
// no-op success: completed_at and updated_at stay untouched.
func (s *Store) CompleteTask(ctx context.Context, id string) (*model.Task, error) {
	return s.setTaskDone(ctx, id, true)
}

// UncompleteTask forces a task back to todo. A task that is not done is left
// untouched.
func (s *Store) UncompleteTask(ctx context.Context, id string) (*model.Task, error) {
	return s.setTaskDone(ctx, id, false)
}

func (s *Store) setTaskDone(ctx context.Context, id string, done bool) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	if done == (t.Status == model.TaskStatusDone) {
		return cloneTask(t), nil
	}

	cp := s.checkpointLocked()
	now := s.now()
	if done {
		s.applyTaskStatusLocked(t, model.TaskStatusDone, now)
	} else {
		s.applyTaskStatusLocked(t, model.TaskStatusTodo, now)
	}
	t.UpdatedAt = now

	if err := s.commitLocked(ctx, cp); err != nil {
		return nil, err
	}
	if done {
		s.publishEvent("task.completed", t)
	}
	return cloneTask(t), nil
}

// ToggleTaskComplete flips a task between done and its last non-done status
// (todo when unknown).
func (s *Store) ToggleTaskComplete(ctx context.Context, id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}

	cp := s.checkpointLocked()
	now := s.now()
	if t.Status == model.TaskStatusDone {
		prev, ok := s.prevStatus[id]
		if !ok || prev == model.TaskStatusDone {
			prev = model.TaskStatusTodo
		}
		s.applyTaskStatusLocked(t, prev, now)
	} else {
		s.applyTaskStatusLocked(t, model.TaskStatusDone, now)
	}
	t.UpdatedAt = now

	if err := s.commitLocked(ctx, cp); err != nil {
		return nil, err
	}
	if t.Status == model.TaskStatusDone {
		s.publishEvent("task.completed", t)
	}
	return cloneTask(t), nil
}
