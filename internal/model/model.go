package model

import "time"

// Project statuses.
const (
	ProjectStatusPlanning  = "planning"
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
	ProjectStatusArchived  = "archived"
)

// Milestone statuses.
const (
	MilestoneStatusTodo       = "todo"
	MilestoneStatusInProgress = "in_progress"
	MilestoneStatusDone       = "done"
)

// Task statuses.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
	TaskStatusBlocked    = "blocked"
)

// Task priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ProjectContext carries the free-form planning context a user attaches to a
// project when it is created through the planning pipeline.
type ProjectContext struct {
	Motivation  string   `json:"motivation"`
	WeeklyHours int      `json:"weekly_hours"`
	Constraints []string `json:"constraints"`
	Resources   []string `json:"resources"`
}

type Project struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Goal          string          `json:"goal,omitempty"`
	Status        string          `json:"status"` // planning / active / on_hold / completed / archived
	StartDate     *time.Time      `json:"start_date,omitempty"`
	TargetEndDate *time.Time      `json:"target_end_date,omitempty"`
	ActualEndDate *time.Time      `json:"actual_end_date,omitempty"`
	Tags          []string        `json:"tags"`
	Color         string          `json:"color,omitempty"`
	Context       *ProjectContext `json:"context,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Milestone struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Order       int        `json:"order"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status"` // todo / in_progress / done
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Task struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	MilestoneID    string     `json:"milestone_id,omitempty"`
	ParentTaskID   string     `json:"parent_task_id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status"`   // todo / in_progress / done / blocked
	Priority       string     `json:"priority"` // high / medium / low
	DueDate        *time.Time `json:"due_date,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EstimatedHours float64    `json:"estimated_hours,omitempty"`
	ActualHours    float64    `json:"actual_hours,omitempty"`
	Dependencies   []string   `json:"dependencies"`
	BlockedBy      []string   `json:"blocked_by"`
	Tags           []string   `json:"tags"`
	IsToday        bool       `json:"is_today"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Snapshot is the unit of persistence: the full normalized state written and
// read as one self-consistent whole.
type Snapshot struct {
	Projects   []Project   `json:"projects"`
	Milestones []Milestone `json:"milestones"`
	Tasks      []Task      `json:"tasks"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role      string    `json:"role"` // user / assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidProjectStatus reports whether s is one of the project status values.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusActive, ProjectStatusOnHold,
		ProjectStatusCompleted, ProjectStatusArchived:
		return true
	}
	return false
}

// ValidMilestoneStatus reports whether s is one of the milestone status values.
func ValidMilestoneStatus(s string) bool {
	switch s {
	case MilestoneStatusTodo, MilestoneStatusInProgress, MilestoneStatusDone:
		return true
	}
	return false
}

// ValidTaskStatus reports whether s is one of the task status values.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusBlocked:
		return true
	}
	return false
}

// ValidPriority reports whether p is one of the task priority values.
func ValidPriority(p string) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}
