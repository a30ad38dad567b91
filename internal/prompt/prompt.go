// Package prompt builds the system context sent with every assistant call.
package prompt

import (
	"fmt"
	"strings"

	"projectcompanion/internal/model"
)

const maxListedTasks = 10

// AssistantSystemPrompt is the base persona and action contract for the
// assistant. The trailing instructions describe the machine-readable action
// block the backend extracts from each reply.
const AssistantSystemPrompt = `You are a friendly personal project companion. You help the user plan
projects, break them into milestones and tasks, and stay on top of daily work.
Keep replies short and conversational.

When the user asks you to create, delete, complete, reopen, or reprioritize
tasks, append exactly one JSON object at the very end of your reply:

{"__task_actions__": {"create": [{"title": "...", "priority": "high|medium|low"}], "delete": ["task-id"], "complete": ["task-id"], "uncomplete": ["task-id"], "priority-update": [{"taskId": "task-id", "priority": "high|medium|low"}]}}

Only include the keys you need. Use the task IDs from the task list below.
Never mention the JSON block in your prose; the application strips it before
the reply is shown.`

// TaskContext renders the current task situation as a system prompt section.
// It lists counts plus up to ten open tasks so the assistant can reference
// real IDs.
func TaskContext(tasks []model.Task) string {
	var todo, done []model.Task
	for _, t := range tasks {
		switch t.Status {
		case model.TaskStatusDone:
			done = append(done, t)
		case model.TaskStatusTodo, model.TaskStatusInProgress, model.TaskStatusBlocked:
			todo = append(todo, t)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n\nCurrent task status: %d open, %d done.", len(todo), len(done))
	if len(todo) == 0 {
		return b.String()
	}

	b.WriteString("\nOpen tasks:")
	for i, t := range todo {
		if i == maxListedTasks {
			fmt.Fprintf(&b, "\n- (and %d more)", len(todo)-maxListedTasks)
			break
		}
		fmt.Fprintf(&b, "\n- ID: %s, title: %s, priority: %s", t.ID, t.Title, t.Priority)
	}
	return b.String()
}

// SystemContext is the full system message: persona plus task context.
func SystemContext(tasks []model.Task) string {
	return AssistantSystemPrompt + TaskContext(tasks)
}
