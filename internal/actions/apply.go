package actions

import (
	"context"
	"strings"

	"projectcompanion/internal/model"
	"projectcompanion/internal/store"
	"projectcompanion/pkg/metrics"

	"go.uber.org/zap"
)

// inboxProjectTitle names the project that receives tasks created through
// chat, which arrive without a project of their own.
const inboxProjectTitle = "Inbox"

type AppliedAction struct {
	Kind   string `json:"kind"` // create / delete / complete / uncomplete / priority-update
	TaskID string `json:"task_id,omitempty"`
	Title  string `json:"title,omitempty"`
}

type Failure struct {
	Kind   string `json:"kind"`
	TaskID string `json:"task_id,omitempty"`
	Reason string `json:"reason"`
}

// Result is what a processed assistant reply boils down to: the text to show
// the user and what happened to the store because of it.
type Result struct {
	DisplayText string          `json:"display_text"`
	Applied     []AppliedAction `json:"applied"`
	Failures    []Failure       `json:"failures"`
}

// Reconciler bridges assistant replies to Entity Store mutations.
type Reconciler struct {
	store  *store.Store
	logger *zap.Logger

	inboxID string // cached id of the Inbox project
}

func NewReconciler(st *store.Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: st, logger: logger}
}

// ProcessAssistantReply extracts the action payload from raw and applies it.
// A malformed payload fails closed: the returned Result carries the original
// text, zero mutations were made, and the *ExtractionError is returned for
// the caller to report. Element-level failures never abort the batch; they
// are collected in Result.Failures.
func (r *Reconciler) ProcessAssistantReply(ctx context.Context, raw string) (*Result, error) {
	display, batch, err := Extract(raw)
	res := &Result{
		DisplayText: display,
		Applied:     []AppliedAction{},
		Failures:    []Failure{},
	}
	if err != nil {
		r.logger.Error("Action payload rejected, applying nothing", zap.Error(err))
		return res, err
	}
	if batch == nil {
		return res, nil
	}

	r.logger.Info("Applying action batch",
		zap.Int("create", len(batch.Create)),
		zap.Int("delete", len(batch.Delete)),
		zap.Int("complete", len(batch.Complete)),
		zap.Int("uncomplete", len(batch.Uncomplete)),
		zap.Int("priority_update", len(batch.PriorityUpdate)),
	)

	// Fixed order: creations before deletions before status changes.
	for _, a := range batch.Create {
		r.applyCreate(ctx, res, a)
	}
	for _, id := range batch.Delete {
		r.applyDelete(ctx, res, id)
	}
	for _, id := range batch.Complete {
		r.applyComplete(ctx, res, id)
	}
	for _, id := range batch.Uncomplete {
		r.applyUncomplete(ctx, res, id)
	}
	for _, a := range batch.PriorityUpdate {
		r.applyPriorityUpdate(ctx, res, a)
	}
	return res, nil
}

func (r *Reconciler) applyCreate(ctx context.Context, res *Result, a CreateAction) {
	priority := a.Priority
	if !model.ValidPriority(priority) {
		// Documented coercion: absent or unknown priority becomes medium.
		priority = model.PriorityMedium
	}

	projectID, err := r.ensureInbox(ctx)
	if err != nil {
		r.fail(res, "create", "", err)
		return
	}

	t, err := r.store.CreateTask(ctx, store.TaskDraft{
		ProjectID: projectID,
		Title:     strings.TrimSpace(a.Title),
		Status:    model.TaskStatusTodo,
		Priority:  priority,
	})
	if err != nil {
		r.fail(res, "create", "", err)
		return
	}
	r.applied(res, AppliedAction{Kind: "create", TaskID: t.ID, Title: t.Title})
}

func (r *Reconciler) applyDelete(ctx context.Context, res *Result, id string) {
	if err := r.store.DeleteTask(ctx, id); err != nil {
		r.fail(res, "delete", id, err)
		return
	}
	r.applied(res, AppliedAction{Kind: "delete", TaskID: id})
}

func (r *Reconciler) applyComplete(ctx context.Context, res *Result, id string) {
	if _, err := r.store.CompleteTask(ctx, id); err != nil {
		r.fail(res, "complete", id, err)
		return
	}
	r.applied(res, AppliedAction{Kind: "complete", TaskID: id})
}

func (r *Reconciler) applyUncomplete(ctx context.Context, res *Result, id string) {
	if _, err := r.store.UncompleteTask(ctx, id); err != nil {
		r.fail(res, "uncomplete", id, err)
		return
	}
	r.applied(res, AppliedAction{Kind: "uncomplete", TaskID: id})
}

func (r *Reconciler) applyPriorityUpdate(ctx context.Context, res *Result, a PriorityUpdateAction) {
	priority := a.Priority
	if _, err := r.store.UpdateTask(ctx, a.TaskID, store.TaskUpdate{Priority: &priority}); err != nil {
		r.fail(res, "priority-update", a.TaskID, err)
		return
	}
	r.applied(res, AppliedAction{Kind: "priority-update", TaskID: a.TaskID})
}

// ensureInbox resolves the Inbox project, creating it on first use.
func (r *Reconciler) ensureInbox(ctx context.Context) (string, error) {
	if r.inboxID != "" {
		if _, err := r.store.GetProject(r.inboxID); err == nil {
			return r.inboxID, nil
		}
		r.inboxID = ""
	}
	for _, p := range r.store.ListProjects() {
		if p.Title == inboxProjectTitle {
			r.inboxID = p.ID
			return p.ID, nil
		}
	}
	p, err := r.store.CreateProject(ctx, store.ProjectDraft{
		Title:       inboxProjectTitle,
		Description: "Tasks captured from chat",
		Status:      model.ProjectStatusActive,
	})
	if err != nil {
		return "", err
	}
	r.logger.Info("Inbox project created", zap.String("project_id", p.ID))
	r.inboxID = p.ID
	return p.ID, nil
}

func (r *Reconciler) applied(res *Result, a AppliedAction) {
	res.Applied = append(res.Applied, a)
	metrics.IncrementActionApplied(a.Kind, "success")
}

func (r *Reconciler) fail(res *Result, kind, taskID string, err error) {
	r.logger.Warn("Action element failed",
		zap.String("kind", kind),
		zap.String("task_id", taskID),
		zap.Error(err),
	)
	res.Failures = append(res.Failures, Failure{Kind: kind, TaskID: taskID, Reason: err.Error()})
	metrics.IncrementActionApplied(kind, "failed")
}
