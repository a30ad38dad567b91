package actions

import (
	"context"
	"testing"

	"projectcompanion/internal/model"
	"projectcompanion/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memPersist struct {
	snap *model.Snapshot
}

func (m *memPersist) Load(ctx context.Context) (*model.Snapshot, error) {
	if m.snap == nil {
		return &model.Snapshot{}, nil
	}
	return m.snap, nil
}

func (m *memPersist) Save(ctx context.Context, snap *model.Snapshot) error {
	m.snap = snap
	return nil
}

func newReconciler(t *testing.T) (*Reconciler, *store.Store) {
	t.Helper()
	st := store.New(&memPersist{}, nil, zap.NewNop())
	require.NoError(t, st.Load(context.Background()))
	return NewReconciler(st, zap.NewNop()), st
}

func TestProcessReplyCreatesTaskInInbox(t *testing.T) {
	r, st := newReconciler(t)
	ctx := context.Background()

	raw := "Added!\n" + `{"__task_actions__": {"create": [{"title": "Write report", "priority": "high"}]}}`
	res, err := r.ProcessAssistantReply(ctx, raw)
	require.NoError(t, err)

	assert.Equal(t, "Added!", res.DisplayText)
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "create", res.Applied[0].Kind)
	assert.Empty(t, res.Failures)

	tasks := st.ListTasks(store.TaskFilter{})
	require.Len(t, tasks, 1)
	assert.Equal(t, "Write report", tasks[0].Title)
	assert.Equal(t, model.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, model.TaskStatusTodo, tasks[0].Status)

	inbox, err := st.GetProject(tasks[0].ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "Inbox", inbox.Title)
}

func TestProcessReplyReusesInbox(t *testing.T) {
	r, st := newReconciler(t)
	ctx := context.Background()

	for _, raw := range []string{
		`{"__task_actions__": {"create": [{"title": "One"}]}}`,
		`{"__task_actions__": {"create": [{"title": "Two"}]}}`,
	} {
		_, err := r.ProcessAssistantReply(ctx, raw)
		require.NoError(t, err)
	}

	assert.Len(t, st.ListProjects(), 1)
	assert.Len(t, st.ListTasks(store.TaskFilter{}), 2)
}

func TestProcessReplyCoercesUnknownPriority(t *testing.T) {
	r, st := newReconciler(t)

	raw := `{"__task_actions__": {"create": [{"title": "Loose", "priority": "urgent"}, {"title": "Bare"}]}}`
	res, err := r.ProcessAssistantReply(context.Background(), raw)
	require.NoError(t, err)
	assert.Len(t, res.Applied, 2)

	for _, task := range st.ListTasks(store.TaskFilter{}) {
		assert.Equal(t, model.PriorityMedium, task.Priority)
	}
}

func TestProcessReplyMalformedPayloadAppliesNothing(t *testing.T) {
	r, st := newReconciler(t)

	raw := `Sure. {"__task_actions__": {"create": [{"title": "X"}], "rename": []}}`
	res, err := r.ProcessAssistantReply(context.Background(), raw)

	var eerr *ExtractionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, raw, res.DisplayText)
	assert.Empty(t, res.Applied)
	assert.Empty(t, st.ListTasks(store.TaskFilter{}))
	assert.Empty(t, st.ListProjects())
}

func TestProcessReplyAppliesInFixedOrder(t *testing.T) {
	r, st := newReconciler(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, store.ProjectDraft{Title: "Website"})
	require.NoError(t, err)
	doomed, err := st.CreateTask(ctx, store.TaskDraft{ProjectID: p.ID, Title: "Old"})
	require.NoError(t, err)

	// Delete listed before create in the JSON text; creations still run first.
	raw := `{"__task_actions__": {"delete": ["` + doomed.ID + `"], "create": [{"title": "New"}]}}`
	res, err := r.ProcessAssistantReply(ctx, raw)
	require.NoError(t, err)

	require.Len(t, res.Applied, 2)
	assert.Equal(t, "create", res.Applied[0].Kind)
	assert.Equal(t, "delete", res.Applied[1].Kind)
}

func TestProcessReplyElementFailuresDoNotAbortBatch(t *testing.T) {
	r, st := newReconciler(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, store.ProjectDraft{Title: "Website"})
	require.NoError(t, err)
	task, err := st.CreateTask(ctx, store.TaskDraft{ProjectID: p.ID, Title: "Real"})
	require.NoError(t, err)

	raw := `{"__task_actions__": {"complete": ["ghost", "` + task.ID + `"]}}`
	res, err := r.ProcessAssistantReply(ctx, raw)
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "complete", res.Failures[0].Kind)
	assert.Equal(t, "ghost", res.Failures[0].TaskID)

	require.Len(t, res.Applied, 1)
	got, err := st.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusDone, got.Status)
}

func TestProcessReplyCompleteIsIdempotent(t *testing.T) {
	r, st := newReconciler(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, store.ProjectDraft{Title: "Website"})
	require.NoError(t, err)
	task, err := st.CreateTask(ctx, store.TaskDraft{ProjectID: p.ID, Title: "Done twice"})
	require.NoError(t, err)
	_, err = st.CompleteTask(ctx, task.ID)
	require.NoError(t, err)

	raw := `{"__task_actions__": {"complete": ["` + task.ID + `"]}}`
	res, err := r.ProcessAssistantReply(ctx, raw)
	require.NoError(t, err)

	assert.Len(t, res.Applied, 1)
	assert.Empty(t, res.Failures)
}

func TestProcessReplyPriorityUpdate(t *testing.T) {
	r, st := newReconciler(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, store.ProjectDraft{Title: "Website"})
	require.NoError(t, err)
	task, err := st.CreateTask(ctx, store.TaskDraft{ProjectID: p.ID, Title: "Bump me"})
	require.NoError(t, err)

	raw := `{"__task_actions__": {"priority-update": [{"taskId": "` + task.ID + `", "priority": "high"}]}}`
	res, err := r.ProcessAssistantReply(ctx, raw)
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)

	got, err := st.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, got.Priority)
}
