package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"projectcompanion/config"
	"projectcompanion/internal/actions"
	"projectcompanion/internal/chat"
	"projectcompanion/internal/handler"
	"projectcompanion/internal/model"
	"projectcompanion/internal/repository"
	"projectcompanion/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAssistant struct {
	reply string
}

func (f *fakeAssistant) Send(ctx context.Context, systemContext string, history []model.ChatMessage, message string) (string, error) {
	return f.reply, nil
}

func newTestRouter(t *testing.T, assistant *fakeAssistant) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	persist := repository.NewFileSnapshotRepository(filepath.Join(t.TempDir(), "snap.json"), log)
	st := store.New(persist, nil, log)
	require.NoError(t, st.Load(context.Background()))

	reconciler := actions.NewReconciler(st, log)
	session := chat.NewSession(st, assistant, reconciler, 5, log)

	h := Handlers{
		Project:   handler.NewProjectHandler(st, log),
		Milestone: handler.NewMilestoneHandler(st, log),
		Task:      handler.NewTaskHandler(st, log),
		Chat:      handler.NewChatHandler(session, log),
	}
	return NewRouter(h, config.ServerConfig{}, log, nil, nil), st
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, &fakeAssistant{})

	assert.Equal(t, 200, doJSON(t, r, "GET", "/healthz", "").Code)
	assert.Equal(t, 200, doJSON(t, r, "GET", "/readyz", "").Code)
	assert.Equal(t, 200, doJSON(t, r, "GET", "/metrics", "").Code)
}

func TestProjectCRUDOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t, &fakeAssistant{})

	w := doJSON(t, r, "POST", "/api/projects", `{"title": "Website", "status": "active"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var project model.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &project))
	assert.NotEmpty(t, project.ID)

	w = doJSON(t, r, "GET", "/api/projects/"+project.ID, "")
	assert.Equal(t, 200, w.Code)

	w = doJSON(t, r, "PATCH", "/api/projects/"+project.ID, `{"title": "Site"}`)
	require.Equal(t, 200, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &project))
	assert.Equal(t, "Site", project.Title)

	w = doJSON(t, r, "DELETE", "/api/projects/"+project.ID, "")
	assert.Equal(t, 200, w.Code)

	w = doJSON(t, r, "GET", "/api/projects/"+project.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidationErrorsMapToBadRequest(t *testing.T) {
	r, _ := newTestRouter(t, &fakeAssistant{})

	w := doJSON(t, r, "POST", "/api/projects", `{"title": "   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, "POST", "/api/tasks", `{"title": "Orphan", "project_id": "ghost"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, "GET", "/api/tasks/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTodayEndpoint(t *testing.T) {
	r, st := newTestRouter(t, &fakeAssistant{})
	ctx := context.Background()

	p, err := st.CreateProject(ctx, store.ProjectDraft{Title: "Website"})
	require.NoError(t, err)
	_, err = st.CreateTask(ctx, store.TaskDraft{ProjectID: p.ID, Title: "Flagged", IsToday: true})
	require.NoError(t, err)
	_, err = st.CreateTask(ctx, store.TaskDraft{ProjectID: p.ID, Title: "Undated"})
	require.NoError(t, err)

	w := doJSON(t, r, "GET", "/api/tasks/today", "")
	require.Equal(t, 200, w.Code)

	var body struct {
		Tasks []model.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "Flagged", body.Tasks[0].Title)
}

func TestProgressEndpoint(t *testing.T) {
	r, st := newTestRouter(t, &fakeAssistant{})
	ctx := context.Background()

	p, err := st.CreateProject(ctx, store.ProjectDraft{Title: "Website"})
	require.NoError(t, err)
	done, err := st.CreateTask(ctx, store.TaskDraft{ProjectID: p.ID, Title: "A"})
	require.NoError(t, err)
	_, err = st.CreateTask(ctx, store.TaskDraft{ProjectID: p.ID, Title: "B"})
	require.NoError(t, err)
	_, err = st.CompleteTask(ctx, done.ID)
	require.NoError(t, err)

	w := doJSON(t, r, "GET", "/api/projects/"+p.ID+"/progress", "")
	require.Equal(t, 200, w.Code)

	var body struct {
		Progress  int `json:"progress"`
		TaskCount int `json:"task_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 50, body.Progress)
	assert.Equal(t, 2, body.TaskCount)
}

func TestChatEndpointAppliesActions(t *testing.T) {
	assistant := &fakeAssistant{
		reply: "Added!\n" + `{"__task_actions__": {"create": [{"title": "Write report", "priority": "high"}]}}`,
	}
	r, st := newTestRouter(t, assistant)

	w := doJSON(t, r, "POST", "/api/chat", `{"message": "add a task to write the report"}`)
	require.Equal(t, 200, w.Code)

	var body struct {
		Response string                  `json:"response"`
		Applied  []actions.AppliedAction `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Added!", body.Response)
	require.Len(t, body.Applied, 1)

	tasks := st.ListTasks(store.TaskFilter{})
	require.Len(t, tasks, 1)
	assert.Equal(t, "Write report", tasks[0].Title)

	w = doJSON(t, r, "GET", "/api/chat/history", "")
	require.Equal(t, 200, w.Code)
	var hist struct {
		Messages []model.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	assert.Len(t, hist.Messages, 2)
}

func TestChatEndpointRequiresMessage(t *testing.T) {
	r, _ := newTestRouter(t, &fakeAssistant{})

	w := doJSON(t, r, "POST", "/api/chat", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTraceHeaderEchoed(t *testing.T) {
	r, _ := newTestRouter(t, &fakeAssistant{})

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Trace-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Trace-ID"))
}
