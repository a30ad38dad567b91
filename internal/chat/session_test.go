package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"projectcompanion/internal/actions"
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

// fakeAssistant replies with a canned string and records what it was sent.
// When block is non-nil the call stalls until the channel is closed.
type fakeAssistant struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   chan struct{}
	history [][]model.ChatMessage
}

func (f *fakeAssistant) Send(ctx context.Context, systemContext string, history []model.ChatMessage, message string) (string, error) {
	f.mu.Lock()
	f.history = append(f.history, history)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newSession(t *testing.T, assistant *fakeAssistant, historyLimit int) (*Session, *store.Store) {
	t.Helper()
	st := store.New(&memPersist{}, nil, zap.NewNop())
	require.NoError(t, st.Load(context.Background()))
	reconciler := actions.NewReconciler(st, zap.NewNop())
	return NewSession(st, assistant, reconciler, historyLimit, zap.NewNop()), st
}

func TestSendAppendsBothMessages(t *testing.T) {
	assistant := &fakeAssistant{reply: "Hello there!"}
	session, _ := newSession(t, assistant, 5)

	res, err := session.Send(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", res.Response)

	history := session.History()
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, "Hi", history[0].Content)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
	assert.Equal(t, "Hello there!", history[1].Content)
}

func TestSendStripsActionBlock(t *testing.T) {
	assistant := &fakeAssistant{
		reply: "Added!\n" + `{"__task_actions__": {"create": [{"title": "Write report", "priority": "high"}]}}`,
	}
	session, st := newSession(t, assistant, 5)

	res, err := session.Send(context.Background(), "add a task to write the report")
	require.NoError(t, err)

	assert.Equal(t, "Added!", res.Response)
	require.Len(t, res.Applied, 1)
	assert.Len(t, st.ListTasks(store.TaskFilter{}), 1)

	// The stored assistant message is the stripped text, never the raw reply.
	history := session.History()
	assert.Equal(t, "Added!", history[1].Content)
}

func TestSendMalformedActionBlockKeepsReply(t *testing.T) {
	raw := `Sure. {"__task_actions__": {"bogus": []}}`
	assistant := &fakeAssistant{reply: raw}
	session, st := newSession(t, assistant, 5)

	res, err := session.Send(context.Background(), "do things")
	require.NoError(t, err)

	assert.Equal(t, raw, res.Response)
	assert.Empty(t, res.Applied)
	assert.Empty(t, st.ListTasks(store.TaskFilter{}))
}

func TestSendHistoryWindowIsBounded(t *testing.T) {
	assistant := &fakeAssistant{reply: "ok"}
	session, _ := newSession(t, assistant, 3)
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three", "four"} {
		_, err := session.Send(ctx, msg)
		require.NoError(t, err)
	}

	// Full history keeps everything.
	assert.Len(t, session.History(), 8)

	// The window sent upstream never exceeds the limit, and it was taken
	// before this turn's user message was appended.
	last := assistant.history[len(assistant.history)-1]
	require.Len(t, last, 3)
	assert.Equal(t, "three", last[1].Content)
	assert.Equal(t, "ok", last[2].Content)
}

func TestSendRejectsConcurrentRequest(t *testing.T) {
	assistant := &fakeAssistant{reply: "slow", block: make(chan struct{})}
	session, _ := newSession(t, assistant, 5)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := session.Send(ctx, "first")
		firstDone <- err
	}()

	// Wait until the first send is parked inside the assistant call.
	require.Eventually(t, func() bool {
		assistant.mu.Lock()
		defer assistant.mu.Unlock()
		return len(assistant.history) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := session.Send(ctx, "second")
	assert.ErrorIs(t, err, ErrRequestInFlight)

	close(assistant.block)
	require.NoError(t, <-firstDone)

	// Only the first turn made it into the history.
	history := session.History()
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Content)
}

func TestSendTransportFailureRecorded(t *testing.T) {
	assistant := &fakeAssistant{err: errors.New("connection refused")}
	session, _ := newSession(t, assistant, 5)

	_, err := session.Send(context.Background(), "hello")
	require.Error(t, err)

	history := session.History()
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
	assert.Contains(t, history[1].Content, "connection refused")

	// The session recovers for the next turn.
	assistant.err = nil
	assistant.reply = "back online"
	res, err := session.Send(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, "back online", res.Response)
}

// mirrorStore records appended messages and serves a preloaded history.
type mirrorStore struct {
	preload  []model.ChatMessage
	appended []model.ChatMessage
	fail     bool
}

func (m *mirrorStore) Append(ctx context.Context, msg model.ChatMessage) error {
	if m.fail {
		return errors.New("redis down")
	}
	m.appended = append(m.appended, msg)
	return nil
}

func (m *mirrorStore) Load(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	return m.preload, nil
}

func TestMirrorPreloadAndAppend(t *testing.T) {
	assistant := &fakeAssistant{reply: "ok"}
	session, _ := newSession(t, assistant, 5)

	mirror := &mirrorStore{preload: []model.ChatMessage{
		{Role: model.RoleUser, Content: "earlier"},
		{Role: model.RoleAssistant, Content: "earlier reply"},
	}}
	session.SetMirror(context.Background(), mirror)

	require.Len(t, session.History(), 2)

	_, err := session.Send(context.Background(), "new")
	require.NoError(t, err)

	assert.Len(t, session.History(), 4)
	assert.Len(t, mirror.appended, 2)
}

func TestMirrorFailureDoesNotBreakSend(t *testing.T) {
	assistant := &fakeAssistant{reply: "ok"}
	session, _ := newSession(t, assistant, 5)
	session.SetMirror(context.Background(), &mirrorStore{fail: true})

	res, err := session.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Response)
	assert.Len(t, session.History(), 2)
}
