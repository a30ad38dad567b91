// Package chat holds the conversation session: one user, one ordered
// history, at most one assistant request in flight.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"projectcompanion/internal/actions"
	"projectcompanion/internal/model"
	"projectcompanion/internal/prompt"
	"projectcompanion/internal/store"
	"projectcompanion/pkg/metrics"

	"go.uber.org/zap"
)

// ErrRequestInFlight is returned when a send arrives while a previous send
// is still waiting on the assistant.
var ErrRequestInFlight = errors.New("a chat request is already in flight")

// Assistant is the upstream chat completion dependency.
type Assistant interface {
	Send(ctx context.Context, systemContext string, history []model.ChatMessage, message string) (string, error)
}

// HistoryStore is an optional mirror of the conversation history. The
// in-memory session stays authoritative; mirror failures are logged and
// ignored.
type HistoryStore interface {
	Append(ctx context.Context, msg model.ChatMessage) error
	Load(ctx context.Context, limit int) ([]model.ChatMessage, error)
}

// SendResult is what one chat turn produced: the display text with any
// action block stripped, plus the reconciliation outcome.
type SendResult struct {
	Response string                  `json:"response"`
	Applied  []actions.AppliedAction `json:"applied"`
	Failures []actions.Failure       `json:"failures"`
}

type Session struct {
	mu           sync.Mutex
	sendMu       sync.Mutex
	history      []model.ChatMessage
	historyLimit int

	st         *store.Store
	assistant  Assistant
	reconciler *actions.Reconciler
	mirror     HistoryStore
	logger     *zap.Logger
	now        func() time.Time
}

func NewSession(st *store.Store, assistant Assistant, reconciler *actions.Reconciler, historyLimit int, logger *zap.Logger) *Session {
	if historyLimit <= 0 {
		historyLimit = 5
	}
	return &Session{
		history:      []model.ChatMessage{},
		historyLimit: historyLimit,
		st:           st,
		assistant:    assistant,
		reconciler:   reconciler,
		logger:       logger,
		now:          time.Now,
	}
}

// SetMirror attaches an optional history mirror and preloads the stored
// history into the session.
func (s *Session) SetMirror(ctx context.Context, mirror HistoryStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = mirror
	if mirror == nil {
		return
	}
	msgs, err := mirror.Load(ctx, 0)
	if err != nil {
		s.logger.Warn("Failed to preload chat history from mirror", zap.Error(err))
		return
	}
	if len(msgs) > 0 {
		s.history = msgs
		s.logger.Info("Chat history restored from mirror", zap.Int("messages", len(msgs)))
	}
}

// History returns a copy of the full in-memory history, oldest first.
func (s *Session) History() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

// Clear drops the in-memory history.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.history[:0]
}

// Send runs one chat turn: record the user message, call the assistant with
// a bounded history window snapshotted before the network call, reconcile
// any action block in the reply, and record the stripped reply.
//
// Only one send may be in flight; a concurrent send fails fast with
// ErrRequestInFlight rather than queueing.
func (s *Session) Send(ctx context.Context, message string) (*SendResult, error) {
	if !s.sendMu.TryLock() {
		metrics.IncrementChatRequest("rejected")
		return nil, ErrRequestInFlight
	}
	defer s.sendMu.Unlock()

	// Window the history before calling out, so messages appended by this
	// turn never leak into its own request.
	window := s.historyWindow()
	systemContext := prompt.SystemContext(s.st.ListTasks(store.TaskFilter{}))

	s.append(ctx, model.ChatMessage{Role: model.RoleUser, Content: message, Timestamp: s.now()})

	raw, err := s.assistant.Send(ctx, systemContext, window, message)
	if err != nil {
		metrics.IncrementChatRequest("transport_error")
		s.logger.Error("Assistant call failed", zap.Error(err))
		errMsg := fmt.Sprintf("Sorry, I could not reach the assistant: %v", err)
		s.append(ctx, model.ChatMessage{Role: model.RoleAssistant, Content: errMsg, Timestamp: s.now()})
		return nil, fmt.Errorf("assistant call failed: %w", err)
	}

	res, procErr := s.reconciler.ProcessAssistantReply(ctx, raw)
	display := res.DisplayText
	if procErr != nil {
		s.logger.Warn("Assistant reply had an unusable action block, no actions applied",
			zap.Error(procErr))
	}

	s.append(ctx, model.ChatMessage{Role: model.RoleAssistant, Content: display, Timestamp: s.now()})

	metrics.IncrementChatRequest("ok")
	s.logger.Info("Chat turn completed",
		zap.Int("applied", len(res.Applied)),
		zap.Int("failed", len(res.Failures)),
	)
	return &SendResult{
		Response: display,
		Applied:  res.Applied,
		Failures: res.Failures,
	}, nil
}

// historyWindow returns the most recent historyLimit messages.
func (s *Session) historyWindow() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.history) - s.historyLimit
	if start < 0 {
		start = 0
	}
	out := make([]model.ChatMessage, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

func (s *Session) append(ctx context.Context, msg model.ChatMessage) {
	s.mu.Lock()
	s.history = append(s.history, msg)
	mirror := s.mirror
	s.mu.Unlock()

	if mirror != nil {
		if err := mirror.Append(ctx, msg); err != nil {
			s.logger.Warn("Failed to mirror chat message", zap.Error(err))
		}
	}
}
