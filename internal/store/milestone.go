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

type MilestoneDraft struct {
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Order       int        `json:"order"`
	DueDate     *time.Time `json:"due_date"`
	Status      string     `json:"status"`
}

type MilestoneUpdate struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Order       *int       `json:"order"`
	DueDate     *time.Time `json:"due_date"`
	Status      *string    `json:"status"`
}

func (s *Store) CreateMilestone(ctx context.Context, draft MilestoneDraft) (*model.Milestone, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	status := draft.Status
	if status == "" {
		status = model.MilestoneStatusTodo
	}
	if !model.ValidMilestoneStatus(status) {
		return nil, &ValidationError{Field: "status", Reason: "unknown milestone status " + status}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[draft.ProjectID]; !ok {
		return nil, &ValidationError{Field: "project_id", Reason: "project does not exist: " + draft.ProjectID}
	}

	now := s.now()
	m := &model.Milestone{
		ID:          uuid.NewString(),
		ProjectID:   draft.ProjectID,
		Title:       draft.Title,
		Description: draft.Description,
		Order:       draft.Order,
		DueDate:     cloneTime(draft.DueDate),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.Status == model.MilestoneStatusDone {
		m.CompletedAt = &now
	}

	cp := s.checkpointLocked()
	s.milestones[m.ID] = m
	s.assignSeq(m.ID)
	if err := s.commitLocked(ctx, cp); err != nil {
		return nil, err
	}

	s.logger.Info("Milestone created",
		zap.String("milestone_id", m.ID),
		zap.String("project_id", m.ProjectID),
		zap.String("title", m.Title),
	)
	return cloneMilestone(m), nil
}

func (s *Store) UpdateMilestone(ctx context.Context, id string, upd MilestoneUpdate) (*model.Milestone, error) {
	if upd.Status != nil && !model.ValidMilestoneStatus(*upd.Status) {
		return nil, &ValidationError{Field: "status", Reason: "unknown milestone status " + *upd.Status}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.milestones[id]
	if !ok {
		return nil, &NotFoundError{Kind: "milestone", ID: id}
	}

	cp := s.checkpointLocked()
	if upd.Title != nil {
		m.Title = *upd.Title
	}
	if upd.Description != nil {
		m.Description = *upd.Description
	}
	if upd.Order != nil {
		m.Order = *upd.Order
	}
	if upd.DueDate != nil {
		m.DueDate = cloneTime(upd.DueDate)
	}
	now := s.now()
	if upd.Status != nil && *upd.Status != m.Status {
		s.applyMilestoneStatusLocked(m, *upd.Status, now)
	}
	m.UpdatedAt = now

	if err := s.commitLocked(ctx, cp); err != nil {
		return nil, err
	}
	return cloneMilestone(m), nil
}

// applyMilestoneStatusLocked moves a milestone to status, keeping the
// completed_at field coherent with it.
func (s *Store) applyMilestoneStatusLocked(m *model.Milestone, status string, now time.Time) {
	if status == model.MilestoneStatusDone {
		if m.Status != model.MilestoneStatusDone {
			s.prevStatus[m.ID] = m.Status
		}
		if m.CompletedAt == nil {
			m.CompletedAt = &now
		}
	} else {
		m.CompletedAt = nil
	}
	m.Status = status
}

// DeleteMilestone removes the milestone and detaches (does not delete) every
// task that referenced it.
func (s *Store) DeleteMilestone(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.milestones[id]; !ok {
		return &NotFoundError{Kind: "milestone", ID: id}
	}

	cp := s.checkpointLocked()
	delete(s.milestones, id)
	delete(s.seq, id)
	delete(s.prevStatus, id)

	now := s.now()
	detached := 0
	for _, t := range s.tasks {
		if t.MilestoneID == id {
			t.MilestoneID = ""
			t.UpdatedAt = now
			detached++
		}
	}

	if err := s.commitLocked(ctx, cp); err != nil {
		return err
	}

	s.logger.Info("Milestone deleted",
		zap.String("milestone_id", id),
		zap.Int("tasks_detached", detached),
	)
	return nil
}

func (s *Store) GetMilestone(id string) (*model.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.milestones[id]
	if !ok {
		return nil, &NotFoundError{Kind: "milestone", ID: id}
	}
	return cloneMilestone(m), nil
}

// ListMilestones returns milestones, optionally filtered by project, ordered
// by their order field with creation order breaking ties.
func (s *Store) ListMilestones(projectID string) []model.Milestone {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Milestone, 0, len(s.milestones))
	for _, m := range s.milestones {
		if projectID != "" && m.ProjectID != projectID {
			continue
		}
		out = append(out, *cloneMilestone(m))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	return out
}

// ToggleMilestoneComplete flips a milestone between done and its last
// non-done status (todo when unknown).
func (s *Store) ToggleMilestoneComplete(ctx context.Context, id string) (*model.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.milestones[id]
	if !ok {
		return nil, &NotFoundError{Kind: "milestone", ID: id}
	}

	cp := s.checkpointLocked()
	now := s.now()
	if m.Status == model.MilestoneStatusDone {
		prev, ok := s.prevStatus[id]
		if !ok || prev == model.MilestoneStatusDone {
			prev = model.MilestoneStatusTodo
		}
		s.applyMilestoneStatusLocked(m, prev, now)
	} else {
		s.applyMilestoneStatusLocked(m, model.MilestoneStatusDone, now)
	}
	m.UpdatedAt = now

	if err := s.commitLocked(ctx, cp); err != nil {
		return nil, err
	}
	return cloneMilestone(m), nil
}
