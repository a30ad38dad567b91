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

// ProjectDraft carries the caller-supplied fields for a new project.
type ProjectDraft struct {
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Goal          string                `json:"goal"`
	Status        string                `json:"status"`
	StartDate     *time.Time            `json:"start_date"`
	TargetEndDate *time.Time            `json:"target_end_date"`
	Tags          []string              `json:"tags"`
	Color         string                `json:"color"`
	Context       *model.ProjectContext `json:"context"`
}

// ProjectUpdate is a partial update; only non-nil fields are applied.
type ProjectUpdate struct {
	Title         *string               `json:"title"`
	Description   *string               `json:"description"`
	Goal          *string               `json:"goal"`
	Status        *string               `json:"status"`
	StartDate     *time.Time            `json:"start_date"`
	TargetEndDate *time.Time            `json:"target_end_date"`
	ActualEndDate *time.Time            `json:"actual_end_date"`
	Tags          *[]string             `json:"tags"`
	Color         *string               `json:"color"`
	Context       *model.ProjectContext `json:"context"`
}

func (s *Store) CreateProject(ctx context.Context, draft ProjectDraft) (*model.Project, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	status := draft.Status
	if status == "" {
		status = model.ProjectStatusPlanning
	}
	if !model.ValidProjectStatus(status) {
		return nil, &ValidationError{Field: "status", Reason: "unknown project status " + status}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := &model.Project{
		ID:            uuid.NewString(),
		Title:         draft.Title,
		Description:   draft.Description,
		Goal:          draft.Goal,
		Status:        status,
		StartDate:     cloneTime(draft.StartDate),
		TargetEndDate: cloneTime(draft.TargetEndDate),
		Tags:          append([]string(nil), draft.Tags...),
		Color:         draft.Color,
		Context:       draft.Context,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	cp := s.checkpointLocked()
	s.projects[p.ID] = p
	s.assignSeq(p.ID)
	if err := s.commitLocked(ctx, cp); err != nil {
		return nil, err
	}

	s.logger.Info("Project created",
		zap.String("project_id", p.ID),
		zap.String("title", p.Title),
	)
	s.publishEvent("project.created", p)
	return cloneProject(p), nil
}

func (s *Store) UpdateProject(ctx context.Context, id string, upd ProjectUpdate) (*model.Project, error) {
	if upd.Status != nil && !model.ValidProjectStatus(*upd.Status) {
		return nil, &ValidationError{Field: "status", Reason: "unknown project status " + *upd.Status}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, &NotFoundError{Kind: "project", ID: id}
	}

	cp := s.checkpointLocked()
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Goal != nil {
		p.Goal = *upd.Goal
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.StartDate != nil {
		p.StartDate = cloneTime(upd.StartDate)
	}
	if upd.TargetEndDate != nil {
		p.TargetEndDate = cloneTime(upd.TargetEndDate)
	}
	if upd.ActualEndDate != nil {
		p.ActualEndDate = cloneTime(upd.ActualEndDate)
	}
	if upd.Tags != nil {
		p.Tags = append([]string(nil), (*upd.Tags)...)
	}
	if upd.Color != nil {
		p.Color = *upd.Color
	}
	if upd.Context != nil {
		p.Context = upd.Context
	}
	p.UpdatedAt = s.now()

	if err := s.commitLocked(ctx, cp); err != nil {
		return nil, err
	}
	return cloneProject(p), nil
}

// DeleteProject removes the project and cascade-deletes every milestone and
// task that belongs to it.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return &NotFoundError{Kind: "project", ID: id}
	}

	cp := s.checkpointLocked()
	delete(s.projects, id)
	delete(s.seq, id)

	removedMilestones := 0
	for mid, m := range s.milestones {
		if m.ProjectID == id {
			delete(s.milestones, mid)
			delete(s.seq, mid)
			delete(s.prevStatus, mid)
			removedMilestones++
		}
	}
	removedTasks := 0
	for tid, t := range s.tasks {
		if t.ProjectID == id {
			delete(s.tasks, tid)
			delete(s.seq, tid)
			delete(s.prevStatus, tid)
			removedTasks++
		}
	}

	if err := s.commitLocked(ctx, cp); err != nil {
		return err
	}

	s.logger.Info("Project deleted",
		zap.String("project_id", id),
		zap.Int("milestones_removed", removedMilestones),
		zap.Int("tasks_removed", removedTasks),
	)
	return nil
}

func (s *Store) GetProject(id string) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, &NotFoundError{Kind: "project", ID: id}
	}
	return cloneProject(p), nil
}

// ListProjects returns all projects in insertion order.
func (s *Store) ListProjects() []model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, *cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	return out
}
