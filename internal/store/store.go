package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"projectcompanion/internal/model"

	"go.uber.org/zap"
)

// Persistence is the durable snapshot collaborator. Save must leave a
// complete, self-consistent snapshot behind; Load returns the last one saved
// (or an empty snapshot on first run).
type Persistence interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Save(ctx context.Context, snap *model.Snapshot) error
}

// EventPublisher receives domain events after a mutation has been persisted.
// A nil publisher disables event publishing.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// Store is the sole owner of the project / milestone / task collections.
// Every mutation is written through to the Persistence collaborator before it
// is acknowledged to the caller; if the save fails the in-memory state is
// rolled back and the error returned.
type Store struct {
	mu sync.Mutex

	projects   map[string]*model.Project
	milestones map[string]*model.Milestone
	tasks      map[string]*model.Task

	// seq records insertion order per entity id. Snapshots are written in
	// this order, so it survives a restart.
	seq     map[string]int
	nextSeq int

	// prevStatus remembers the last non-done status per task/milestone id so
	// ToggleComplete can restore it. In-memory only; after a restart the
	// toggle falls back to "todo".
	prevStatus map[string]string

	persist   Persistence
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func New(persist Persistence, publisher EventPublisher, logger *zap.Logger) *Store {
	return &Store{
		projects:   make(map[string]*model.Project),
		milestones: make(map[string]*model.Milestone),
		tasks:      make(map[string]*model.Task),
		seq:        make(map[string]int),
		prevStatus: make(map[string]string),
		persist:    persist,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Load hydrates the store from the persistence collaborator. Intended to be
// called once at startup, before the store is handed to other components.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.persist.Load(ctx)
	if err != nil {
		s.logger.Error("Failed to load snapshot", zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects = make(map[string]*model.Project, len(snap.Projects))
	s.milestones = make(map[string]*model.Milestone, len(snap.Milestones))
	s.tasks = make(map[string]*model.Task, len(snap.Tasks))
	s.seq = make(map[string]int)
	s.nextSeq = 0

	for i := range snap.Projects {
		p := cloneProject(&snap.Projects[i])
		s.projects[p.ID] = p
		s.assignSeq(p.ID)
	}
	for i := range snap.Milestones {
		m := cloneMilestone(&snap.Milestones[i])
		s.milestones[m.ID] = m
		s.assignSeq(m.ID)
	}
	for i := range snap.Tasks {
		t := cloneTask(&snap.Tasks[i])
		s.tasks[t.ID] = t
		s.assignSeq(t.ID)
	}

	s.logger.Info("Store loaded",
		zap.Int("projects", len(s.projects)),
		zap.Int("milestones", len(s.milestones)),
		zap.Int("tasks", len(s.tasks)),
	)
	return nil
}

func (s *Store) assignSeq(id string) {
	s.seq[id] = s.nextSeq
	s.nextSeq++
}

// Snapshot returns a copy of the full state, tasks and milestones in
// insertion order.
func (s *Store) Snapshot() *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() *model.Snapshot {
	snap := &model.Snapshot{
		Projects:   make([]model.Project, 0, len(s.projects)),
		Milestones: make([]model.Milestone, 0, len(s.milestones)),
		Tasks:      make([]model.Task, 0, len(s.tasks)),
	}
	for _, p := range s.projects {
		snap.Projects = append(snap.Projects, *cloneProject(p))
	}
	for _, m := range s.milestones {
		snap.Milestones = append(snap.Milestones, *cloneMilestone(m))
	}
	for _, t := range s.tasks {
		snap.Tasks = append(snap.Tasks, *cloneTask(t))
	}
	sort.Slice(snap.Projects, func(i, j int) bool {
		return s.seq[snap.Projects[i].ID] < s.seq[snap.Projects[j].ID]
	})
	sort.Slice(snap.Milestones, func(i, j int) bool {
		return s.seq[snap.Milestones[i].ID] < s.seq[snap.Milestones[j].ID]
	})
	sort.Slice(snap.Tasks, func(i, j int) bool {
		return s.seq[snap.Tasks[i].ID] < s.seq[snap.Tasks[j].ID]
	})
	return snap
}

// checkpoint captures the mutable state so a failed save can be undone.
type checkpoint struct {
	projects   map[string]*model.Project
	milestones map[string]*model.Milestone
	tasks      map[string]*model.Task
	seq        map[string]int
	nextSeq    int
	prevStatus map[string]string
}

func (s *Store) checkpointLocked() *checkpoint {
	cp := &checkpoint{
		projects:   make(map[string]*model.Project, len(s.projects)),
		milestones: make(map[string]*model.Milestone, len(s.milestones)),
		tasks:      make(map[string]*model.Task, len(s.tasks)),
		seq:        make(map[string]int, len(s.seq)),
		nextSeq:    s.nextSeq,
		prevStatus: make(map[string]string, len(s.prevStatus)),
	}
	for id, p := range s.projects {
		cp.projects[id] = cloneProject(p)
	}
	for id, m := range s.milestones {
		cp.milestones[id] = cloneMilestone(m)
	}
	for id, t := range s.tasks {
		cp.tasks[id] = cloneTask(t)
	}
	for id, n := range s.seq {
		cp.seq[id] = n
	}
	for id, st := range s.prevStatus {
		cp.prevStatus[id] = st
	}
	return cp
}

func (s *Store) restoreLocked(cp *checkpoint) {
	s.projects = cp.projects
	s.milestones = cp.milestones
	s.tasks = cp.tasks
	s.seq = cp.seq
	s.nextSeq = cp.nextSeq
	s.prevStatus = cp.prevStatus
}

// commitLocked writes the current state through to persistence. On failure
// the state is restored from cp and the error returned; the caller must not
// acknowledge the mutation.
func (s *Store) commitLocked(ctx context.Context, cp *checkpoint) error {
	if err := s.persist.Save(ctx, s.snapshotLocked()); err != nil {
		s.logger.Error("Snapshot save failed, rolling back", zap.Error(err))
		s.restoreLocked(cp)
		return err
	}
	return nil
}

// publishEvent emits a domain event after a successful commit. Publishing is
// best effort: a broker failure is logged, never surfaced to the caller.
func (s *Store) publishEvent(routingKey string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(routingKey, payload); err != nil {
		s.logger.Error("Failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}

func cloneProject(p *model.Project) *model.Project {
	cp := *p
	cp.Tags = append([]string(nil), p.Tags...)
	cp.StartDate = cloneTime(p.StartDate)
	cp.TargetEndDate = cloneTime(p.TargetEndDate)
	cp.ActualEndDate = cloneTime(p.ActualEndDate)
	if p.Context != nil {
		ctx := *p.Context
		ctx.Constraints = append([]string(nil), p.Context.Constraints...)
		ctx.Resources = append([]string(nil), p.Context.Resources...)
		cp.Context = &ctx
	}
	return &cp
}

func cloneMilestone(m *model.Milestone) *model.Milestone {
	cm := *m
	cm.DueDate = cloneTime(m.DueDate)
	cm.CompletedAt = cloneTime(m.CompletedAt)
	return &cm
}

func cloneTask(t *model.Task) *model.Task {
	ct := *t
	ct.Dependencies = append([]string(nil), t.Dependencies...)
	ct.BlockedBy = append([]string(nil), t.BlockedBy...)
	ct.Tags = append([]string(nil), t.Tags...)
	ct.DueDate = cloneTime(t.DueDate)
	ct.StartDate = cloneTime(t.StartDate)
	ct.CompletedAt = cloneTime(t.CompletedAt)
	return &ct
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
