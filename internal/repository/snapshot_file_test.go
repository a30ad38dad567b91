package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"projectcompanion/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "companion.json")
	repo := NewFileSnapshotRepository(path, zap.NewNop())
	ctx := context.Background()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, 7)
	snap := &model.Snapshot{
		Projects: []model.Project{
			{ID: "p1", Title: "Website", Status: model.ProjectStatusActive, Tags: []string{"web"}, CreatedAt: now, UpdatedAt: now},
		},
		Milestones: []model.Milestone{
			{ID: "m1", ProjectID: "p1", Title: "MVP", Status: model.MilestoneStatusTodo, DueDate: &due, CreatedAt: now, UpdatedAt: now},
		},
		Tasks: []model.Task{
			{ID: "t1", ProjectID: "p1", MilestoneID: "m1", Title: "Design", Status: model.TaskStatusTodo,
				Priority: model.PriorityHigh, Dependencies: []string{}, BlockedBy: []string{}, Tags: []string{},
				CreatedAt: now, UpdatedAt: now},
			{ID: "t2", ProjectID: "p1", Title: "Build", Status: model.TaskStatusTodo,
				Priority: model.PriorityMedium, Dependencies: []string{"t1"}, BlockedBy: []string{}, Tags: []string{},
				CreatedAt: now, UpdatedAt: now},
		},
	}

	require.NoError(t, repo.Save(ctx, snap))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	// Order is part of the contract: tasks come back as written.
	assert.Equal(t, "t1", got.Tasks[0].ID)
	assert.Equal(t, "t2", got.Tasks[1].ID)
}

func TestFileSnapshotLoadMissingFile(t *testing.T) {
	repo := NewFileSnapshotRepository(filepath.Join(t.TempDir(), "nope.json"), zap.NewNop())

	snap, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Projects)
	assert.Empty(t, snap.Milestones)
	assert.Empty(t, snap.Tasks)
}

func TestFileSnapshotLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "companion.json")
	repo := NewFileSnapshotRepository(path, zap.NewNop())

	require.NoError(t, repo.Save(context.Background(), &model.Snapshot{
		Projects:   []model.Project{},
		Milestones: []model.Milestone{},
		Tasks:      []model.Task{},
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "companion.json", entries[0].Name())
}
