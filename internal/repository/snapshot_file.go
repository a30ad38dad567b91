package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"projectcompanion/internal/model"
	"projectcompanion/pkg/metrics"

	"go.uber.org/zap"
)

// FileSnapshotRepository persists the snapshot as a single JSON document on
// disk. Writes go through a temp file and rename, so a crash mid-write leaves
// the previous snapshot intact.
type FileSnapshotRepository struct {
	path   string
	logger *zap.Logger
}

func NewFileSnapshotRepository(path string, logger *zap.Logger) *FileSnapshotRepository {
	return &FileSnapshotRepository{path: path, logger: logger}
}

func (r *FileSnapshotRepository) Load(ctx context.Context) (*model.Snapshot, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Info("No snapshot file found, starting empty", zap.String("path", r.path))
			return &model.Snapshot{
				Projects:   []model.Project{},
				Milestones: []model.Milestone{},
				Tasks:      []model.Task{},
			}, nil
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot file: %w", err)
	}
	if snap.Projects == nil {
		snap.Projects = []model.Project{}
	}
	if snap.Milestones == nil {
		snap.Milestones = []model.Milestone{}
	}
	if snap.Tasks == nil {
		snap.Tasks = []model.Task{}
	}

	r.logger.Info("Snapshot loaded from file",
		zap.String("path", r.path),
		zap.Int("projects", len(snap.Projects)),
		zap.Int("milestones", len(snap.Milestones)),
		zap.Int("tasks", len(snap.Tasks)),
	)
	return &snap, nil
}

func (r *FileSnapshotRepository) Save(ctx context.Context, snap *model.Snapshot) error {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}

	metrics.RecordSnapshotSaveDuration("file", time.Since(start))
	r.logger.Debug("Snapshot saved",
		zap.String("path", r.path),
		zap.Int("tasks", len(snap.Tasks)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
