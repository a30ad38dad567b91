package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"projectcompanion/internal/model"
	"projectcompanion/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresSnapshotRepository persists the full snapshot in three tables.
// Save replaces the previous snapshot in a single transaction, so readers
// never observe a partial write.
type PostgresSnapshotRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresSnapshotRepository(db *pgxpool.Pool, logger *zap.Logger) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{db: db, logger: logger}
}

// EnsureSchema creates the snapshot tables when they do not exist yet.
func (r *PostgresSnapshotRepository) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			ord INT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			goal TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			start_date TIMESTAMPTZ,
			target_end_date TIMESTAMPTZ,
			actual_end_date TIMESTAMPTZ,
			tags JSONB NOT NULL DEFAULT '[]',
			color TEXT NOT NULL DEFAULT '',
			context JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS milestones (
			id TEXT PRIMARY KEY,
			ord INT NOT NULL,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			phase_order INT NOT NULL DEFAULT 0,
			due_date TIMESTAMPTZ,
			status TEXT NOT NULL,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			ord INT NOT NULL,
			project_id TEXT NOT NULL,
			milestone_id TEXT NOT NULL DEFAULT '',
			parent_task_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			due_date TIMESTAMPTZ,
			start_date TIMESTAMPTZ,
			estimated_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
			actual_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
			dependencies JSONB NOT NULL DEFAULT '[]',
			blocked_by JSONB NOT NULL DEFAULT '[]',
			tags JSONB NOT NULL DEFAULT '[]',
			is_today BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			r.logger.Error("Failed to ensure snapshot schema", zap.Error(err))
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (r *PostgresSnapshotRepository) Save(ctx context.Context, snap *model.Snapshot) error {
	start := time.Now()
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"projects", "milestones", "tasks"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i, p := range snap.Projects {
		if err := r.insertProject(ctx, tx, i, p); err != nil {
			return err
		}
	}
	for i, m := range snap.Milestones {
		if err := r.insertMilestone(ctx, tx, i, m); err != nil {
			return err
		}
	}
	for i, t := range snap.Tasks {
		if err := r.insertTask(ctx, tx, i, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	metrics.RecordSnapshotSaveDuration("postgres", time.Since(start))
	r.logger.Debug("Snapshot saved",
		zap.Int("projects", len(snap.Projects)),
		zap.Int("milestones", len(snap.Milestones)),
		zap.Int("tasks", len(snap.Tasks)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (r *PostgresSnapshotRepository) insertProject(ctx context.Context, tx pgx.Tx, ord int, p model.Project) error {
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode project tags: %w", err)
	}
	var pctx []byte
	if p.Context != nil {
		pctx, err = json.Marshal(p.Context)
		if err != nil {
			return fmt.Errorf("failed to encode project context: %w", err)
		}
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO projects (id, ord, title, description, goal, status,
            start_date, target_end_date, actual_end_date, tags, color, context,
            created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    `, p.ID, ord, p.Title, p.Description, p.Goal, p.Status,
		p.StartDate, p.TargetEndDate, p.ActualEndDate, tags, p.Color, pctx,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project %s: %w", p.ID, err)
	}
	return nil
}

func (r *PostgresSnapshotRepository) insertMilestone(ctx context.Context, tx pgx.Tx, ord int, m model.Milestone) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO milestones (id, ord, project_id, title, description,
            phase_order, due_date, status, completed_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    `, m.ID, ord, m.ProjectID, m.Title, m.Description,
		m.Order, m.DueDate, m.Status, m.CompletedAt, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert milestone %s: %w", m.ID, err)
	}
	return nil
}

func (r *PostgresSnapshotRepository) insertTask(ctx context.Context, tx pgx.Tx, ord int, t model.Task) error {
	deps, err := json.Marshal(t.Dependencies)
	if err != nil {
		return fmt.Errorf("failed to encode task dependencies: %w", err)
	}
	blockedBy, err := json.Marshal(t.BlockedBy)
	if err != nil {
		return fmt.Errorf("failed to encode task blocked_by: %w", err)
	}
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode task tags: %w", err)
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO tasks (id, ord, project_id, milestone_id, parent_task_id,
            title, description, status, priority, due_date, start_date,
            estimated_hours, actual_hours, dependencies, blocked_by, tags,
            is_today, completed_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
    `, t.ID, ord, t.ProjectID, t.MilestoneID, t.ParentTaskID,
		t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.StartDate,
		t.EstimatedHours, t.ActualHours, deps, blockedBy, tags,
		t.IsToday, t.CompletedAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
	}
	return nil
}

func (r *PostgresSnapshotRepository) Load(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{
		Projects:   []model.Project{},
		Milestones: []model.Milestone{},
		Tasks:      []model.Task{},
	}

	rows, err := r.db.Query(ctx, `
        SELECT id, title, description, goal, status, start_date,
            target_end_date, actual_end_date, tags, color, context,
            created_at, updated_at
        FROM projects ORDER BY ord
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Project
		var tags []byte
		var pctx []byte
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Goal, &p.Status,
			&p.StartDate, &p.TargetEndDate, &p.ActualEndDate, &tags, &p.Color,
			&pctx, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		if err := json.Unmarshal(tags, &p.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode project tags: %w", err)
		}
		if len(pctx) > 0 {
			p.Context = &model.ProjectContext{}
			if err := json.Unmarshal(pctx, p.Context); err != nil {
				return nil, fmt.Errorf("failed to decode project context: %w", err)
			}
		}
		snap.Projects = append(snap.Projects, p)
	}
	rows.Close()

	rows, err = r.db.Query(ctx, `
        SELECT id, project_id, title, description, phase_order, due_date,
            status, completed_at, created_at, updated_at
        FROM milestones ORDER BY ord
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query milestones: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Milestone
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description,
			&m.Order, &m.DueDate, &m.Status, &m.CompletedAt,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan milestone row: %w", err)
		}
		snap.Milestones = append(snap.Milestones, m)
	}
	rows.Close()

	rows, err = r.db.Query(ctx, `
        SELECT id, project_id, milestone_id, parent_task_id, title,
            description, status, priority, due_date, start_date,
            estimated_hours, actual_hours, dependencies, blocked_by, tags,
            is_today, completed_at, created_at, updated_at
        FROM tasks ORDER BY ord
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t model.Task
		var deps, blockedBy, tags []byte
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.MilestoneID, &t.ParentTaskID,
			&t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate,
			&t.StartDate, &t.EstimatedHours, &t.ActualHours, &deps, &blockedBy,
			&tags, &t.IsToday, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		if err := json.Unmarshal(deps, &t.Dependencies); err != nil {
			return nil, fmt.Errorf("failed to decode task dependencies: %w", err)
		}
		if err := json.Unmarshal(blockedBy, &t.BlockedBy); err != nil {
			return nil, fmt.Errorf("failed to decode task blocked_by: %w", err)
		}
		if err := json.Unmarshal(tags, &t.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode task tags: %w", err)
		}
		snap.Tasks = append(snap.Tasks, t)
	}

	r.logger.Info("Snapshot loaded from PostgreSQL",
		zap.Int("projects", len(snap.Projects)),
		zap.Int("milestones", len(snap.Milestones)),
		zap.Int("tasks", len(snap.Tasks)),
	)
	return snap, nil
}
