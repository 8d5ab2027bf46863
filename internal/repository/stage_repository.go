package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bams-platform/bams-api/internal/models"
)

const stageColumns = `stage_row_id, project_id, stage_id, stage_display_name, stage_order,
       required_files, required_file_count, archived_file_count, completeness_rate`

// StageRepository handles per-project stage rows.
type StageRepository struct {
	db *sqlx.DB
}

// NewStageRepository constructs the repository.
func NewStageRepository(db *sqlx.DB) *StageRepository {
	return &StageRepository{db: db}
}

// ListByProject returns the stages of a project in checklist order.
func (r *StageRepository) ListByProject(ctx context.Context, projectID string) ([]models.ProjectStage, error) {
	query := `SELECT ` + stageColumns + ` FROM bams_project_stage WHERE project_id = $1 ORDER BY stage_order ASC`
	var stages []models.ProjectStage
	if err := r.db.SelectContext(ctx, &stages, query, projectID); err != nil {
		return nil, fmt.Errorf("list project stages: %w", err)
	}
	return stages, nil
}

// ReplaceForProject swaps a project's stage rows for the given set in one
// transaction (template application).
func (r *StageRepository) ReplaceForProject(ctx context.Context, projectID string, stages []models.ProjectStage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stage replace: %w", err)
	}
	const del = `DELETE FROM bams_project_stage WHERE project_id = $1`
	if _, err := tx.ExecContext(ctx, del, projectID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete project stages: %w", err)
	}
	const insert = `INSERT INTO bams_project_stage
	(stage_row_id, project_id, stage_id, stage_display_name, stage_order,
	 required_files, required_file_count, archived_file_count, completeness_rate)
	VALUES (:stage_row_id, :project_id, :stage_id, :stage_display_name, :stage_order,
	 :required_files, :required_file_count, :archived_file_count, :completeness_rate)`
	for i := range stages {
		if stages[i].ID == "" {
			stages[i].ID = uuid.NewString()
		}
		stages[i].ProjectID = projectID
		if _, err := tx.NamedExecContext(ctx, insert, stages[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert project stage: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stage replace: %w", err)
	}
	return nil
}

// UpdateStatistics persists the derived counters of one stage row.
func (r *StageRepository) UpdateStatistics(ctx context.Context, stageRowID string, archivedCount, rate int) error {
	const query = `UPDATE bams_project_stage SET archived_file_count = $2, completeness_rate = $3 WHERE stage_row_id = $1`
	if _, err := r.db.ExecContext(ctx, query, stageRowID, archivedCount, rate); err != nil {
		return fmt.Errorf("update stage statistics: %w", err)
	}
	return nil
}
