package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bams-platform/bams-api/internal/models"
)

const templateColumns = `template_id, template_name, stage_count, status, del_flag,
       created_by, created_at, updated_at`

// TemplateRepository handles stage template persistence.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository constructs the repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// GetByID retrieves a template together with its stage details.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.StageTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM bams_stage_template WHERE template_id = $1 AND del_flag = $2`
	var template models.StageTemplate
	if err := r.db.GetContext(ctx, &template, query, id, models.FlagActive); err != nil {
		return nil, err
	}
	const detailQuery = `SELECT detail_id, template_id, stage_id, stage_display_name, stage_order, required_files
	FROM bams_stage_template_detail WHERE template_id = $1 ORDER BY stage_order ASC`
	if err := r.db.SelectContext(ctx, &template.Stages, detailQuery, id); err != nil {
		return nil, fmt.Errorf("list template stages: %w", err)
	}
	return &template, nil
}

// List returns non-deleted templates.
func (r *TemplateRepository) List(ctx context.Context) ([]models.StageTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM bams_stage_template WHERE del_flag = $1 ORDER BY created_at DESC`
	var templates []models.StageTemplate
	if err := r.db.SelectContext(ctx, &templates, query, models.FlagActive); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// Create stores a template and its stage details in one transaction.
func (r *TemplateRepository) Create(ctx context.Context, template *models.StageTemplate) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	if template.CreatedAt.IsZero() {
		template.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin template create: %w", err)
	}
	const insert = `INSERT INTO bams_stage_template
	(template_id, template_name, stage_count, status, del_flag, created_by, created_at, updated_at)
	VALUES (:template_id, :template_name, :stage_count, :status, :del_flag, :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, template); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert template: %w", err)
	}
	if err := insertTemplateStages(ctx, tx, template); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template create: %w", err)
	}
	return nil
}

// Update rewrites the template row and bulk-replaces its stage details.
func (r *TemplateRepository) Update(ctx context.Context, template *models.StageTemplate) error {
	now := time.Now().UTC()
	template.UpdatedAt = &now
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin template update: %w", err)
	}
	const update = `UPDATE bams_stage_template SET
	template_name = :template_name, stage_count = :stage_count, status = :status, updated_at = :updated_at
	WHERE template_id = :template_id`
	res, err := tx.NamedExecContext(ctx, update, template)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("check template update rows: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}
	const deleteDetails = `DELETE FROM bams_stage_template_detail WHERE template_id = $1`
	if _, err := tx.ExecContext(ctx, deleteDetails, template.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete template stages: %w", err)
	}
	if err := insertTemplateStages(ctx, tx, template); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template update: %w", err)
	}
	return nil
}

// SoftDeleteByIDs flags templates as deleted and removes their details.
func (r *TemplateRepository) SoftDeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin template delete: %w", err)
	}
	detailQuery, detailArgs, err := sqlx.In(`DELETE FROM bams_stage_template_detail WHERE template_id IN (?)`, ids)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("build template detail delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(detailQuery), detailArgs...); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete template details: %w", err)
	}
	mainQuery, mainArgs, err := sqlx.In(`UPDATE bams_stage_template SET del_flag = ?, updated_at = ? WHERE template_id IN (?)`,
		models.FlagTrashed, time.Now().UTC(), ids)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("build template delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(mainQuery), mainArgs...); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete templates: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template delete: %w", err)
	}
	return nil
}

func insertTemplateStages(ctx context.Context, tx *sqlx.Tx, template *models.StageTemplate) error {
	const insert = `INSERT INTO bams_stage_template_detail
	(detail_id, template_id, stage_id, stage_display_name, stage_order, required_files)
	VALUES (:detail_id, :template_id, :stage_id, :stage_display_name, :stage_order, :required_files)`
	for i := range template.Stages {
		if template.Stages[i].ID == "" {
			template.Stages[i].ID = uuid.NewString()
		}
		template.Stages[i].TemplateID = template.ID
		if _, err := tx.NamedExecContext(ctx, insert, template.Stages[i]); err != nil {
			return fmt.Errorf("insert template stage: %w", err)
		}
	}
	return nil
}
