package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bams-platform/bams-api/internal/models"
)

const projectColumns = `project_id, project_code, project_name, template_id, template_name,
       total_required_files, actual_archived_files, completeness_rate, del_flag,
       created_by, created_at, updated_at`

// ProjectRepository handles project persistence.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create stores a new project row.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bams_project
	(project_id, project_code, project_name, template_id, template_name,
	 total_required_files, actual_archived_files, completeness_rate, del_flag,
	 created_by, created_at, updated_at)
	VALUES (:project_id, :project_code, :project_name, :template_id, :template_name,
	 :total_required_files, :actual_archived_files, :completeness_rate, :del_flag,
	 :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetByID retrieves one project row.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM bams_project WHERE project_id = $1`
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// List returns non-deleted projects matching the filter.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + projectColumns + ` FROM bams_project`)
	args := []interface{}{models.FlagActive}
	conditions := []string{"del_flag = $1"}

	if filter.Keyword != "" {
		args = append(args, "%"+filter.Keyword+"%")
		conditions = append(conditions, fmt.Sprintf("(project_name ILIKE $%d OR project_code ILIKE $%d)", len(args), len(args)))
	}

	builder.WriteString(" WHERE ")
	builder.WriteString(strings.Join(conditions, " AND "))
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var records []models.Project
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return records, nil
}

// MaxCodeSequence returns the highest numeric suffix among issued project
// codes, or 0 when none exists yet. The suffix is compared numerically so
// XMB1000 outranks XMB999.
func (r *ProjectRepository) MaxCodeSequence(ctx context.Context) (int, error) {
	const query = `SELECT COALESCE(MAX(substring(project_code FROM 'XMB([0-9]+)')::int), 0)
	FROM bams_project WHERE project_code ~ '^XMB[0-9]+$'`
	var seq int
	if err := r.db.GetContext(ctx, &seq, query); err != nil {
		return 0, fmt.Errorf("max project code sequence: %w", err)
	}
	return seq, nil
}

// CodeExists reports whether a project code is already taken.
func (r *ProjectRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT COUNT(*) FROM bams_project WHERE project_code = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, code); err != nil {
		return false, fmt.Errorf("check project code: %w", err)
	}
	return count > 0, nil
}

// Update persists the mutable project fields.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	now := time.Now().UTC()
	project.UpdatedAt = &now
	const query = `UPDATE bams_project SET
	project_name = :project_name, template_id = :template_id, template_name = :template_name,
	updated_at = :updated_at
	WHERE project_id = :project_id`
	res, err := r.db.NamedExecContext(ctx, query, project)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check project update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatistics persists the derived rollup fields of a project.
func (r *ProjectRepository) UpdateStatistics(ctx context.Context, projectID string, totalRequired, totalArchived, rate int) error {
	const query = `UPDATE bams_project SET
	total_required_files = $2, actual_archived_files = $3, completeness_rate = $4, updated_at = $5
	WHERE project_id = $1`
	if _, err := r.db.ExecContext(ctx, query, projectID, totalRequired, totalArchived, rate, time.Now().UTC()); err != nil {
		return fmt.Errorf("update project statistics: %w", err)
	}
	return nil
}

// UpdateTemplate records the template applied to a project and resets its
// rollup totals to the template's baseline.
func (r *ProjectRepository) UpdateTemplate(ctx context.Context, projectID, templateID, templateName string, totalRequired int) error {
	const query = `UPDATE bams_project SET
	template_id = $2, template_name = $3, total_required_files = $4,
	actual_archived_files = 0, completeness_rate = 0, updated_at = $5
	WHERE project_id = $1`
	if _, err := r.db.ExecContext(ctx, query, projectID, templateID, templateName, totalRequired, time.Now().UTC()); err != nil {
		return fmt.Errorf("update project template: %w", err)
	}
	return nil
}

// CountActive counts non-deleted projects.
func (r *ProjectRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM bams_project WHERE del_flag = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.FlagActive); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return count, nil
}

// CountOngoing counts non-deleted projects still short of full completeness.
func (r *ProjectRepository) CountOngoing(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM bams_project WHERE del_flag = $1 AND completeness_rate < 100`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.FlagActive); err != nil {
		return 0, fmt.Errorf("count ongoing projects: %w", err)
	}
	return count, nil
}

// AvgCompleteness returns the rounded mean completeness rate across
// non-deleted projects, 0 when there are none.
func (r *ProjectRepository) AvgCompleteness(ctx context.Context) (int, error) {
	const query = `SELECT COALESCE(ROUND(AVG(completeness_rate)), 0)::int FROM bams_project WHERE del_flag = $1`
	var avg int
	if err := r.db.GetContext(ctx, &avg, query, models.FlagActive); err != nil {
		return 0, fmt.Errorf("average project completeness: %w", err)
	}
	return avg, nil
}

// CompletenessDistribution buckets non-deleted projects by completeness band.
func (r *ProjectRepository) CompletenessDistribution(ctx context.Context) ([]models.LabelCount, error) {
	const query = `SELECT CASE
		WHEN completeness_rate >= 100 THEN '100'
		WHEN completeness_rate >= 76 THEN '76-99'
		WHEN completeness_rate >= 51 THEN '51-75'
		WHEN completeness_rate >= 26 THEN '26-50'
		ELSE '0-25' END AS label, COUNT(*) AS count
	FROM bams_project WHERE del_flag = $1 GROUP BY 1 ORDER BY 1`
	var rows []models.LabelCount
	if err := r.db.SelectContext(ctx, &rows, query, models.FlagActive); err != nil {
		return nil, fmt.Errorf("project completeness distribution: %w", err)
	}
	return rows, nil
}

// SoftDeleteByIDs flags projects as trashed.
func (r *ProjectRepository) SoftDeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE bams_project SET del_flag = ?, updated_at = ? WHERE project_id IN (?)`,
		models.FlagTrashed, time.Now().UTC(), ids)
	if err != nil {
		return fmt.Errorf("build project delete query: %w", err)
	}
	query = r.db.Rebind(query)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("soft delete projects: %w", err)
	}
	return nil
}
