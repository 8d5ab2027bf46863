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

const archiveColumns = `archive_id, archive_number, project_id, project_code, stage, title, file_standard,
       file_date, description, summary, tags, current_version, version_count, file_size,
       del_flag, status, remark, created_by, created_at, updated_at`

// ArchiveRepository handles archive metadata persistence.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs the repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// Create stores a new archive row.
func (r *ArchiveRepository) Create(ctx context.Context, archive *models.Archive) error {
	if archive.ID == "" {
		archive.ID = uuid.NewString()
	}
	if archive.CreatedAt.IsZero() {
		archive.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bams_archive
	(archive_id, archive_number, project_id, project_code, stage, title, file_standard,
	 file_date, description, summary, tags, current_version, version_count, file_size,
	 del_flag, status, remark, created_by, created_at, updated_at)
	VALUES (:archive_id, :archive_number, :project_id, :project_code, :stage, :title, :file_standard,
	 :file_date, :description, :summary, :tags, :current_version, :version_count, :file_size,
	 :del_flag, :status, :remark, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, archive); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	return nil
}

// GetByID retrieves one archive row regardless of its del_flag.
func (r *ArchiveRepository) GetByID(ctx context.Context, id string) (*models.Archive, error) {
	query := `SELECT ` + archiveColumns + ` FROM bams_archive WHERE archive_id = $1`
	var archive models.Archive
	if err := r.db.GetContext(ctx, &archive, query, id); err != nil {
		return nil, err
	}
	return &archive, nil
}

// NumberInUse reports whether an active archive already carries the number.
// Trashed archives keep their number but do not block reuse checks.
func (r *ArchiveRepository) NumberInUse(ctx context.Context, number string) (bool, error) {
	const query = `SELECT COUNT(*) FROM bams_archive WHERE archive_number = $1 AND del_flag = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, number, models.FlagActive); err != nil {
		return false, fmt.Errorf("check archive number: %w", err)
	}
	return count > 0, nil
}

// MaxSequence returns the highest numeric suffix issued for a project code,
// counting trashed archives so their numbers are never reissued.
func (r *ArchiveRepository) MaxSequence(ctx context.Context, projectCode string) (int, error) {
	const query = `SELECT COALESCE(MAX(NULLIF(substring(archive_number from '([0-9]+)$'), '')::int), 0)
	FROM bams_archive WHERE project_code = $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, projectCode); err != nil {
		return 0, fmt.Errorf("max archive sequence: %w", err)
	}
	return max, nil
}

// List returns archives applying filters. Trashed rows are excluded unless the
// filter asks for the recycle-bin view.
func (r *ArchiveRepository) List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + archiveColumns + ` FROM bams_archive`)
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 6)

	if filter.TrashedOnly {
		args = append(args, models.FlagTrashed)
	} else {
		args = append(args, models.FlagActive)
	}
	conditions = append(conditions, fmt.Sprintf("del_flag = $%d", len(args)))

	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.ProjectCode != "" {
		args = append(args, filter.ProjectCode)
		conditions = append(conditions, fmt.Sprintf("project_code = $%d", len(args)))
	}
	if filter.Stage != "" {
		args = append(args, filter.Stage)
		conditions = append(conditions, fmt.Sprintf("stage = $%d", len(args)))
	}
	if filter.FileStandard != "" {
		args = append(args, filter.FileStandard)
		conditions = append(conditions, fmt.Sprintf("file_standard = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Keyword != "" {
		args = append(args, "%"+filter.Keyword+"%")
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR archive_number ILIKE $%d)", len(args), len(args)))
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

	var records []models.Archive
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	return records, nil
}

// DistinctFileStandards returns the distinct file-standard codes covered by
// non-deleted archives of one project stage.
func (r *ArchiveRepository) DistinctFileStandards(ctx context.Context, projectID, stageID string) ([]string, error) {
	const query = `SELECT DISTINCT file_standard FROM bams_archive
	WHERE project_id = $1 AND stage = $2 AND del_flag = $3 AND file_standard <> ''`
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, projectID, stageID, models.FlagActive); err != nil {
		return nil, fmt.Errorf("distinct file standards: %w", err)
	}
	return codes, nil
}

// Update persists the mutable metadata fields of an archive.
func (r *ArchiveRepository) Update(ctx context.Context, archive *models.Archive) error {
	now := time.Now().UTC()
	archive.UpdatedAt = &now
	const query = `UPDATE bams_archive SET
	project_id = :project_id, project_code = :project_code, stage = :stage,
	title = :title, file_standard = :file_standard, file_date = :file_date,
	description = :description, summary = :summary, tags = :tags,
	status = :status, remark = :remark, updated_at = :updated_at
	WHERE archive_id = :archive_id`
	res, err := r.db.NamedExecContext(ctx, query, archive)
	if err != nil {
		return fmt.Errorf("update archive: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check archive update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateDelFlag flips the soft-delete flag of one archive.
func (r *ArchiveRepository) UpdateDelFlag(ctx context.Context, id, flag string) error {
	const query = `UPDATE bams_archive SET del_flag = $2, updated_at = $3 WHERE archive_id = $1`
	res, err := r.db.ExecContext(ctx, query, id, flag, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update archive del_flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check archive del_flag rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateDelFlagByProject cascades a soft-delete flag to all archives of a project.
func (r *ArchiveRepository) UpdateDelFlagByProject(ctx context.Context, projectID, flag string) error {
	const query = `UPDATE bams_archive SET del_flag = $2, updated_at = $3 WHERE project_id = $1`
	if _, err := r.db.ExecContext(ctx, query, projectID, flag, time.Now().UTC()); err != nil {
		return fmt.Errorf("cascade archive del_flag: %w", err)
	}
	return nil
}

// CountActive counts non-deleted archives.
func (r *ArchiveRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM bams_archive WHERE del_flag = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.FlagActive); err != nil {
		return 0, fmt.Errorf("count archives: %w", err)
	}
	return count, nil
}

// TypeDistribution groups non-deleted archives by file-standard code.
func (r *ArchiveRepository) TypeDistribution(ctx context.Context) ([]models.LabelCount, error) {
	const query = `SELECT file_standard AS label, COUNT(*) AS count FROM bams_archive
	WHERE del_flag = $1 AND file_standard <> '' GROUP BY file_standard ORDER BY count DESC, label ASC`
	var rows []models.LabelCount
	if err := r.db.SelectContext(ctx, &rows, query, models.FlagActive); err != nil {
		return nil, fmt.Errorf("archive type distribution: %w", err)
	}
	return rows, nil
}

// StageDistribution groups non-deleted archives by stage.
func (r *ArchiveRepository) StageDistribution(ctx context.Context) ([]models.LabelCount, error) {
	const query = `SELECT stage AS label, COUNT(*) AS count FROM bams_archive
	WHERE del_flag = $1 AND stage <> '' GROUP BY stage ORDER BY count DESC, label ASC`
	var rows []models.LabelCount
	if err := r.db.SelectContext(ctx, &rows, query, models.FlagActive); err != nil {
		return nil, fmt.Errorf("archive stage distribution: %w", err)
	}
	return rows, nil
}

// MonthlyCreated returns per-month creation counts of non-deleted archives
// over the trailing window, oldest month first. Months without archives are
// absent from the result.
func (r *ArchiveRepository) MonthlyCreated(ctx context.Context, months int) ([]models.LabelCount, error) {
	if months <= 0 {
		months = 6
	}
	const query = `SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS label, COUNT(*) AS count
	FROM bams_archive
	WHERE del_flag = $1 AND created_at >= date_trunc('month', NOW()) - ($2 - 1) * INTERVAL '1 month'
	GROUP BY 1 ORDER BY 1`
	var rows []models.LabelCount
	if err := r.db.SelectContext(ctx, &rows, query, models.FlagActive, months); err != nil {
		return nil, fmt.Errorf("archive monthly trend: %w", err)
	}
	return rows, nil
}

// Delete permanently removes an archive row.
func (r *ArchiveRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM bams_archive WHERE archive_id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	return nil
}
