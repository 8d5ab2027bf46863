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

const versionColumns = `version_id, archive_id, version_number, file_name, file_path, file_type,
       file_size, file_hash, is_current, version_remark, upload_by, upload_time`

// VersionRepository handles archive version persistence. Mutations that touch
// the is_current flag always run inside one transaction together with the
// owning archive's denormalized fields, so no reader can observe zero or two
// current versions.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository constructs the repository.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// GetByID retrieves one version row.
func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.ArchiveVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM bams_archive_version WHERE version_id = $1`
	var version models.ArchiveVersion
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		return nil, err
	}
	return &version, nil
}

// ListByArchive returns all versions of an archive in upload order.
func (r *VersionRepository) ListByArchive(ctx context.Context, archiveID string) ([]models.ArchiveVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM bams_archive_version WHERE archive_id = $1 ORDER BY upload_time ASC`
	var versions []models.ArchiveVersion
	if err := r.db.SelectContext(ctx, &versions, query, archiveID); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// Current returns the version flagged current for an archive, or sql.ErrNoRows.
func (r *VersionRepository) Current(ctx context.Context, archiveID string) (*models.ArchiveVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM bams_archive_version WHERE archive_id = $1 AND is_current = TRUE`
	var version models.ArchiveVersion
	if err := r.db.GetContext(ctx, &version, query, archiveID); err != nil {
		return nil, err
	}
	return &version, nil
}

// CreateAsCurrent inserts a new version as current, demotes the previous
// holder and refreshes the archive's denormalized version fields, all in one
// transaction.
func (r *VersionRepository) CreateAsCurrent(ctx context.Context, version *models.ArchiveVersion, versionCount int) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.UploadTime.IsZero() {
		version.UploadTime = time.Now().UTC()
	}
	version.IsCurrent = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version insert: %w", err)
	}
	const demote = `UPDATE bams_archive_version SET is_current = FALSE WHERE archive_id = $1 AND is_current = TRUE`
	if _, err := tx.ExecContext(ctx, demote, version.ArchiveID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("demote current version: %w", err)
	}
	const insert = `INSERT INTO bams_archive_version
	(version_id, archive_id, version_number, file_name, file_path, file_type,
	 file_size, file_hash, is_current, version_remark, upload_by, upload_time)
	VALUES (:version_id, :archive_id, :version_number, :file_name, :file_path, :file_type,
	 :file_size, :file_hash, :is_current, :version_remark, :upload_by, :upload_time)`
	if _, err := tx.NamedExecContext(ctx, insert, version); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert version: %w", err)
	}
	const denorm = `UPDATE bams_archive SET current_version = $2, version_count = $3, file_size = $4, updated_at = $5
	WHERE archive_id = $1`
	if _, err := tx.ExecContext(ctx, denorm, version.ArchiveID, version.VersionNumber, versionCount, version.FileSize, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update archive version info: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version insert: %w", err)
	}
	return nil
}

// SwitchCurrent flips the current flag to the target version and updates the
// archive's denormalized pointer and size in one transaction.
func (r *VersionRepository) SwitchCurrent(ctx context.Context, archiveID, versionID, versionNumber string, fileSize int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version switch: %w", err)
	}
	const demote = `UPDATE bams_archive_version SET is_current = FALSE WHERE archive_id = $1 AND is_current = TRUE`
	if _, err := tx.ExecContext(ctx, demote, archiveID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("demote current version: %w", err)
	}
	const promote = `UPDATE bams_archive_version SET is_current = TRUE WHERE version_id = $1 AND archive_id = $2`
	res, err := tx.ExecContext(ctx, promote, versionID, archiveID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("promote version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("check promote rows: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}
	const denorm = `UPDATE bams_archive SET current_version = $2, file_size = $3, updated_at = $4 WHERE archive_id = $1`
	if _, err := tx.ExecContext(ctx, denorm, archiveID, versionNumber, fileSize, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update archive version info: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version switch: %w", err)
	}
	return nil
}

// UpdateRemark persists a new version remark.
func (r *VersionRepository) UpdateRemark(ctx context.Context, versionID, remark string) error {
	const query = `UPDATE bams_archive_version SET version_remark = $2 WHERE version_id = $1`
	res, err := r.db.ExecContext(ctx, query, versionID, remark)
	if err != nil {
		return fmt.Errorf("update version remark: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check remark rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteWithRecount removes a version row and refreshes the owning archive's
// version_count from the surviving rows, in one transaction.
func (r *VersionRepository) DeleteWithRecount(ctx context.Context, versionID, archiveID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version delete: %w", err)
	}
	const del = `DELETE FROM bams_archive_version WHERE version_id = $1`
	if _, err := tx.ExecContext(ctx, del, versionID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete version: %w", err)
	}
	const recount = `UPDATE bams_archive SET version_count =
	(SELECT COUNT(*) FROM bams_archive_version WHERE archive_id = $1), updated_at = $2
	WHERE archive_id = $1`
	if _, err := tx.ExecContext(ctx, recount, archiveID, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("recount versions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version delete: %w", err)
	}
	return nil
}

// DeleteByArchive removes all version rows of an archive (purge path).
func (r *VersionRepository) DeleteByArchive(ctx context.Context, archiveID string) error {
	const query = `DELETE FROM bams_archive_version WHERE archive_id = $1`
	if _, err := r.db.ExecContext(ctx, query, archiveID); err != nil {
		return fmt.Errorf("delete versions by archive: %w", err)
	}
	return nil
}
