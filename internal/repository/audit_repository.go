package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bams-platform/bams-api/internal/models"
)

const auditColumns = `log_id, archive_id, version_id, operation_type, operation_module, operation_desc,
       field_name, old_value, new_value, operator, operation_time, ip_address`

// AuditRepository appends and reads audit ledger rows. There is no update
// path; rows leave the table only when their owning archive is purged.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one ledger entry.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.ArchiveAuditLog) error {
	prepareAuditEntry(entry)
	const query = `INSERT INTO bams_archive_audit_log
	(log_id, archive_id, version_id, operation_type, operation_module, operation_desc,
	 field_name, old_value, new_value, operator, operation_time, ip_address)
	VALUES (:log_id, :archive_id, :version_id, :operation_type, :operation_module, :operation_desc,
	 :field_name, :old_value, :new_value, :operator, :operation_time, :ip_address)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// BatchInsert appends several ledger entries in one transaction.
func (r *AuditRepository) BatchInsert(ctx context.Context, entries []models.ArchiveAuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit batch: %w", err)
	}
	const query = `INSERT INTO bams_archive_audit_log
	(log_id, archive_id, version_id, operation_type, operation_module, operation_desc,
	 field_name, old_value, new_value, operator, operation_time, ip_address)
	VALUES (:log_id, :archive_id, :version_id, :operation_type, :operation_module, :operation_desc,
	 :field_name, :old_value, :new_value, :operator, :operation_time, :ip_address)`
	for i := range entries {
		prepareAuditEntry(&entries[i])
		if _, err := tx.NamedExecContext(ctx, query, entries[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert audit log batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit batch: %w", err)
	}
	return nil
}

// ListByArchive returns the full trail for an archive, oldest first.
func (r *AuditRepository) ListByArchive(ctx context.Context, archiveID string) ([]models.ArchiveAuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM bams_archive_audit_log WHERE archive_id = $1 ORDER BY operation_time ASC`
	var logs []models.ArchiveAuditLog
	if err := r.db.SelectContext(ctx, &logs, query, archiveID); err != nil {
		return nil, fmt.Errorf("list audit logs by archive: %w", err)
	}
	return logs, nil
}

// ListByVersion returns the trail for one version, oldest first.
func (r *AuditRepository) ListByVersion(ctx context.Context, versionID string) ([]models.ArchiveAuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM bams_archive_audit_log WHERE version_id = $1 ORDER BY operation_time ASC`
	var logs []models.ArchiveAuditLog
	if err := r.db.SelectContext(ctx, &logs, query, versionID); err != nil {
		return nil, fmt.Errorf("list audit logs by version: %w", err)
	}
	return logs, nil
}

// DeleteByArchive removes ledger rows for a purged archive.
func (r *AuditRepository) DeleteByArchive(ctx context.Context, archiveID string) error {
	const query = `DELETE FROM bams_archive_audit_log WHERE archive_id = $1`
	if _, err := r.db.ExecContext(ctx, query, archiveID); err != nil {
		return fmt.Errorf("delete audit logs: %w", err)
	}
	return nil
}

func prepareAuditEntry(entry *models.ArchiveAuditLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OperationTime.IsZero() {
		entry.OperationTime = time.Now().UTC()
	}
}
