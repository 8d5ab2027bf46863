package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bams-platform/bams-api/internal/models"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

type auditStore interface {
	Insert(ctx context.Context, entry *models.ArchiveAuditLog) error
	BatchInsert(ctx context.Context, entries []models.ArchiveAuditLog) error
	ListByArchive(ctx context.Context, archiveID string) ([]models.ArchiveAuditLog, error)
	ListByVersion(ctx context.Context, versionID string) ([]models.ArchiveAuditLog, error)
}

// AuditService appends operation facts to the ledger and reads trails back.
// Entries are append-only; nothing in the service mutates or rewrites them.
type AuditService struct {
	store  auditStore
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(store auditStore, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{store: store, logger: logger}
}

// Record appends one ledger entry.
func (s *AuditService) Record(ctx context.Context, entry *models.ArchiveAuditLog) error {
	if err := s.store.Insert(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "record audit entry")
	}
	return nil
}

// RecordAll appends a group of entries produced by one logical operation.
func (s *AuditService) RecordAll(ctx context.Context, entries []models.ArchiveAuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.store.BatchInsert(ctx, entries); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "record audit entries")
	}
	return nil
}

// TrailByArchive returns the ledger for one archive, oldest first.
func (s *AuditService) TrailByArchive(ctx context.Context, archiveID string) ([]models.ArchiveAuditLog, error) {
	logs, err := s.store.ListByArchive(ctx, archiveID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read audit trail")
	}
	return logs, nil
}

// TrailByVersion returns the ledger entries tied to one version, oldest first.
func (s *AuditService) TrailByVersion(ctx context.Context, versionID string) ([]models.ArchiveAuditLog, error) {
	logs, err := s.store.ListByVersion(ctx, versionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read audit trail")
	}
	return logs, nil
}

// trackedField describes one archive metadata field whose changes produce
// field-level ledger entries.
type trackedField struct {
	name string
	read func(*models.Archive) string
}

var trackedArchiveFields = []trackedField{
	{"title", func(a *models.Archive) string { return a.Title }},
	{"file_date", func(a *models.Archive) string { return formatFileDate(a.FileDate) }},
	{"description", func(a *models.Archive) string { return a.Description }},
	{"tags", func(a *models.Archive) string { return strings.Join(a.Tags, ",") }},
	{"summary", func(a *models.Archive) string { return a.Summary }},
	{"status", func(a *models.Archive) string { return a.Status }},
	{"remark", func(a *models.Archive) string { return a.Remark }},
}

// DiffArchives produces one ledger entry per tracked field whose value changed
// between the stored and the updated archive. Unchanged fields produce
// nothing, so an update touching two fields yields exactly two entries.
func DiffArchives(before, after *models.Archive, operator models.Operator) []models.ArchiveAuditLog {
	var entries []models.ArchiveAuditLog
	for _, field := range trackedArchiveFields {
		oldValue := field.read(before)
		newValue := field.read(after)
		if oldValue == newValue {
			continue
		}
		entries = append(entries, models.ArchiveAuditLog{
			ArchiveID:       strPtr(before.ID),
			OperationType:   models.OpUpdate,
			OperationModule: models.ModuleMetadata,
			OperationDesc:   fmt.Sprintf("field %s changed", field.name),
			FieldName:       strPtr(field.name),
			OldValue:        strPtr(oldValue),
			NewValue:        strPtr(newValue),
			Operator:        operator.Name,
			IPAddress:       operator.IPAddress,
		})
	}
	return entries
}

func formatFileDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func strPtr(s string) *string {
	return &s
}
