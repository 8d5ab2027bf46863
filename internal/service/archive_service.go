package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bams-platform/bams-api/internal/models"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

type archiveStore interface {
	Create(ctx context.Context, archive *models.Archive) error
	GetByID(ctx context.Context, id string) (*models.Archive, error)
	NumberInUse(ctx context.Context, number string) (bool, error)
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, error)
	Update(ctx context.Context, archive *models.Archive) error
	UpdateDelFlag(ctx context.Context, id, flag string) error
	Delete(ctx context.Context, id string) error
}

type archiveVersionAccessor interface {
	ListByArchive(ctx context.Context, archiveID string) ([]models.ArchiveVersion, error)
	DeleteByArchive(ctx context.Context, archiveID string) error
}

type archiveProjectReader interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
}

type numberAllocator interface {
	ArchiveNumber(ctx context.Context, projectCode string) (string, error)
}

type tagApplier interface {
	ApplyTagChanges(ctx context.Context, before, after models.StringList) error
}

type statsRecomputer interface {
	RecomputeProject(ctx context.Context, projectID string) error
}

type auditBatchRecorder interface {
	Record(ctx context.Context, entry *models.ArchiveAuditLog) error
	RecordAll(ctx context.Context, entries []models.ArchiveAuditLog) error
}

type auditPurger interface {
	DeleteByArchive(ctx context.Context, archiveID string) error
}

type archiveFileRemover interface {
	Delete(relPath string) error
}

// ArchiveInput carries the caller-editable metadata of an archive. An
// ArchiveNumber is honored on create after a uniqueness check; left empty, the
// number is drawn from the project's sequence.
type ArchiveInput struct {
	ArchiveNumber string
	Stage         string
	Title         string
	FileStandard  string
	FileDate      *time.Time
	Description   string
	Summary       string
	Tags          models.StringList
	Status        string
	Remark        string
}

// ArchiveService manages archive records: numbered creation, metadata updates
// with field-level audit, recycle-bin moves and permanent purge. Statistics of
// the owning project are refreshed after every archive-level mutation.
type ArchiveService struct {
	archives  archiveStore
	versions  archiveVersionAccessor
	projects  archiveProjectReader
	allocator numberAllocator
	tags      tagApplier
	stats     statsRecomputer
	audit     auditBatchRecorder
	auditRows auditPurger
	storage   archiveFileRemover
	logger    *zap.Logger
}

// NewArchiveService constructs the service.
func NewArchiveService(archives archiveStore, versions archiveVersionAccessor, projects archiveProjectReader,
	allocator numberAllocator, tags tagApplier, stats statsRecomputer, audit auditBatchRecorder,
	auditRows auditPurger, fileStorage archiveFileRemover, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{
		archives:  archives,
		versions:  versions,
		projects:  projects,
		allocator: allocator,
		tags:      tags,
		stats:     stats,
		audit:     audit,
		auditRows: auditRows,
		storage:   fileStorage,
		logger:    logger,
	}
}

// Create registers a new archive under a project, allocating its number from
// the project's sequence.
func (s *ArchiveService) Create(ctx context.Context, projectID string, input ArchiveInput, operator models.Operator) (*models.Archive, error) {
	if input.Title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "archive title is required")
	}
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	number, err := s.resolveNumber(ctx, project.ProjectCode, input.ArchiveNumber)
	if err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = models.StatusNormal
	}
	archive := &models.Archive{
		ArchiveNumber: number,
		ProjectID:     project.ID,
		ProjectCode:   project.ProjectCode,
		Stage:         input.Stage,
		Title:         input.Title,
		FileStandard:  input.FileStandard,
		FileDate:      input.FileDate,
		Description:   input.Description,
		Summary:       input.Summary,
		Tags:          input.Tags,
		DelFlag:       models.FlagActive,
		Status:        status,
		Remark:        input.Remark,
		CreatedBy:     operator.Name,
	}
	if err := s.archives.Create(ctx, archive); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create archive")
	}

	s.applyTags(ctx, nil, archive.Tags)
	s.recordAudit(ctx, &models.ArchiveAuditLog{
		ArchiveID:       strPtr(archive.ID),
		OperationType:   models.OpCreate,
		OperationModule: models.ModuleArchive,
		OperationDesc:   fmt.Sprintf("created archive %s", archive.ArchiveNumber),
		Operator:        operator.Name,
		IPAddress:       operator.IPAddress,
	})
	s.refreshStatistics(ctx, archive.ProjectID)
	return archive, nil
}

// Get returns one archive with its versions attached.
func (s *ArchiveService) Get(ctx context.Context, id string) (*models.Archive, error) {
	archive, err := s.loadArchive(ctx, id)
	if err != nil {
		return nil, err
	}
	versions, err := s.versions.ListByArchive(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list versions")
	}
	archive.Versions = versions
	return archive, nil
}

// List returns archives matching the filter. Setting TrashedOnly switches to
// the recycle-bin view.
func (s *ArchiveService) List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, error) {
	records, err := s.archives.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list archives")
	}
	return records, nil
}

// Update edits archive metadata, recording one ledger entry per changed
// tracked field and adjusting tag usage for the tag delta.
func (s *ArchiveService) Update(ctx context.Context, id string, input ArchiveInput, operator models.Operator) (*models.Archive, error) {
	existing, err := s.loadArchive(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Trashed() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "archive is in the recycle bin")
	}
	if input.Title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "archive title is required")
	}

	updated := *existing
	updated.Stage = input.Stage
	updated.Title = input.Title
	updated.FileStandard = input.FileStandard
	updated.FileDate = input.FileDate
	updated.Description = input.Description
	updated.Summary = input.Summary
	updated.Tags = input.Tags
	updated.Remark = input.Remark
	if input.Status != "" {
		updated.Status = input.Status
	}

	entries := DiffArchives(existing, &updated, operator)
	if err := s.archives.Update(ctx, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update archive")
	}

	s.applyTags(ctx, existing.Tags, updated.Tags)
	if len(entries) > 0 {
		if err := s.audit.RecordAll(ctx, entries); err != nil {
			s.logger.Warn("failed to record audit entries", zap.String("archive_id", id), zap.Error(err))
		}
	}
	s.refreshStatistics(ctx, updated.ProjectID)
	return &updated, nil
}

// Recycle moves an archive to the recycle bin. The archive keeps its number
// and drops out of listings and statistics.
func (s *ArchiveService) Recycle(ctx context.Context, id string, operator models.Operator) error {
	archive, err := s.loadArchive(ctx, id)
	if err != nil {
		return err
	}
	if archive.Trashed() {
		return nil
	}
	if err := s.archives.UpdateDelFlag(ctx, id, models.FlagTrashed); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "recycle archive")
	}
	s.recordAudit(ctx, &models.ArchiveAuditLog{
		ArchiveID:       strPtr(id),
		OperationType:   models.OpRecycle,
		OperationModule: models.ModuleArchive,
		OperationDesc:   fmt.Sprintf("moved archive %s to recycle bin", archive.ArchiveNumber),
		Operator:        operator.Name,
		IPAddress:       operator.IPAddress,
	})
	s.refreshStatistics(ctx, archive.ProjectID)
	return nil
}

// Restore brings a trashed archive back, number intact.
func (s *ArchiveService) Restore(ctx context.Context, id string, operator models.Operator) error {
	archive, err := s.loadArchive(ctx, id)
	if err != nil {
		return err
	}
	if !archive.Trashed() {
		return nil
	}
	if err := s.archives.UpdateDelFlag(ctx, id, models.FlagActive); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "restore archive")
	}
	s.recordAudit(ctx, &models.ArchiveAuditLog{
		ArchiveID:       strPtr(id),
		OperationType:   models.OpRestore,
		OperationModule: models.ModuleArchive,
		OperationDesc:   fmt.Sprintf("restored archive %s from recycle bin", archive.ArchiveNumber),
		Operator:        operator.Name,
		IPAddress:       operator.IPAddress,
	})
	s.refreshStatistics(ctx, archive.ProjectID)
	return nil
}

// Purge permanently removes a trashed archive together with its versions,
// stored files and ledger rows.
func (s *ArchiveService) Purge(ctx context.Context, id string, operator models.Operator) error {
	archive, err := s.loadArchive(ctx, id)
	if err != nil {
		return err
	}
	if !archive.Trashed() {
		return appErrors.Clone(appErrors.ErrValidation, "only archives in the recycle bin can be purged")
	}

	versions, err := s.versions.ListByArchive(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list versions")
	}
	for _, version := range versions {
		if err := s.storage.Delete(version.FilePath); err != nil {
			s.logger.Warn("failed to remove version file", zap.String("path", version.FilePath), zap.Error(err))
		}
	}
	if err := s.versions.DeleteByArchive(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "purge versions")
	}
	if err := s.auditRows.DeleteByArchive(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "purge audit trail")
	}
	if err := s.archives.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "purge archive")
	}
	s.applyTags(ctx, archive.Tags, nil)
	s.refreshStatistics(ctx, archive.ProjectID)
	return nil
}

func (s *ArchiveService) loadArchive(ctx context.Context, id string) (*models.Archive, error) {
	archive, err := s.archives.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load archive")
	}
	return archive, nil
}

func (s *ArchiveService) loadProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load project")
	}
	if project.DelFlag == models.FlagTrashed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "project is deleted")
	}
	return project, nil
}

// resolveNumber honors a caller-supplied archive number after checking it is
// not already held by an active archive; absent one it draws from the
// project's sequence.
func (s *ArchiveService) resolveNumber(ctx context.Context, projectCode, requested string) (string, error) {
	if requested == "" {
		return s.allocateNumber(ctx, projectCode)
	}
	inUse, err := s.archives.NumberInUse(ctx, requested)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check archive number")
	}
	if inUse {
		return "", appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("archive number %s is already in use", requested))
	}
	return requested, nil
}

// allocateNumber draws numbers from the sequence until one passes the
// active-uniqueness probe. The allocator already serializes issuance; the
// probe only guards against numbers manually assigned outside the sequence.
func (s *ArchiveService) allocateNumber(ctx context.Context, projectCode string) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		number, err := s.allocator.ArchiveNumber(ctx, projectCode)
		if err != nil {
			return "", err
		}
		inUse, err := s.archives.NumberInUse(ctx, number)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check archive number")
		}
		if !inUse {
			return number, nil
		}
		s.logger.Warn("allocated archive number already in use", zap.String("number", number))
	}
	return "", appErrors.Clone(appErrors.ErrSequenceContention, "archive number allocation exhausted retries")
}

func (s *ArchiveService) applyTags(ctx context.Context, before, after models.StringList) {
	if s.tags == nil {
		return
	}
	if err := s.tags.ApplyTagChanges(ctx, before, after); err != nil {
		s.logger.Warn("failed to adjust tag usage", zap.Error(err))
	}
}

func (s *ArchiveService) recordAudit(ctx context.Context, entry *models.ArchiveAuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry", zap.String("operation", entry.OperationType), zap.Error(err))
	}
}

func (s *ArchiveService) refreshStatistics(ctx context.Context, projectID string) {
	if s.stats == nil {
		return
	}
	if err := s.stats.RecomputeProject(ctx, projectID); err != nil {
		s.logger.Warn("failed to refresh project statistics", zap.String("project_id", projectID), zap.Error(err))
	}
}
