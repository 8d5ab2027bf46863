package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bams-platform/bams-api/internal/models"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
	"github.com/bams-platform/bams-api/pkg/storage"
)

type versionStore interface {
	GetByID(ctx context.Context, id string) (*models.ArchiveVersion, error)
	ListByArchive(ctx context.Context, archiveID string) ([]models.ArchiveVersion, error)
	Current(ctx context.Context, archiveID string) (*models.ArchiveVersion, error)
	CreateAsCurrent(ctx context.Context, version *models.ArchiveVersion, versionCount int) error
	SwitchCurrent(ctx context.Context, archiveID, versionID, versionNumber string, fileSize int64) error
	UpdateRemark(ctx context.Context, versionID, remark string) error
	DeleteWithRecount(ctx context.Context, versionID, archiveID string) error
}

type versionArchiveReader interface {
	GetByID(ctx context.Context, id string) (*models.Archive, error)
}

type versionFileStorage interface {
	SaveStream(relPath string, r io.Reader) (string, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry *models.ArchiveAuditLog) error
}

// VersionUpload carries upload metadata and the content stream.
type VersionUpload struct {
	Filename string
	Size     int64
	Remark   string
	Content  io.ReadSeeker
}

// VersionDownload bundles an open file handle with its version metadata.
type VersionDownload struct {
	File     *os.File
	FileName string
	FileSize int64
}

// VersionServiceConfig holds upload validation parameters.
type VersionServiceConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
}

// VersionService manages the version lifecycle of archives: upload, current
// switching, remark edits, deletion and download. Every version row belongs to
// exactly one archive; exactly one version per archive is current at any time.
type VersionService struct {
	versions versionStore
	archives versionArchiveReader
	storage  versionFileStorage
	hasher   ContentHasher
	audit    auditRecorder
	logger   *zap.Logger
	cfg      VersionServiceConfig
	extSet   map[string]struct{}
}

// NewVersionService constructs the service with defaults.
func NewVersionService(versions versionStore, archives versionArchiveReader, fileStorage versionFileStorage, hasher ContentHasher, audit auditRecorder, logger *zap.Logger, cfg VersionServiceConfig) *VersionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 100 * 1024 * 1024
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{"pdf", "doc", "docx", "xls", "xlsx", "jpg", "jpeg", "png", "dwg", "dxf"}
	}
	extSet := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		extSet[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &VersionService{
		versions: versions,
		archives: archives,
		storage:  fileStorage,
		hasher:   hasher,
		audit:    audit,
		logger:   logger,
		cfg:      cfg,
		extSet:   extSet,
	}
}

// Upload stores a new file revision and makes it the current version. The
// content digest must differ from every existing version of the archive.
func (s *VersionService) Upload(ctx context.Context, archiveID string, upload VersionUpload, operator models.Operator) (*models.ArchiveVersion, error) {
	archive, err := s.loadArchive(ctx, archiveID)
	if err != nil {
		return nil, err
	}
	if archive.Trashed() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "archive is in the recycle bin")
	}
	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Sum(upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "hash upload content")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rewind upload content")
	}

	existing, err := s.versions.ListByArchive(ctx, archiveID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list versions")
	}
	for _, v := range existing {
		if v.FileHash == hash {
			return nil, appErrors.ErrDuplicateContent
		}
	}

	now := time.Now().UTC()
	relPath := storage.VersionPath(archiveID, upload.Filename, now)
	if _, err := s.storage.SaveStream(relPath, upload.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store upload")
	}

	version := &models.ArchiveVersion{
		ArchiveID:     archiveID,
		VersionNumber: nextVersionNumber(existing),
		FileName:      upload.Filename,
		FilePath:      relPath,
		FileType:      fileTypeFor(upload.Filename),
		FileSize:      upload.Size,
		FileHash:      hash,
		VersionRemark: upload.Remark,
		UploadBy:      operator.Name,
		UploadTime:    now,
	}
	if err := s.versions.CreateAsCurrent(ctx, version, len(existing)+1); err != nil {
		if removeErr := s.storage.Delete(relPath); removeErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist version")
	}

	s.recordAudit(ctx, &models.ArchiveAuditLog{
		ArchiveID:       strPtr(archiveID),
		VersionID:       strPtr(version.ID),
		OperationType:   models.OpVersionUpload,
		OperationModule: models.ModuleVersion,
		OperationDesc:   fmt.Sprintf("uploaded version %s (%s)", version.VersionNumber, version.FileName),
		Operator:        operator.Name,
		IPAddress:       operator.IPAddress,
	})
	return version, nil
}

// SetCurrent flips the current flag to the target version.
func (s *VersionService) SetCurrent(ctx context.Context, archiveID, versionID string, operator models.Operator) (*models.ArchiveVersion, error) {
	version, err := s.loadOwnedVersion(ctx, archiveID, versionID)
	if err != nil {
		return nil, err
	}
	if version.IsCurrent {
		return version, nil
	}

	previous, err := s.versions.Current(ctx, archiveID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read current version")
	}

	if err := s.versions.SwitchCurrent(ctx, archiveID, versionID, version.VersionNumber, version.FileSize); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "switch current version")
	}
	version.IsCurrent = true

	entry := &models.ArchiveAuditLog{
		ArchiveID:       strPtr(archiveID),
		VersionID:       strPtr(versionID),
		OperationType:   models.OpVersionSwitch,
		OperationModule: models.ModuleVersion,
		OperationDesc:   fmt.Sprintf("switched current version to %s", version.VersionNumber),
		FieldName:       strPtr("current_version"),
		NewValue:        strPtr(version.VersionNumber),
		Operator:        operator.Name,
		IPAddress:       operator.IPAddress,
	}
	if previous != nil {
		entry.OldValue = strPtr(previous.VersionNumber)
	}
	s.recordAudit(ctx, entry)
	return version, nil
}

// UpdateRemark edits a version's remark. An unchanged remark is a no-op and
// leaves no ledger entry.
func (s *VersionService) UpdateRemark(ctx context.Context, archiveID, versionID, remark string, operator models.Operator) error {
	version, err := s.loadOwnedVersion(ctx, archiveID, versionID)
	if err != nil {
		return err
	}
	if version.VersionRemark == remark {
		return nil
	}
	if err := s.versions.UpdateRemark(ctx, versionID, remark); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update version remark")
	}
	s.recordAudit(ctx, &models.ArchiveAuditLog{
		ArchiveID:       strPtr(archiveID),
		VersionID:       strPtr(versionID),
		OperationType:   models.OpVersionUpdate,
		OperationModule: models.ModuleVersion,
		OperationDesc:   "updated version remark",
		FieldName:       strPtr("version_remark"),
		OldValue:        strPtr(version.VersionRemark),
		NewValue:        strPtr(remark),
		Operator:        operator.Name,
		IPAddress:       operator.IPAddress,
	})
	return nil
}

// Delete removes a non-current version. Its file is removed best effort; the
// version label is never reissued.
func (s *VersionService) Delete(ctx context.Context, archiveID, versionID string, operator models.Operator) error {
	version, err := s.loadOwnedVersion(ctx, archiveID, versionID)
	if err != nil {
		return err
	}
	if version.IsCurrent {
		return appErrors.ErrCurrentVersion
	}
	if err := s.versions.DeleteWithRecount(ctx, versionID, archiveID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete version")
	}
	if err := s.storage.Delete(version.FilePath); err != nil {
		s.logger.Warn("failed to remove version file", zap.String("path", version.FilePath), zap.Error(err))
	}
	s.recordAudit(ctx, &models.ArchiveAuditLog{
		ArchiveID:       strPtr(archiveID),
		VersionID:       strPtr(versionID),
		OperationType:   models.OpVersionDelete,
		OperationModule: models.ModuleVersion,
		OperationDesc:   fmt.Sprintf("deleted version %s", version.VersionNumber),
		Operator:        operator.Name,
		IPAddress:       operator.IPAddress,
	})
	return nil
}

// Get returns one version after an ownership check.
func (s *VersionService) Get(ctx context.Context, archiveID, versionID string) (*models.ArchiveVersion, error) {
	return s.loadOwnedVersion(ctx, archiveID, versionID)
}

// ListByArchive returns all versions of an archive in upload order.
func (s *VersionService) ListByArchive(ctx context.Context, archiveID string) ([]models.ArchiveVersion, error) {
	if _, err := s.loadArchive(ctx, archiveID); err != nil {
		return nil, err
	}
	versions, err := s.versions.ListByArchive(ctx, archiveID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list versions")
	}
	return versions, nil
}

// Current returns the version currently flagged current for an archive.
func (s *VersionService) Current(ctx context.Context, archiveID string) (*models.ArchiveVersion, error) {
	version, err := s.versions.Current(ctx, archiveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive has no current version")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read current version")
	}
	return version, nil
}

// Download opens a version's file for streaming and records the access.
func (s *VersionService) Download(ctx context.Context, archiveID, versionID string, operator models.Operator) (*VersionDownload, error) {
	version, err := s.loadOwnedVersion(ctx, archiveID, versionID)
	if err != nil {
		return nil, err
	}
	file, err := s.storage.Open(version.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "open version file")
	}
	s.recordAudit(ctx, &models.ArchiveAuditLog{
		ArchiveID:       strPtr(archiveID),
		VersionID:       strPtr(versionID),
		OperationType:   models.OpDownload,
		OperationModule: models.ModuleFile,
		OperationDesc:   fmt.Sprintf("downloaded version %s (%s)", version.VersionNumber, version.FileName),
		Operator:        operator.Name,
		IPAddress:       operator.IPAddress,
	})
	return &VersionDownload{File: file, FileName: version.FileName, FileSize: version.FileSize}, nil
}

// StageTemp parks an upload in the temp area before an archive exists for it.
func (s *VersionService) StageTemp(ctx context.Context, upload VersionUpload) (string, error) {
	if err := s.validateUpload(upload); err != nil {
		return "", err
	}
	relPath := storage.TempPath(upload.Filename, time.Now().UTC())
	if _, err := s.storage.SaveStream(relPath, upload.Content); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store temp upload")
	}
	return relPath, nil
}

func (s *VersionService) loadArchive(ctx context.Context, archiveID string) (*models.Archive, error) {
	archive, err := s.archives.GetByID(ctx, archiveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load archive")
	}
	return archive, nil
}

func (s *VersionService) loadOwnedVersion(ctx context.Context, archiveID, versionID string) (*models.ArchiveVersion, error) {
	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load version")
	}
	if version.ArchiveID != archiveID {
		return nil, appErrors.ErrOwnershipMismatch
	}
	return version, nil
}

func (s *VersionService) validateUpload(upload VersionUpload) error {
	if upload.Filename == "" || upload.Content == nil {
		return appErrors.Clone(appErrors.ErrValidation, "upload file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds maximum size of %d bytes", s.cfg.MaxFileSize))
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(upload.Filename), "."))
	if _, ok := s.extSet[ext]; !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %q is not allowed", ext))
	}
	return nil
}

// recordAudit appends the ledger entry, logging instead of failing the
// operation when the ledger is unavailable.
func (s *VersionService) recordAudit(ctx context.Context, entry *models.ArchiveAuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry", zap.String("operation", entry.OperationType), zap.Error(err))
	}
}

// nextVersionNumber derives the next label from the highest existing one, so
// labels stay strictly increasing even after deletions.
func nextVersionNumber(versions []models.ArchiveVersion) string {
	max := 0
	for _, v := range versions {
		label := strings.TrimPrefix(v.VersionNumber, "V")
		label = strings.TrimSuffix(label, ".0")
		if n, err := strconv.Atoi(label); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("V%d.0", max+1)
}

// fileTypeFor classifies the upload by filename extension.
func fileTypeFor(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "pdf":
		return models.FileTypePDF
	case "doc", "docx":
		return models.FileTypeWord
	case "xls", "xlsx":
		return models.FileTypeExcel
	case "jpg", "jpeg":
		return models.FileTypeJPG
	case "png":
		return models.FileTypePNG
	case "dwg", "dxf":
		return models.FileTypeCAD
	case "":
		return models.FileTypeUnknown
	default:
		return models.FileTypeOther
	}
}
