package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bams-platform/bams-api/internal/dto"
	"github.com/bams-platform/bams-api/internal/models"
	"github.com/bams-platform/bams-api/internal/service"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
	"github.com/bams-platform/bams-api/pkg/response"
)

type versionService interface {
	Upload(ctx context.Context, archiveID string, upload service.VersionUpload, operator models.Operator) (*models.ArchiveVersion, error)
	SetCurrent(ctx context.Context, archiveID, versionID string, operator models.Operator) (*models.ArchiveVersion, error)
	UpdateRemark(ctx context.Context, archiveID, versionID, remark string, operator models.Operator) error
	Delete(ctx context.Context, archiveID, versionID string, operator models.Operator) error
	Get(ctx context.Context, archiveID, versionID string) (*models.ArchiveVersion, error)
	ListByArchive(ctx context.Context, archiveID string) ([]models.ArchiveVersion, error)
	Current(ctx context.Context, archiveID string) (*models.ArchiveVersion, error)
	Download(ctx context.Context, archiveID, versionID string, operator models.Operator) (*service.VersionDownload, error)
	StageTemp(ctx context.Context, upload service.VersionUpload) (string, error)
}

// VersionHandler manages version lifecycle HTTP endpoints.
type VersionHandler struct {
	service versionService
	audit   auditTrailReader
	metrics *service.MetricsService
}

// NewVersionHandler constructs the handler. metrics may be nil.
func NewVersionHandler(svc versionService, audit auditTrailReader, metrics *service.MetricsService) *VersionHandler {
	return &VersionHandler{service: svc, audit: audit, metrics: metrics}
}

// Upload accepts a multipart file as a new version of the archive.
func (h *VersionHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}

	upload := service.VersionUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Remark:   c.PostForm("remark"),
		Content:  reader,
	}
	version, err := h.service.Upload(c.Request.Context(), c.Param("id"), upload, operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordVersionUpload(version.FileSize)
	response.Created(c, version)
}

// UploadTemp stages a file in the temp area before any archive owns it. The
// content analysis the original flow runs on staged files is not performed
// here; the response carries an empty analysis payload.
func (h *VersionHandler) UploadTemp(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}

	tempPath, err := h.service.StageTemp(c.Request.Context(), service.VersionUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  reader,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"temp_path": tempPath,
		"file_name": fileHeader.Filename,
		"file_size": fileHeader.Size,
		"analysis":  gin.H{},
	}, nil)
}

// List returns all versions of the archive in upload order.
func (h *VersionHandler) List(c *gin.Context) {
	versions, err := h.service.ListByArchive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Current returns the archive's current version.
func (h *VersionHandler) Current(c *gin.Context) {
	version, err := h.service.Current(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// Get returns one version of the archive.
func (h *VersionHandler) Get(c *gin.Context) {
	version, err := h.service.Get(c.Request.Context(), c.Param("id"), c.Param("versionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// SetCurrent switches the archive's current version.
func (h *VersionHandler) SetCurrent(c *gin.Context) {
	version, err := h.service.SetCurrent(c.Request.Context(), c.Param("id"), c.Param("versionId"), operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// UpdateRemark edits a version remark.
func (h *VersionHandler) UpdateRemark(c *gin.Context) {
	var req dto.UpdateVersionRemarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid remark payload"))
		return
	}
	if err := h.service.UpdateRemark(c.Request.Context(), c.Param("id"), c.Param("versionId"), req.Remark, operatorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete removes a non-current version.
func (h *VersionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), c.Param("versionId"), operatorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download streams a version's file.
func (h *VersionHandler) Download(c *gin.Context) {
	download, err := h.service.Download(c.Request.Context(), c.Param("id"), c.Param("versionId"), operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.FileName))
	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Length", fmt.Sprintf("%d", download.FileSize))
	if _, err := io.Copy(c.Writer, download.File); err != nil {
		// Headers are already out; nothing left to do but abort the stream.
		c.Abort()
	}
}

// Trail returns the audit trail of one version.
func (h *VersionHandler) Trail(c *gin.Context) {
	if _, err := h.service.Get(c.Request.Context(), c.Param("id"), c.Param("versionId")); err != nil {
		response.Error(c, err)
		return
	}
	logs, err := h.audit.TrailByVersion(c.Request.Context(), c.Param("versionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
