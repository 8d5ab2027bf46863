package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bams-platform/bams-api/internal/dto"
	"github.com/bams-platform/bams-api/internal/models"
	"github.com/bams-platform/bams-api/internal/service"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
	"github.com/bams-platform/bams-api/pkg/response"
)

type archiveService interface {
	Create(ctx context.Context, projectID string, input service.ArchiveInput, operator models.Operator) (*models.Archive, error)
	Get(ctx context.Context, id string) (*models.Archive, error)
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, error)
	Update(ctx context.Context, id string, input service.ArchiveInput, operator models.Operator) (*models.Archive, error)
	Recycle(ctx context.Context, id string, operator models.Operator) error
	Restore(ctx context.Context, id string, operator models.Operator) error
	Purge(ctx context.Context, id string, operator models.Operator) error
}

type auditTrailReader interface {
	TrailByArchive(ctx context.Context, archiveID string) ([]models.ArchiveAuditLog, error)
	TrailByVersion(ctx context.Context, versionID string) ([]models.ArchiveAuditLog, error)
}

// ArchiveHandler manages archive HTTP endpoints.
type ArchiveHandler struct {
	service archiveService
	audit   auditTrailReader
	metrics *service.MetricsService
}

// NewArchiveHandler constructs the handler. metrics may be nil.
func NewArchiveHandler(svc archiveService, audit auditTrailReader, metrics *service.MetricsService) *ArchiveHandler {
	return &ArchiveHandler{service: svc, audit: audit, metrics: metrics}
}

// Create registers a new archive under a project.
func (h *ArchiveHandler) Create(c *gin.Context) {
	var req dto.CreateArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid archive payload"))
		return
	}
	input, err := archiveInputFromRequest(req.Stage, req.Title, req.FileStandard, req.FileDate,
		req.Description, req.Summary, req.Tags, req.Status, req.Remark)
	if err != nil {
		response.Error(c, err)
		return
	}
	input.ArchiveNumber = strings.TrimSpace(req.ArchiveNumber)
	archive, err := h.service.Create(c.Request.Context(), req.ProjectID, input, operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordNumberIssued(archive.ProjectCode)
	response.Created(c, archive)
}

// Get returns one archive with its versions.
func (h *ArchiveHandler) Get(c *gin.Context) {
	archive, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archive, nil)
}

// List returns archives matching the query filters.
func (h *ArchiveHandler) List(c *gin.Context) {
	records, err := h.service.List(c.Request.Context(), archiveFilterFromQuery(c, false))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// RecycleBin returns trashed archives.
func (h *ArchiveHandler) RecycleBin(c *gin.Context) {
	records, err := h.service.List(c.Request.Context(), archiveFilterFromQuery(c, true))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Update edits archive metadata.
func (h *ArchiveHandler) Update(c *gin.Context) {
	var req dto.UpdateArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid archive payload"))
		return
	}
	input, err := archiveInputFromRequest(req.Stage, req.Title, req.FileStandard, req.FileDate,
		req.Description, req.Summary, req.Tags, req.Status, req.Remark)
	if err != nil {
		response.Error(c, err)
		return
	}
	archive, err := h.service.Update(c.Request.Context(), c.Param("id"), input, operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archive, nil)
}

// Recycle moves an archive to the recycle bin.
func (h *ArchiveHandler) Recycle(c *gin.Context) {
	if err := h.service.Recycle(c.Request.Context(), c.Param("id"), operatorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Restore brings a trashed archive back.
func (h *ArchiveHandler) Restore(c *gin.Context) {
	if err := h.service.Restore(c.Request.Context(), c.Param("id"), operatorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Purge permanently deletes a trashed archive.
func (h *ArchiveHandler) Purge(c *gin.Context) {
	if err := h.service.Purge(c.Request.Context(), c.Param("id"), operatorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Trail returns the audit trail of an archive.
func (h *ArchiveHandler) Trail(c *gin.Context) {
	logs, err := h.audit.TrailByArchive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

func archiveFilterFromQuery(c *gin.Context, trashedOnly bool) models.ArchiveFilter {
	filter := models.ArchiveFilter{
		ProjectID:    strings.TrimSpace(c.Query("project_id")),
		ProjectCode:  strings.TrimSpace(c.Query("project_code")),
		Stage:        strings.TrimSpace(c.Query("stage")),
		FileStandard: strings.TrimSpace(c.Query("file_standard")),
		Status:       strings.TrimSpace(c.Query("status")),
		Keyword:      strings.TrimSpace(c.Query("keyword")),
		TrashedOnly:  trashedOnly,
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage
	return filter
}

func archiveInputFromRequest(stage, title, fileStandard, fileDate, description, summary string,
	tags []string, status, remark string) (service.ArchiveInput, error) {
	input := service.ArchiveInput{
		Stage:        stage,
		Title:        title,
		FileStandard: fileStandard,
		Description:  description,
		Summary:      summary,
		Tags:         tags,
		Status:       status,
		Remark:       remark,
	}
	if fileDate != "" {
		parsed, err := time.Parse("2006-01-02", fileDate)
		if err != nil {
			return input, appErrors.Clone(appErrors.ErrValidation, "file_date must be formatted YYYY-MM-DD")
		}
		input.FileDate = &parsed
	}
	return input, nil
}
