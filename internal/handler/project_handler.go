package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bams-platform/bams-api/internal/dto"
	"github.com/bams-platform/bams-api/internal/models"
	"github.com/bams-platform/bams-api/internal/service"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
	"github.com/bams-platform/bams-api/pkg/response"
)

type projectService interface {
	Create(ctx context.Context, input service.ProjectInput, operator models.Operator) (*models.Project, error)
	Get(ctx context.Context, id string) (*models.Project, error)
	Detail(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error)
	Update(ctx context.Context, id string, input service.ProjectInput, operator models.Operator) (*models.Project, error)
	ApplyTemplate(ctx context.Context, projectID, templateID string) (*models.Project, error)
	Delete(ctx context.Context, ids []string) error
}

// ProjectHandler manages project HTTP endpoints.
type ProjectHandler struct {
	service projectService
}

// NewProjectHandler constructs the handler.
func NewProjectHandler(service projectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// Create registers a new project.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid project payload"))
		return
	}
	project, err := h.service.Create(c.Request.Context(), service.ProjectInput{
		ProjectName: req.ProjectName,
		TemplateID:  req.TemplateID,
	}, operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Get returns a project with its stages.
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Detail returns a project with resolved required-file options per stage.
func (h *ProjectHandler) Detail(c *gin.Context) {
	project, err := h.service.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// List returns projects matching the query filters.
func (h *ProjectHandler) List(c *gin.Context) {
	filter := models.ProjectFilter{Keyword: strings.TrimSpace(c.Query("keyword"))}
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

	projects, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, nil)
}

// Update renames a project.
func (h *ProjectHandler) Update(c *gin.Context) {
	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid project payload"))
		return
	}
	project, err := h.service.Update(c.Request.Context(), c.Param("id"), service.ProjectInput{
		ProjectName: req.ProjectName,
		TemplateID:  req.TemplateID,
	}, operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// ApplyTemplate swaps a project's stage checklist for a template's.
func (h *ProjectHandler) ApplyTemplate(c *gin.Context) {
	var req dto.ApplyTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid template payload"))
		return
	}
	project, err := h.service.ApplyTemplate(c.Request.Context(), c.Param("id"), req.TemplateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Delete soft-deletes a batch of projects.
func (h *ProjectHandler) Delete(c *gin.Context) {
	var req dto.DeleteIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid delete payload"))
		return
	}
	if err := h.service.Delete(c.Request.Context(), req.IDs); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
