package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bams-platform/bams-api/internal/dto"
	"github.com/bams-platform/bams-api/internal/models"
	"github.com/bams-platform/bams-api/internal/service"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
	"github.com/bams-platform/bams-api/pkg/response"
)

type templateService interface {
	Get(ctx context.Context, id string) (*models.StageTemplate, error)
	List(ctx context.Context) ([]models.StageTemplate, error)
	Create(ctx context.Context, input service.TemplateInput, operator models.Operator) (*models.StageTemplate, error)
	Update(ctx context.Context, id string, input service.TemplateInput, operator models.Operator) (*models.StageTemplate, error)
	Delete(ctx context.Context, ids []string) error
}

// TemplateHandler manages stage template HTTP endpoints.
type TemplateHandler struct {
	service templateService
}

// NewTemplateHandler constructs the handler.
func NewTemplateHandler(service templateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// List returns all templates.
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// Get returns one template with its stages.
func (h *TemplateHandler) Get(c *gin.Context) {
	template, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// Create stores a new template.
func (h *TemplateHandler) Create(c *gin.Context) {
	var req dto.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid template payload"))
		return
	}
	template, err := h.service.Create(c.Request.Context(), templateInputFromRequest(req), operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, template)
}

// Update rewrites a template definition.
func (h *TemplateHandler) Update(c *gin.Context) {
	var req dto.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid template payload"))
		return
	}
	template, err := h.service.Update(c.Request.Context(), c.Param("id"), templateInputFromRequest(req), operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// Delete soft-deletes a batch of templates.
func (h *TemplateHandler) Delete(c *gin.Context) {
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

func templateInputFromRequest(req dto.TemplateRequest) service.TemplateInput {
	stages := make([]service.TemplateStageInput, 0, len(req.Stages))
	for _, stage := range req.Stages {
		stages = append(stages, service.TemplateStageInput{
			StageID:          stage.StageID,
			StageDisplayName: stage.StageDisplayName,
			StageOrder:       stage.StageOrder,
			RequiredFiles:    stage.RequiredFiles,
		})
	}
	return service.TemplateInput{
		TemplateName: req.TemplateName,
		Status:       req.Status,
		Stages:       stages,
	}
}
