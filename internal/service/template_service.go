package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/bams-platform/bams-api/internal/models"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

type templateStore interface {
	GetByID(ctx context.Context, id string) (*models.StageTemplate, error)
	List(ctx context.Context) ([]models.StageTemplate, error)
	Create(ctx context.Context, template *models.StageTemplate) error
	Update(ctx context.Context, template *models.StageTemplate) error
	SoftDeleteByIDs(ctx context.Context, ids []string) error
}

// TemplateStageInput is one stage row of a template definition.
type TemplateStageInput struct {
	StageID          string
	StageDisplayName string
	StageOrder       int
	RequiredFiles    models.StringList
}

// TemplateInput carries caller-editable template fields.
type TemplateInput struct {
	TemplateName string
	Status       string
	Stages       []TemplateStageInput
}

// TemplateService manages reusable stage checklists.
type TemplateService struct {
	store  templateStore
	logger *zap.Logger
}

// NewTemplateService constructs the service.
func NewTemplateService(store templateStore, logger *zap.Logger) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{store: store, logger: logger}
}

// Get returns one template with its stages.
func (s *TemplateService) Get(ctx context.Context, id string) (*models.StageTemplate, error) {
	template, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "stage template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load stage template")
	}
	return template, nil
}

// List returns all non-deleted templates.
func (s *TemplateService) List(ctx context.Context) ([]models.StageTemplate, error) {
	templates, err := s.store.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list stage templates")
	}
	return templates, nil
}

// Create stores a new template after validating its stage set.
func (s *TemplateService) Create(ctx context.Context, input TemplateInput, operator models.Operator) (*models.StageTemplate, error) {
	if err := validateTemplateInput(input); err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = models.TemplateEnabled
	}
	template := &models.StageTemplate{
		TemplateName: input.TemplateName,
		StageCount:   len(input.Stages),
		Status:       status,
		DelFlag:      models.FlagActive,
		CreatedBy:    operator.Name,
		Stages:       templateStagesFromInput(input.Stages),
	}
	if err := s.store.Create(ctx, template); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create stage template")
	}
	return template, nil
}

// Update rewrites a template definition, bulk-replacing its stages. Projects
// that already applied the template keep their existing stage rows.
func (s *TemplateService) Update(ctx context.Context, id string, input TemplateInput, operator models.Operator) (*models.StageTemplate, error) {
	if err := validateTemplateInput(input); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.TemplateName = input.TemplateName
	existing.StageCount = len(input.Stages)
	if input.Status != "" {
		existing.Status = input.Status
	}
	existing.Stages = templateStagesFromInput(input.Stages)
	if err := s.store.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "stage template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update stage template")
	}
	return existing, nil
}

// Delete soft-deletes templates.
func (s *TemplateService) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.SoftDeleteByIDs(ctx, ids); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete stage templates")
	}
	return nil
}

func validateTemplateInput(input TemplateInput) error {
	if input.TemplateName == "" {
		return appErrors.Clone(appErrors.ErrValidation, "template name is required")
	}
	if len(input.Stages) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "template needs at least one stage")
	}
	seen := make(map[string]struct{}, len(input.Stages))
	for _, stage := range input.Stages {
		if stage.StageDisplayName == "" {
			return appErrors.Clone(appErrors.ErrValidation, "stage display name is required")
		}
		if _, dup := seen[stage.StageDisplayName]; dup {
			return appErrors.ErrStageNameDuplicate
		}
		seen[stage.StageDisplayName] = struct{}{}
	}
	return nil
}

func templateStagesFromInput(inputs []TemplateStageInput) []models.StageTemplateStage {
	stages := make([]models.StageTemplateStage, 0, len(inputs))
	for i, input := range inputs {
		order := input.StageOrder
		if order == 0 {
			order = i + 1
		}
		stages = append(stages, models.StageTemplateStage{
			StageID:          input.StageID,
			StageDisplayName: input.StageDisplayName,
			StageOrder:       order,
			RequiredFiles:    input.RequiredFiles,
		})
	}
	return stages
}
