package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bams-platform/bams-api/internal/models"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

// Dictionary type carrying file-standard display labels.
const dictTypeFileStandard = "bams_file_standard"

type projectStore interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	UpdateTemplate(ctx context.Context, projectID, templateID, templateName string, totalRequired int) error
	SoftDeleteByIDs(ctx context.Context, ids []string) error
}

type projectStageStore interface {
	ListByProject(ctx context.Context, projectID string) ([]models.ProjectStage, error)
	ReplaceForProject(ctx context.Context, projectID string, stages []models.ProjectStage) error
}

type templateReader interface {
	GetByID(ctx context.Context, id string) (*models.StageTemplate, error)
}

type projectCodeSource interface {
	NextProjectCode(ctx context.Context) (string, error)
}

type projectCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type dictionaryReader interface {
	Label(ctx context.Context, dictType, value string) (string, error)
}

type projectArchiveLister interface {
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, error)
	UpdateDelFlagByProject(ctx context.Context, projectID, flag string) error
}

// ProjectInput carries caller-editable project fields.
type ProjectInput struct {
	ProjectName string
	TemplateID  string
}

// ProjectService manages projects and their stage checklists. Reads by ID go
// through a Redis cache that every write path evicts.
type ProjectService struct {
	projects  projectStore
	stages    projectStageStore
	templates templateReader
	codes     projectCodeSource
	cache     projectCache
	dict      dictionaryReader
	archives  projectArchiveLister
	stats     statsRecomputer
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewProjectService constructs the service.
func NewProjectService(projects projectStore, stages projectStageStore, templates templateReader,
	codes projectCodeSource, cache projectCache, dict dictionaryReader, archives projectArchiveLister,
	stats statsRecomputer, logger *zap.Logger, cacheTTL time.Duration) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ProjectService{
		projects:  projects,
		stages:    stages,
		templates: templates,
		codes:     codes,
		cache:     cache,
		dict:      dict,
		archives:  archives,
		stats:     stats,
		logger:    logger,
		cacheTTL:  cacheTTL,
	}
}

// Create registers a project with a generated code and optionally applies a
// stage template in the same call.
func (s *ProjectService) Create(ctx context.Context, input ProjectInput, operator models.Operator) (*models.Project, error) {
	if input.ProjectName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "project name is required")
	}

	var template *models.StageTemplate
	if input.TemplateID != "" {
		loaded, err := s.loadEnabledTemplate(ctx, input.TemplateID)
		if err != nil {
			return nil, err
		}
		template = loaded
	}

	code, err := s.codes.NextProjectCode(ctx)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		ProjectCode: code,
		ProjectName: input.ProjectName,
		DelFlag:     models.FlagActive,
		CreatedBy:   operator.Name,
	}
	if template != nil {
		project.TemplateID = strPtr(template.ID)
		project.TemplateName = template.TemplateName
		project.TotalRequiredFiles = templateRequiredTotal(template)
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create project")
	}

	if template != nil {
		stages := stagesFromTemplate(template)
		if err := s.stages.ReplaceForProject(ctx, project.ID, stages); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "apply stage template")
		}
		project.Stages = stages
	}
	return project, nil
}

// Get returns a project with its stages, served from cache when possible.
func (s *ProjectService) Get(ctx context.Context, id string) (*models.Project, error) {
	if s.cache != nil {
		var cached models.Project
		if err := s.cache.Get(ctx, projectCacheKey(id), &cached); err == nil {
			return &cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("project cache read failed", zap.String("project_id", id), zap.Error(err))
		}
	}

	project, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	stages, err := s.stages.ListByProject(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list project stages")
	}
	project.Stages = stages

	if s.cache != nil {
		if err := s.cache.Set(ctx, projectCacheKey(id), project, s.cacheTTL); err != nil {
			s.logger.Warn("project cache write failed", zap.String("project_id", id), zap.Error(err))
		}
	}
	return project, nil
}

// Detail returns a project with per-stage required-file options: each required
// code resolved to its dictionary label plus the archives covering it. Always
// reads fresh state.
func (s *ProjectService) Detail(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	stages, err := s.stages.ListByProject(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list project stages")
	}
	for i := range stages {
		options := make([]models.FileOption, 0, len(stages[i].RequiredFiles))
		for _, code := range stages[i].RequiredFiles {
			label, err := s.dict.Label(ctx, dictTypeFileStandard, code)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resolve file standard label")
			}
			archives, err := s.archives.List(ctx, models.ArchiveFilter{
				ProjectID:    id,
				Stage:        stages[i].StageID,
				FileStandard: code,
			})
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list archives for file standard")
			}
			options = append(options, models.FileOption{Code: code, Label: label, Archives: archives})
		}
		stages[i].RequiredFileOptions = options
	}
	project.Stages = stages
	return project, nil
}

// List returns non-deleted projects matching the filter.
func (s *ProjectService) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error) {
	projects, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list projects")
	}
	return projects, nil
}

// Update renames a project and evicts its cache entry. Passing a different
// template id re-applies that template in the same call.
func (s *ProjectService) Update(ctx context.Context, id string, input ProjectInput, operator models.Operator) (*models.Project, error) {
	if input.ProjectName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "project name is required")
	}
	project, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	project.ProjectName = input.ProjectName
	if err := s.projects.Update(ctx, project); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update project")
	}
	s.evict(ctx, id)
	if input.TemplateID != "" && (project.TemplateID == nil || *project.TemplateID != input.TemplateID) {
		return s.ApplyTemplate(ctx, id, input.TemplateID)
	}
	return project, nil
}

// ApplyTemplate replaces a project's stage checklist with a template's stages
// and recomputes its statistics from scratch.
func (s *ProjectService) ApplyTemplate(ctx context.Context, projectID, templateID string) (*models.Project, error) {
	if _, err := s.loadProject(ctx, projectID); err != nil {
		return nil, err
	}
	template, err := s.loadEnabledTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	if err := s.projects.UpdateTemplate(ctx, projectID, template.ID, template.TemplateName, templateRequiredTotal(template)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "record applied template")
	}
	if err := s.stages.ReplaceForProject(ctx, projectID, stagesFromTemplate(template)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "apply stage template")
	}
	if s.stats != nil {
		if err := s.stats.RecomputeProject(ctx, projectID); err != nil {
			s.logger.Warn("failed to refresh project statistics", zap.String("project_id", projectID), zap.Error(err))
		}
	}
	s.evict(ctx, projectID)
	return s.Get(ctx, projectID)
}

// Delete soft-deletes projects and cascades the flag to their archives. The
// whole project cache namespace is invalidated in one sweep.
func (s *ProjectService) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.projects.SoftDeleteByIDs(ctx, ids); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete projects")
	}
	for _, id := range ids {
		if err := s.archives.UpdateDelFlagByProject(ctx, id, models.FlagTrashed); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "cascade project delete")
		}
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, projectCachePattern); err != nil {
			s.logger.Warn("failed to invalidate project cache namespace", zap.Error(err))
		}
	}
	return nil
}

func (s *ProjectService) loadProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load project")
	}
	if project.DelFlag == models.FlagTrashed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
	}
	return project, nil
}

func (s *ProjectService) loadEnabledTemplate(ctx context.Context, id string) (*models.StageTemplate, error) {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "stage template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load stage template")
	}
	if template.Status == models.TemplateDisabled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stage template is disabled")
	}
	return template, nil
}

func (s *ProjectService) evict(ctx context.Context, projectID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, projectCacheKey(projectID)); err != nil {
		s.logger.Warn("failed to evict project cache", zap.String("project_id", projectID), zap.Error(err))
	}
}

func stagesFromTemplate(template *models.StageTemplate) []models.ProjectStage {
	stages := make([]models.ProjectStage, 0, len(template.Stages))
	for _, detail := range template.Stages {
		stages = append(stages, models.ProjectStage{
			StageID:           detail.StageID,
			StageDisplayName:  detail.StageDisplayName,
			StageOrder:        detail.StageOrder,
			RequiredFiles:     detail.RequiredFiles,
			RequiredFileCount: len(detail.RequiredFiles),
		})
	}
	return stages
}

func templateRequiredTotal(template *models.StageTemplate) int {
	total := 0
	for _, detail := range template.Stages {
		total += len(detail.RequiredFiles)
	}
	return total
}
