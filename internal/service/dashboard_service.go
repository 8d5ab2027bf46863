package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bams-platform/bams-api/internal/dto"
	"github.com/bams-platform/bams-api/internal/models"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

type dashboardProjectSource interface {
	CountActive(ctx context.Context) (int, error)
	CountOngoing(ctx context.Context) (int, error)
	AvgCompleteness(ctx context.Context) (int, error)
	CompletenessDistribution(ctx context.Context) ([]models.LabelCount, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error)
}

type dashboardArchiveSource interface {
	CountActive(ctx context.Context) (int, error)
	TypeDistribution(ctx context.Context) ([]models.LabelCount, error)
	StageDistribution(ctx context.Context) ([]models.LabelCount, error)
	MonthlyCreated(ctx context.Context, months int) ([]models.LabelCount, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const (
	dashboardCacheKey    = "bams:dashboard:overview"
	dashboardTrendMonths = 6
	dashboardProjectRows = 10
)

// DashboardService composes the overview payload: headline totals, recent
// project rollups, distribution widgets and the creation trend. Every widget
// is a full-table aggregate, so the assembled payload is cached briefly and
// staleness within the TTL is accepted.
type DashboardService struct {
	projects dashboardProjectSource
	archives dashboardArchiveSource
	cache    dashboardCache
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewDashboardService constructs the service. cache may be nil.
func NewDashboardService(projects dashboardProjectSource, archives dashboardArchiveSource,
	cache dashboardCache, logger *zap.Logger, cacheTTL time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &DashboardService{
		projects: projects,
		archives: archives,
		cache:    cache,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// Overview returns the aggregated dashboard payload and reports whether it was
// served from cache.
func (s *DashboardService) Overview(ctx context.Context) (*dto.DashboardOverviewResponse, bool, error) {
	if s.cache != nil {
		var cached dto.DashboardOverviewResponse
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			return &cached, true, nil
		}
		if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	overview, err := s.build(ctx)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, overview, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return overview, false, nil
}

func (s *DashboardService) build(ctx context.Context) (*dto.DashboardOverviewResponse, error) {
	totalProjects, err := s.projects.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count projects")
	}
	totalArchives, err := s.archives.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count archives")
	}
	ongoing, err := s.projects.CountOngoing(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count ongoing projects")
	}
	avgCompleteness, err := s.projects.AvgCompleteness(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "average completeness")
	}
	typeDist, err := s.archives.TypeDistribution(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "archive type distribution")
	}
	stageDist, err := s.archives.StageDistribution(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "archive stage distribution")
	}
	trend, err := s.archives.MonthlyCreated(ctx, dashboardTrendMonths)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "archive monthly trend")
	}
	completeness, err := s.projects.CompletenessDistribution(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "completeness distribution")
	}
	recent, err := s.projects.List(ctx, models.ProjectFilter{Limit: dashboardProjectRows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list recent projects")
	}

	projects := make([]dto.DashboardProject, 0, len(recent))
	for _, p := range recent {
		projects = append(projects, dto.DashboardProject{
			ProjectID:           p.ID,
			ProjectCode:         p.ProjectCode,
			ProjectName:         p.ProjectName,
			TotalRequiredFiles:  p.TotalRequiredFiles,
			ActualArchivedFiles: p.ActualArchivedFiles,
			CompletenessRate:    p.CompletenessRate,
		})
	}

	return &dto.DashboardOverviewResponse{
		KPI: dto.DashboardKPI{
			TotalProjects:   totalProjects,
			TotalArchives:   totalArchives,
			OngoingProjects: ongoing,
			AvgCompleteness: avgCompleteness,
		},
		Projects:                 projects,
		ArchiveTypeDistribution:  typeDist,
		ArchiveByStage:           stageDist,
		MonthlyTrend:             trend,
		CompletenessDistribution: completeness,
	}, nil
}
