package service

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/bams-platform/bams-api/internal/models"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

type statsStageStore interface {
	ListByProject(ctx context.Context, projectID string) ([]models.ProjectStage, error)
	UpdateStatistics(ctx context.Context, stageRowID string, archivedCount, rate int) error
}

type statsProjectStore interface {
	UpdateStatistics(ctx context.Context, projectID string, totalRequired, totalArchived, rate int) error
}

type statsArchiveSource interface {
	DistinctFileStandards(ctx context.Context, projectID, stageID string) ([]string, error)
}

type cacheEvictor interface {
	Delete(ctx context.Context, key string) error
}

// StatisticsService recomputes completeness counters from the ground truth:
// the distinct file-standard codes covered by non-deleted archives of each
// stage. The recompute is idempotent; running it twice against the same data
// writes the same numbers. Recomputes for the same project are serialized so
// concurrent archive mutations cannot interleave stale totals.
type StatisticsService struct {
	stages   statsStageStore
	projects statsProjectStore
	archives statsArchiveSource
	cache    cacheEvictor
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStatisticsService constructs the service.
func NewStatisticsService(stages statsStageStore, projects statsProjectStore, archives statsArchiveSource, cache cacheEvictor, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{
		stages:   stages,
		projects: projects,
		archives: archives,
		cache:    cache,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// RecomputeProject refreshes every stage counter of the project and rolls the
// totals up to the project row.
func (s *StatisticsService) RecomputeProject(ctx context.Context, projectID string) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	stages, err := s.stages.ListByProject(ctx, projectID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list project stages")
	}

	totalRequired := 0
	totalArchived := 0
	for _, stage := range stages {
		covered, err := s.archives.DistinctFileStandards(ctx, projectID, stage.StageID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read archived file standards")
		}
		archived := countCovered(stage.RequiredFiles, covered)
		required := stage.RequiredFileCount
		if required == 0 {
			required = len(stage.RequiredFiles)
		}
		rate := completenessRate(archived, required)
		if err := s.stages.UpdateStatistics(ctx, stage.ID, archived, rate); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update stage statistics")
		}
		totalRequired += required
		totalArchived += archived
	}

	rate := completenessRate(totalArchived, totalRequired)
	if err := s.projects.UpdateStatistics(ctx, projectID, totalRequired, totalArchived, rate); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update project statistics")
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, projectCacheKey(projectID)); err != nil {
			s.logger.Warn("failed to evict project cache", zap.String("project_id", projectID), zap.Error(err))
		}
	}
	return nil
}

func (s *StatisticsService) projectLock(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[projectID] = lock
	}
	return lock
}

// countCovered counts required codes that appear in the covered set. Codes
// archived beyond the requirement list do not inflate the counter.
func countCovered(required models.StringList, covered []string) int {
	coveredSet := make(map[string]struct{}, len(covered))
	for _, code := range covered {
		coveredSet[code] = struct{}{}
	}
	count := 0
	for _, code := range required {
		if _, ok := coveredSet[code]; ok {
			count++
		}
	}
	return count
}

// completenessRate is round(archived * 100 / required), 0 when nothing is
// required.
func completenessRate(archived, required int) int {
	if required <= 0 {
		return 0
	}
	return int(math.Round(float64(archived) * 100 / float64(required)))
}

const projectCachePattern = "bams:project:*"

func projectCacheKey(projectID string) string {
	return "bams:project:" + projectID
}
