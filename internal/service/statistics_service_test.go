package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bams-platform/bams-api/internal/models"
)

type stageStatsStub struct {
	mu     sync.Mutex
	stages []models.ProjectStage
	writes map[string][2]int
}

func (s *stageStatsStub) ListByProject(ctx context.Context, projectID string) ([]models.ProjectStage, error) {
	return s.stages, nil
}

func (s *stageStatsStub) UpdateStatistics(ctx context.Context, stageRowID string, archivedCount, rate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writes == nil {
		s.writes = make(map[string][2]int)
	}
	s.writes[stageRowID] = [2]int{archivedCount, rate}
	return nil
}

type projectStatsStub struct {
	mu     sync.Mutex
	writes [][3]int
}

func (s *projectStatsStub) UpdateStatistics(ctx context.Context, projectID string, totalRequired, totalArchived, rate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, [3]int{totalRequired, totalArchived, rate})
	return nil
}

type archiveStandardsStub struct {
	byStage map[string][]string
}

func (s *archiveStandardsStub) DistinctFileStandards(ctx context.Context, projectID, stageID string) ([]string, error) {
	return s.byStage[stageID], nil
}

type cacheEvictorStub struct {
	mu      sync.Mutex
	evicted []string
}

func (s *cacheEvictorStub) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evicted = append(s.evicted, key)
	return nil
}

func TestStatisticsRecomputeRounding(t *testing.T) {
	stages := &stageStatsStub{stages: []models.ProjectStage{
		{
			ID:                "row-1",
			StageID:           "stage-1",
			RequiredFiles:     models.StringList{"FS-01", "FS-02", "FS-03"},
			RequiredFileCount: 3,
		},
	}}
	projects := &projectStatsStub{}
	archives := &archiveStandardsStub{byStage: map[string][]string{
		// FS-99 is archived but not required; it must not count.
		"stage-1": {"FS-01", "FS-03", "FS-99"},
	}}
	cache := &cacheEvictorStub{}
	svc := NewStatisticsService(stages, projects, archives, cache, nil)

	require.NoError(t, svc.RecomputeProject(context.Background(), "proj-1"))

	require.Equal(t, [2]int{2, 67}, stages.writes["row-1"])
	require.Equal(t, [][3]int{{3, 2, 67}}, projects.writes)
	require.Equal(t, []string{"bams:project:proj-1"}, cache.evicted)
}

func TestStatisticsRecomputeIdempotent(t *testing.T) {
	stages := &stageStatsStub{stages: []models.ProjectStage{
		{ID: "row-1", StageID: "stage-1", RequiredFiles: models.StringList{"FS-01"}, RequiredFileCount: 1},
		{ID: "row-2", StageID: "stage-2", RequiredFiles: models.StringList{"FS-02", "FS-03"}, RequiredFileCount: 2},
	}}
	projects := &projectStatsStub{}
	archives := &archiveStandardsStub{byStage: map[string][]string{
		"stage-1": {"FS-01"},
		"stage-2": {"FS-02"},
	}}
	svc := NewStatisticsService(stages, projects, archives, nil, nil)

	require.NoError(t, svc.RecomputeProject(context.Background(), "proj-1"))
	require.NoError(t, svc.RecomputeProject(context.Background(), "proj-1"))

	require.Equal(t, [2]int{1, 100}, stages.writes["row-1"])
	require.Equal(t, [2]int{1, 50}, stages.writes["row-2"])
	require.Len(t, projects.writes, 2)
	require.Equal(t, projects.writes[0], projects.writes[1])
	require.Equal(t, [3]int{3, 2, 67}, projects.writes[0])
}

func TestStatisticsEmptyStageList(t *testing.T) {
	stages := &stageStatsStub{}
	projects := &projectStatsStub{}
	svc := NewStatisticsService(stages, projects, &archiveStandardsStub{}, nil, nil)

	require.NoError(t, svc.RecomputeProject(context.Background(), "proj-1"))
	require.Equal(t, [][3]int{{0, 0, 0}}, projects.writes)
}

func TestStatisticsConcurrentRecomputes(t *testing.T) {
	stages := &stageStatsStub{stages: []models.ProjectStage{
		{ID: "row-1", StageID: "stage-1", RequiredFiles: models.StringList{"FS-01"}, RequiredFileCount: 1},
	}}
	projects := &projectStatsStub{}
	archives := &archiveStandardsStub{byStage: map[string][]string{"stage-1": {"FS-01"}}}
	svc := NewStatisticsService(stages, projects, archives, nil, nil)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, svc.RecomputeProject(context.Background(), "proj-1"))
		}()
	}
	wg.Wait()

	require.Len(t, projects.writes, workers)
	for _, write := range projects.writes {
		require.Equal(t, [3]int{1, 1, 100}, write)
	}
}

func TestCompletenessRate(t *testing.T) {
	require.Equal(t, 0, completenessRate(0, 0))
	require.Equal(t, 0, completenessRate(5, 0))
	require.Equal(t, 67, completenessRate(2, 3))
	require.Equal(t, 33, completenessRate(1, 3))
	require.Equal(t, 100, completenessRate(3, 3))
}
