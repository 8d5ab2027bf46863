package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bams-platform/bams-api/internal/models"
)

type dashProjectStub struct {
	countCalls int
	projects   []models.Project
}

func (s *dashProjectStub) CountActive(ctx context.Context) (int, error) {
	s.countCalls++
	return 4, nil
}

func (s *dashProjectStub) CountOngoing(ctx context.Context) (int, error) {
	return 3, nil
}

func (s *dashProjectStub) AvgCompleteness(ctx context.Context) (int, error) {
	return 58, nil
}

func (s *dashProjectStub) CompletenessDistribution(ctx context.Context) ([]models.LabelCount, error) {
	return []models.LabelCount{{Label: "0-25", Count: 1}, {Label: "100", Count: 1}}, nil
}

func (s *dashProjectStub) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error) {
	if filter.Limit > 0 && len(s.projects) > filter.Limit {
		return s.projects[:filter.Limit], nil
	}
	return s.projects, nil
}

type dashArchiveStub struct{}

func (s *dashArchiveStub) CountActive(ctx context.Context) (int, error) {
	return 27, nil
}

func (s *dashArchiveStub) TypeDistribution(ctx context.Context) ([]models.LabelCount, error) {
	return []models.LabelCount{{Label: "FS-01", Count: 15}, {Label: "FS-02", Count: 12}}, nil
}

func (s *dashArchiveStub) StageDistribution(ctx context.Context) ([]models.LabelCount, error) {
	return []models.LabelCount{{Label: "construction", Count: 20}, {Label: "planning", Count: 7}}, nil
}

func (s *dashArchiveStub) MonthlyCreated(ctx context.Context, months int) ([]models.LabelCount, error) {
	return []models.LabelCount{{Label: "2026-08", Count: 9}, {Label: "2026-09", Count: 18}}, nil
}

func newDashboardFixture() (*DashboardService, *dashProjectStub, *cacheStub) {
	projects := &dashProjectStub{projects: []models.Project{
		{ID: "proj-1", ProjectCode: "XMB001", ProjectName: "River Bridge", TotalRequiredFiles: 3, ActualArchivedFiles: 2, CompletenessRate: 67},
		{ID: "proj-2", ProjectCode: "XMB002", ProjectName: "Station Upgrade", CompletenessRate: 100},
	}}
	cache := newCacheStub()
	svc := NewDashboardService(projects, &dashArchiveStub{}, cache, nil, time.Minute)
	return svc, projects, cache
}

func TestDashboardOverviewAggregates(t *testing.T) {
	svc, _, _ := newDashboardFixture()

	overview, cacheHit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.False(t, cacheHit)

	require.Equal(t, 4, overview.KPI.TotalProjects)
	require.Equal(t, 27, overview.KPI.TotalArchives)
	require.Equal(t, 3, overview.KPI.OngoingProjects)
	require.Equal(t, 58, overview.KPI.AvgCompleteness)

	require.Len(t, overview.Projects, 2)
	require.Equal(t, "XMB001", overview.Projects[0].ProjectCode)
	require.Equal(t, 67, overview.Projects[0].CompletenessRate)

	require.Equal(t, "FS-01", overview.ArchiveTypeDistribution[0].Label)
	require.Equal(t, 20, overview.ArchiveByStage[0].Count)
	require.Equal(t, "2026-08", overview.MonthlyTrend[0].Label)
	require.Len(t, overview.CompletenessDistribution, 2)
}

func TestDashboardOverviewServedFromCache(t *testing.T) {
	svc, projects, _ := newDashboardFixture()
	ctx := context.Background()

	_, cacheHit, err := svc.Overview(ctx)
	require.NoError(t, err)
	require.False(t, cacheHit)
	require.Equal(t, 1, projects.countCalls)

	cached, cacheHit, err := svc.Overview(ctx)
	require.NoError(t, err)
	require.True(t, cacheHit)
	require.Equal(t, 27, cached.KPI.TotalArchives)
	// Aggregation queries are not repeated within the TTL.
	require.Equal(t, 1, projects.countCalls)
}

func TestDashboardOverviewWithoutCache(t *testing.T) {
	projects := &dashProjectStub{}
	svc := NewDashboardService(projects, &dashArchiveStub{}, nil, nil, 0)

	_, cacheHit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.False(t, cacheHit)

	_, cacheHit, err = svc.Overview(context.Background())
	require.NoError(t, err)
	require.False(t, cacheHit)
	require.Equal(t, 2, projects.countCalls)
}
