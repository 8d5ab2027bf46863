package dto

import "github.com/bams-platform/bams-api/internal/models"

// DashboardKPI carries the headline totals of the overview.
type DashboardKPI struct {
	TotalProjects   int `json:"total_projects"`
	TotalArchives   int `json:"total_archives"`
	OngoingProjects int `json:"ongoing_projects"`
	AvgCompleteness int `json:"avg_completeness"`
}

// DashboardProject is one project rollup row on the overview.
type DashboardProject struct {
	ProjectID           string `json:"project_id"`
	ProjectCode         string `json:"project_code"`
	ProjectName         string `json:"project_name"`
	TotalRequiredFiles  int    `json:"total_required_files"`
	ActualArchivedFiles int    `json:"actual_archived_files"`
	CompletenessRate    int    `json:"completeness_rate"`
}

// DashboardOverviewResponse aggregates the archive estate for the overview
// screen: headline totals, recent project rollups, distribution widgets and
// the trailing creation trend.
type DashboardOverviewResponse struct {
	KPI                      DashboardKPI        `json:"kpi"`
	Projects                 []DashboardProject  `json:"projects"`
	ArchiveTypeDistribution  []models.LabelCount `json:"archive_type_distribution"`
	ArchiveByStage           []models.LabelCount `json:"archive_by_stage"`
	MonthlyTrend             []models.LabelCount `json:"monthly_trend"`
	CompletenessDistribution []models.LabelCount `json:"completeness_distribution"`
}
