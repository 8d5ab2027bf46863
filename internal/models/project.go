package models

import "time"

// Project aggregates construction stages and completeness rollups.
type Project struct {
	ID                  string     `db:"project_id" json:"project_id"`
	ProjectCode         string     `db:"project_code" json:"project_code"`
	ProjectName         string     `db:"project_name" json:"project_name"`
	TemplateID          *string    `db:"template_id" json:"template_id,omitempty"`
	TemplateName        string     `db:"template_name" json:"template_name"`
	TotalRequiredFiles  int        `db:"total_required_files" json:"total_required_files"`
	ActualArchivedFiles int        `db:"actual_archived_files" json:"actual_archived_files"`
	CompletenessRate    int        `db:"completeness_rate" json:"completeness_rate"`
	DelFlag             string     `db:"del_flag" json:"del_flag"`
	CreatedBy           string     `db:"created_by" json:"created_by"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           *time.Time `db:"updated_at" json:"updated_at,omitempty"`

	Stages []ProjectStage `db:"-" json:"stages,omitempty"`
}

// ProjectStage is one named phase of a project's document checklist.
// ArchivedFileCount and CompletenessRate are derived by the statistics
// recompute and must never be written by any other path.
type ProjectStage struct {
	ID                string     `db:"stage_row_id" json:"stage_row_id"`
	ProjectID         string     `db:"project_id" json:"project_id"`
	StageID           string     `db:"stage_id" json:"stage_id"`
	StageDisplayName  string     `db:"stage_display_name" json:"stage_display_name"`
	StageOrder        int        `db:"stage_order" json:"stage_order"`
	RequiredFiles     StringList `db:"required_files" json:"required_files"`
	RequiredFileCount int        `db:"required_file_count" json:"required_file_count"`
	ArchivedFileCount int        `db:"archived_file_count" json:"archived_file_count"`
	CompletenessRate  int        `db:"completeness_rate" json:"completeness_rate"`

	// RequiredFileOptions carries dictionary labels and matching archives on
	// detail reads.
	RequiredFileOptions []FileOption `db:"-" json:"required_file_options,omitempty"`
}

// FileOption is one required file-standard code with its display label and the
// non-deleted archives covering it.
type FileOption struct {
	Code     string    `json:"code"`
	Label    string    `json:"label"`
	Archives []Archive `json:"archives"`
}

// ProjectFilter narrows project list queries.
type ProjectFilter struct {
	Keyword string
	Limit   int
	Offset  int
}
