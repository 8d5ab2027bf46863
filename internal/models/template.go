package models

import "time"

// Stage template status values.
const (
	TemplateEnabled  = "0"
	TemplateDisabled = "1"
)

// StageTemplate describes a reusable stage checklist applied to projects.
type StageTemplate struct {
	ID           string     `db:"template_id" json:"template_id"`
	TemplateName string     `db:"template_name" json:"template_name"`
	StageCount   int        `db:"stage_count" json:"stage_count"`
	Status       string     `db:"status" json:"status"`
	DelFlag      string     `db:"del_flag" json:"del_flag"`
	CreatedBy    string     `db:"created_by" json:"created_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`

	Stages []StageTemplateStage `db:"-" json:"stages,omitempty"`
}

// StageTemplateStage is one stage row inside a template.
type StageTemplateStage struct {
	ID               string     `db:"detail_id" json:"detail_id"`
	TemplateID       string     `db:"template_id" json:"template_id"`
	StageID          string     `db:"stage_id" json:"stage_id"`
	StageDisplayName string     `db:"stage_display_name" json:"stage_display_name"`
	StageOrder       int        `db:"stage_order" json:"stage_order"`
	RequiredFiles    StringList `db:"required_files" json:"required_files"`
}
