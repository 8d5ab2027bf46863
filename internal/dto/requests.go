package dto

// CreateArchiveRequest carries the payload for registering a new archive. An
// archive_number is taken as-is after a uniqueness check; left empty, one is
// allocated from the project's sequence.
type CreateArchiveRequest struct {
	ProjectID     string   `json:"project_id" binding:"required"`
	ArchiveNumber string   `json:"archive_number"`
	Stage         string   `json:"stage"`
	Title         string   `json:"title" binding:"required"`
	FileStandard  string   `json:"file_standard"`
	FileDate      string   `json:"file_date"`
	Description   string   `json:"description"`
	Summary       string   `json:"summary"`
	Tags          []string `json:"tags"`
	Status        string   `json:"status"`
	Remark        string   `json:"remark"`
}

// UpdateArchiveRequest carries the editable metadata of an archive.
type UpdateArchiveRequest struct {
	Stage        string   `json:"stage"`
	Title        string   `json:"title" binding:"required"`
	FileStandard string   `json:"file_standard"`
	FileDate     string   `json:"file_date"`
	Description  string   `json:"description"`
	Summary      string   `json:"summary"`
	Tags         []string `json:"tags"`
	Status       string   `json:"status"`
	Remark       string   `json:"remark"`
}

// CreateProjectRequest carries the payload for registering a project.
type CreateProjectRequest struct {
	ProjectName string `json:"project_name" binding:"required"`
	TemplateID  string `json:"template_id"`
}

// UpdateProjectRequest renames a project and optionally swaps its template.
type UpdateProjectRequest struct {
	ProjectName string `json:"project_name" binding:"required"`
	TemplateID  string `json:"template_id"`
}

// ApplyTemplateRequest applies a stage template to a project.
type ApplyTemplateRequest struct {
	TemplateID string `json:"template_id" binding:"required"`
}

// DeleteIDsRequest carries a batch of identifiers for soft deletion.
type DeleteIDsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// TemplateStageRequest is one stage row of a template definition.
type TemplateStageRequest struct {
	StageID          string   `json:"stage_id"`
	StageDisplayName string   `json:"stage_display_name" binding:"required"`
	StageOrder       int      `json:"stage_order"`
	RequiredFiles    []string `json:"required_files"`
}

// TemplateRequest carries a full template definition.
type TemplateRequest struct {
	TemplateName string                 `json:"template_name" binding:"required"`
	Status       string                 `json:"status"`
	Stages       []TemplateStageRequest `json:"stages" binding:"required,min=1"`
}

// UpdateVersionRemarkRequest edits a version remark.
type UpdateVersionRemarkRequest struct {
	Remark string `json:"remark"`
}
