package models

import "time"

// Soft-delete flag values for archives and projects.
const (
	FlagActive  = "0"
	FlagTrashed = "1"
)

// Archive status values.
const (
	StatusNormal = "0"
	StatusDraft  = "1"
)

// Archive is one logical document record inside a project stage.
type Archive struct {
	ID             string     `db:"archive_id" json:"archive_id"`
	ArchiveNumber  string     `db:"archive_number" json:"archive_number"`
	ProjectID      string     `db:"project_id" json:"project_id"`
	ProjectCode    string     `db:"project_code" json:"project_code"`
	Stage          string     `db:"stage" json:"stage"`
	Title          string     `db:"title" json:"title"`
	FileStandard   string     `db:"file_standard" json:"file_standard"`
	FileDate       *time.Time `db:"file_date" json:"file_date,omitempty"`
	Description    string     `db:"description" json:"description"`
	Summary        string     `db:"summary" json:"summary"`
	Tags           StringList `db:"tags" json:"tags"`
	CurrentVersion string     `db:"current_version" json:"current_version"`
	VersionCount   int        `db:"version_count" json:"version_count"`
	FileSize       int64      `db:"file_size" json:"file_size"`
	DelFlag        string     `db:"del_flag" json:"del_flag"`
	Status         string     `db:"status" json:"status"`
	Remark         string     `db:"remark" json:"remark"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at" json:"updated_at,omitempty"`

	// Versions is populated on detail reads, never persisted directly.
	Versions []ArchiveVersion `db:"-" json:"versions,omitempty"`
}

// Trashed reports whether the archive sits in the recycle bin.
func (a *Archive) Trashed() bool {
	return a.DelFlag == FlagTrashed
}

// ArchiveFilter narrows archive list queries.
type ArchiveFilter struct {
	ProjectID    string
	ProjectCode  string
	Stage        string
	FileStandard string
	Status       string
	Keyword      string
	TrashedOnly  bool
	Limit        int
	Offset       int
}
