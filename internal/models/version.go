package models

import "time"

// File type classifications derived from the uploaded filename.
const (
	FileTypePDF     = "PDF"
	FileTypeWord    = "WORD"
	FileTypeExcel   = "EXCEL"
	FileTypeJPG     = "JPG"
	FileTypePNG     = "PNG"
	FileTypeCAD     = "CAD"
	FileTypeOther   = "OTHER"
	FileTypeUnknown = "UNKNOWN"
)

// ArchiveVersion is one uploaded file revision of an archive. Version numbers
// are 1-based, strictly increasing and never reused, even after deletion.
type ArchiveVersion struct {
	ID            string    `db:"version_id" json:"version_id"`
	ArchiveID     string    `db:"archive_id" json:"archive_id"`
	VersionNumber string    `db:"version_number" json:"version_number"`
	FileName      string    `db:"file_name" json:"file_name"`
	FilePath      string    `db:"file_path" json:"file_path"`
	FileType      string    `db:"file_type" json:"file_type"`
	FileSize      int64     `db:"file_size" json:"file_size"`
	FileHash      string    `db:"file_hash" json:"file_hash"`
	IsCurrent     bool      `db:"is_current" json:"is_current"`
	VersionRemark string    `db:"version_remark" json:"version_remark"`
	UploadBy      string    `db:"upload_by" json:"upload_by"`
	UploadTime    time.Time `db:"upload_time" json:"upload_time"`
}
