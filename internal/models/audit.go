package models

import "time"

// Operation kinds recorded in the audit ledger.
const (
	OpCreate        = "CREATE"
	OpUpdate        = "UPDATE"
	OpDelete        = "DELETE"
	OpRecycle       = "RECYCLE"
	OpRestore       = "RESTORE"
	OpVersionUpload = "VERSION_UPLOAD"
	OpVersionSwitch = "VERSION_SWITCH"
	OpVersionUpdate = "VERSION_UPDATE"
	OpVersionDelete = "VERSION_DELETE"
	OpDownload      = "DOWNLOAD"
)

// Audit module names.
const (
	ModuleArchive  = "archive"
	ModuleVersion  = "version"
	ModuleMetadata = "metadata"
	ModuleFile     = "file"
)

// ArchiveAuditLog is one immutable fact about a past operation. Rows are never
// updated; they are removed only when their owning archive is purged.
type ArchiveAuditLog struct {
	ID              string    `db:"log_id" json:"log_id"`
	ArchiveID       *string   `db:"archive_id" json:"archive_id,omitempty"`
	VersionID       *string   `db:"version_id" json:"version_id,omitempty"`
	OperationType   string    `db:"operation_type" json:"operation_type"`
	OperationModule string    `db:"operation_module" json:"operation_module"`
	OperationDesc   string    `db:"operation_desc" json:"operation_desc"`
	FieldName       *string   `db:"field_name" json:"field_name,omitempty"`
	OldValue        *string   `db:"old_value" json:"old_value,omitempty"`
	NewValue        *string   `db:"new_value" json:"new_value,omitempty"`
	Operator        string    `db:"operator" json:"operator"`
	OperationTime   time.Time `db:"operation_time" json:"operation_time"`
	IPAddress       string    `db:"ip_address" json:"ip_address"`
}
