package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bams-platform/bams-api/internal/models"
)

type auditStoreStub struct {
	entries []models.ArchiveAuditLog
}

func (s *auditStoreStub) Insert(ctx context.Context, entry *models.ArchiveAuditLog) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *auditStoreStub) BatchInsert(ctx context.Context, entries []models.ArchiveAuditLog) error {
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *auditStoreStub) ListByArchive(ctx context.Context, archiveID string) ([]models.ArchiveAuditLog, error) {
	var out []models.ArchiveAuditLog
	for _, e := range s.entries {
		if e.ArchiveID != nil && *e.ArchiveID == archiveID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *auditStoreStub) ListByVersion(ctx context.Context, versionID string) ([]models.ArchiveAuditLog, error) {
	var out []models.ArchiveAuditLog
	for _, e := range s.entries {
		if e.VersionID != nil && *e.VersionID == versionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func testOperator() models.Operator {
	return models.Operator{Name: "zhangsan", IPAddress: "10.0.0.7"}
}

func TestDiffArchivesTwoChangedFields(t *testing.T) {
	before := &models.Archive{
		ID:    "arch-1",
		Title: "Foundation survey",
		Tags:  models.StringList{"survey"},
	}
	after := &models.Archive{
		ID:    "arch-1",
		Title: "Foundation survey v2",
		Tags:  models.StringList{"survey", "foundation"},
	}

	entries := DiffArchives(before, after, testOperator())
	require.Len(t, entries, 2)

	byField := map[string]models.ArchiveAuditLog{}
	for _, e := range entries {
		require.NotNil(t, e.FieldName)
		byField[*e.FieldName] = e
		require.Equal(t, models.OpUpdate, e.OperationType)
		require.Equal(t, models.ModuleMetadata, e.OperationModule)
		require.Equal(t, "zhangsan", e.Operator)
		require.Equal(t, "10.0.0.7", e.IPAddress)
	}

	title := byField["title"]
	require.Equal(t, "Foundation survey", *title.OldValue)
	require.Equal(t, "Foundation survey v2", *title.NewValue)

	tags := byField["tags"]
	require.Equal(t, "survey", *tags.OldValue)
	require.Equal(t, "survey,foundation", *tags.NewValue)
}

func TestDiffArchivesNoChanges(t *testing.T) {
	archive := &models.Archive{ID: "arch-1", Title: "Same", Status: models.StatusNormal}
	require.Empty(t, DiffArchives(archive, archive, testOperator()))
}

func TestDiffArchivesFileDateSet(t *testing.T) {
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	before := &models.Archive{ID: "arch-1", Title: "T"}
	after := &models.Archive{ID: "arch-1", Title: "T", FileDate: &date}

	entries := DiffArchives(before, after, testOperator())
	require.Len(t, entries, 1)
	require.Equal(t, "file_date", *entries[0].FieldName)
	require.Equal(t, "", *entries[0].OldValue)
	require.Equal(t, "2025-03-14", *entries[0].NewValue)
}

func TestAuditServiceTrails(t *testing.T) {
	store := &auditStoreStub{}
	svc := NewAuditService(store, nil)

	archiveID := "arch-1"
	versionID := "ver-1"
	require.NoError(t, svc.Record(context.Background(), &models.ArchiveAuditLog{
		ArchiveID:     &archiveID,
		OperationType: models.OpCreate,
	}))
	require.NoError(t, svc.RecordAll(context.Background(), []models.ArchiveAuditLog{
		{ArchiveID: &archiveID, VersionID: &versionID, OperationType: models.OpVersionUpload},
	}))

	byArchive, err := svc.TrailByArchive(context.Background(), archiveID)
	require.NoError(t, err)
	require.Len(t, byArchive, 2)

	byVersion, err := svc.TrailByVersion(context.Background(), versionID)
	require.NoError(t, err)
	require.Len(t, byVersion, 1)
	require.Equal(t, models.OpVersionUpload, byVersion[0].OperationType)
}
