package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bams-platform/bams-api/internal/models"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

type archiveRepoStub struct {
	archives map[string]*models.Archive
}

func newArchiveRepoStub() *archiveRepoStub {
	return &archiveRepoStub{archives: make(map[string]*models.Archive)}
}

func (r *archiveRepoStub) Create(ctx context.Context, archive *models.Archive) error {
	if archive.ID == "" {
		archive.ID = fmt.Sprintf("arch-%d", len(r.archives)+1)
	}
	stored := *archive
	r.archives[archive.ID] = &stored
	return nil
}

func (r *archiveRepoStub) GetByID(ctx context.Context, id string) (*models.Archive, error) {
	if a, ok := r.archives[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *archiveRepoStub) NumberInUse(ctx context.Context, number string) (bool, error) {
	for _, a := range r.archives {
		if a.ArchiveNumber == number && a.DelFlag == models.FlagActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *archiveRepoStub) List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, error) {
	var out []models.Archive
	for _, a := range r.archives {
		if filter.TrashedOnly != a.Trashed() {
			continue
		}
		if filter.ProjectID != "" && a.ProjectID != filter.ProjectID {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *archiveRepoStub) Update(ctx context.Context, archive *models.Archive) error {
	if _, ok := r.archives[archive.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *archive
	r.archives[archive.ID] = &stored
	return nil
}

func (r *archiveRepoStub) UpdateDelFlag(ctx context.Context, id, flag string) error {
	a, ok := r.archives[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.DelFlag = flag
	return nil
}

func (r *archiveRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.archives, id)
	return nil
}

type projectReaderStub struct {
	projects map[string]*models.Project
}

func (r *projectReaderStub) GetByID(ctx context.Context, id string) (*models.Project, error) {
	if p, ok := r.projects[id]; ok {
		copy := *p
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type allocatorStub struct {
	issued map[string]int
}

func (a *allocatorStub) ArchiveNumber(ctx context.Context, projectCode string) (string, error) {
	if a.issued == nil {
		a.issued = make(map[string]int)
	}
	a.issued[projectCode]++
	return fmt.Sprintf("%s-%04d", projectCode, a.issued[projectCode]), nil
}

type tagApplierStub struct {
	transitions [][2]models.StringList
}

func (s *tagApplierStub) ApplyTagChanges(ctx context.Context, before, after models.StringList) error {
	s.transitions = append(s.transitions, [2]models.StringList{before, after})
	return nil
}

type statsStub struct {
	recomputed []string
}

func (s *statsStub) RecomputeProject(ctx context.Context, projectID string) error {
	s.recomputed = append(s.recomputed, projectID)
	return nil
}

type auditPurgerStub struct {
	purged []string
}

func (s *auditPurgerStub) DeleteByArchive(ctx context.Context, archiveID string) error {
	s.purged = append(s.purged, archiveID)
	return nil
}

type archiveFixture struct {
	svc       *ArchiveService
	archives  *archiveRepoStub
	versions  *versionRepoStub
	projects  *projectReaderStub
	allocator *allocatorStub
	tags      *tagApplierStub
	stats     *statsStub
	audit     *auditRecorderStub
	purger    *auditPurgerStub
	files     *fileStoreStub
}

func newArchiveFixture(t *testing.T) *archiveFixture {
	t.Helper()
	f := &archiveFixture{
		archives:  newArchiveRepoStub(),
		versions:  newVersionRepoStub(),
		projects:  &projectReaderStub{projects: make(map[string]*models.Project)},
		allocator: &allocatorStub{},
		tags:      &tagApplierStub{},
		stats:     &statsStub{},
		audit:     &auditRecorderStub{},
		purger:    &auditPurgerStub{},
		files:     newFileStoreStub(),
	}
	f.projects.projects["proj-1"] = &models.Project{
		ID:          "proj-1",
		ProjectCode: "XMB001",
		ProjectName: "River Bridge",
		DelFlag:     models.FlagActive,
	}
	f.svc = NewArchiveService(f.archives, f.versions, f.projects, f.allocator, f.tags, f.stats,
		f.audit, f.purger, f.files, nil)
	return f
}

func TestArchiveCreateAllocatesNumber(t *testing.T) {
	f := newArchiveFixture(t)
	ctx := context.Background()

	archive, err := f.svc.Create(ctx, "proj-1", ArchiveInput{
		Title: "Geological survey",
		Stage: "stage-1",
		Tags:  models.StringList{"survey"},
	}, testOperator())
	require.NoError(t, err)
	require.Equal(t, "XMB001-0001", archive.ArchiveNumber)
	require.Equal(t, models.StatusNormal, archive.Status)
	require.Equal(t, models.FlagActive, archive.DelFlag)

	second, err := f.svc.Create(ctx, "proj-1", ArchiveInput{Title: "Permit"}, testOperator())
	require.NoError(t, err)
	require.Equal(t, "XMB001-0002", second.ArchiveNumber)

	require.Len(t, f.audit.ofType(models.OpCreate), 2)
	require.Equal(t, []string{"proj-1", "proj-1"}, f.stats.recomputed)
	require.Len(t, f.tags.transitions, 2)
	require.Equal(t, models.StringList{"survey"}, f.tags.transitions[0][1])
}

func TestArchiveCreateUnknownProject(t *testing.T) {
	f := newArchiveFixture(t)
	_, err := f.svc.Create(context.Background(), "missing", ArchiveInput{Title: "X"}, testOperator())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestArchiveCreateHonorsCallerNumber(t *testing.T) {
	f := newArchiveFixture(t)
	ctx := context.Background()

	archive, err := f.svc.Create(ctx, "proj-1", ArchiveInput{
		ArchiveNumber: "XMB001-LEGACY",
		Title:         "Imported permit",
	}, testOperator())
	require.NoError(t, err)
	require.Equal(t, "XMB001-LEGACY", archive.ArchiveNumber)
	require.Empty(t, f.allocator.issued)

	// The same number cannot be claimed twice while the holder is active.
	_, err = f.svc.Create(ctx, "proj-1", ArchiveInput{
		ArchiveNumber: "XMB001-LEGACY",
		Title:         "Duplicate import",
	}, testOperator())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestArchiveCreateSkipsTakenNumber(t *testing.T) {
	f := newArchiveFixture(t)
	ctx := context.Background()

	// A row outside the sequence already holds the first number.
	f.archives.archives["manual"] = &models.Archive{
		ID:            "manual",
		ArchiveNumber: "XMB001-0001",
		ProjectID:     "proj-1",
		DelFlag:       models.FlagActive,
	}

	archive, err := f.svc.Create(ctx, "proj-1", ArchiveInput{Title: "Survey"}, testOperator())
	require.NoError(t, err)
	require.Equal(t, "XMB001-0002", archive.ArchiveNumber)
}

func TestArchiveUpdateAuditsChangedFieldsOnly(t *testing.T) {
	f := newArchiveFixture(t)
	ctx := context.Background()

	archive, err := f.svc.Create(ctx, "proj-1", ArchiveInput{
		Title: "Original title",
		Tags:  models.StringList{"survey"},
	}, testOperator())
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, archive.ID, ArchiveInput{
		Title: "Revised title",
		Tags:  models.StringList{"survey", "geology"},
	}, testOperator())
	require.NoError(t, err)
	require.Equal(t, "Revised title", updated.Title)

	updates := f.audit.ofType(models.OpUpdate)
	require.Len(t, updates, 2)
	fields := map[string]bool{}
	for _, e := range updates {
		fields[*e.FieldName] = true
	}
	require.True(t, fields["title"])
	require.True(t, fields["tags"])

	last := f.tags.transitions[len(f.tags.transitions)-1]
	require.Equal(t, models.StringList{"survey"}, last[0])
	require.Equal(t, models.StringList{"survey", "geology"}, last[1])
}

func TestArchiveUpdateTrashedRejected(t *testing.T) {
	f := newArchiveFixture(t)
	ctx := context.Background()

	archive, err := f.svc.Create(ctx, "proj-1", ArchiveInput{Title: "T"}, testOperator())
	require.NoError(t, err)
	require.NoError(t, f.svc.Recycle(ctx, archive.ID, testOperator()))

	_, err = f.svc.Update(ctx, archive.ID, ArchiveInput{Title: "New"}, testOperator())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestArchiveRecycleRestoreKeepsNumber(t *testing.T) {
	f := newArchiveFixture(t)
	ctx := context.Background()

	archive, err := f.svc.Create(ctx, "proj-1", ArchiveInput{Title: "T"}, testOperator())
	require.NoError(t, err)
	number := archive.ArchiveNumber

	require.NoError(t, f.svc.Recycle(ctx, archive.ID, testOperator()))
	stored, err := f.archives.GetByID(ctx, archive.ID)
	require.NoError(t, err)
	require.True(t, stored.Trashed())
	require.Equal(t, number, stored.ArchiveNumber)

	// Repeated recycle is a no-op and leaves no extra ledger entry.
	require.NoError(t, f.svc.Recycle(ctx, archive.ID, testOperator()))
	require.Len(t, f.audit.ofType(models.OpRecycle), 1)

	require.NoError(t, f.svc.Restore(ctx, archive.ID, testOperator()))
	stored, err = f.archives.GetByID(ctx, archive.ID)
	require.NoError(t, err)
	require.False(t, stored.Trashed())
	require.Equal(t, number, stored.ArchiveNumber)
	require.Len(t, f.audit.ofType(models.OpRestore), 1)
}

func TestArchivePurgeRequiresRecycleBin(t *testing.T) {
	f := newArchiveFixture(t)
	ctx := context.Background()

	archive, err := f.svc.Create(ctx, "proj-1", ArchiveInput{Title: "T"}, testOperator())
	require.NoError(t, err)

	err = f.svc.Purge(ctx, archive.ID, testOperator())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestArchivePurgeCascades(t *testing.T) {
	f := newArchiveFixture(t)
	ctx := context.Background()

	archive, err := f.svc.Create(ctx, "proj-1", ArchiveInput{
		Title: "T",
		Tags:  models.StringList{"survey"},
	}, testOperator())
	require.NoError(t, err)

	f.files.files["archive/a/file.pdf"] = ""
	require.NoError(t, f.versions.CreateAsCurrent(ctx, &models.ArchiveVersion{
		ArchiveID: archive.ID,
		FilePath:  "archive/a/file.pdf",
	}, 1))

	require.NoError(t, f.svc.Recycle(ctx, archive.ID, testOperator()))
	require.NoError(t, f.svc.Purge(ctx, archive.ID, testOperator()))

	_, err = f.archives.GetByID(ctx, archive.ID)
	require.ErrorIs(t, err, sql.ErrNoRows)
	remaining, err := f.versions.ListByArchive(ctx, archive.ID)
	require.NoError(t, err)
	require.Empty(t, remaining)
	require.Equal(t, []string{archive.ID}, f.purger.purged)
	require.NotContains(t, f.files.files, "archive/a/file.pdf")

	// The tag reference is released on purge.
	last := f.tags.transitions[len(f.tags.transitions)-1]
	require.Equal(t, models.StringList{"survey"}, last[0])
	require.Empty(t, last[1])
}

func TestArchiveGetAttachesVersions(t *testing.T) {
	f := newArchiveFixture(t)
	ctx := context.Background()

	archive, err := f.svc.Create(ctx, "proj-1", ArchiveInput{Title: "T"}, testOperator())
	require.NoError(t, err)
	require.NoError(t, f.versions.CreateAsCurrent(ctx, &models.ArchiveVersion{
		ArchiveID:     archive.ID,
		VersionNumber: "V1.0",
	}, 1))

	loaded, err := f.svc.Get(ctx, archive.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Versions, 1)
	require.Equal(t, "V1.0", loaded.Versions[0].VersionNumber)
}
