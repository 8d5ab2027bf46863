package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bams-platform/bams-api/internal/models"
)

type tagStoreStub struct {
	tags map[string]*models.TagDictionary
}

func newTagStoreStub() *tagStoreStub {
	return &tagStoreStub{tags: make(map[string]*models.TagDictionary)}
}

func (s *tagStoreStub) GetByName(ctx context.Context, name string) (*models.TagDictionary, error) {
	if tag, ok := s.tags[name]; ok {
		copy := *tag
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *tagStoreStub) List(ctx context.Context) ([]models.TagDictionary, error) {
	out := make([]models.TagDictionary, 0, len(s.tags))
	for _, tag := range s.tags {
		out = append(out, *tag)
	}
	return out, nil
}

func (s *tagStoreStub) Create(ctx context.Context, tag *models.TagDictionary) error {
	if tag.ID == "" {
		tag.ID = fmt.Sprintf("tag-%d", len(s.tags)+1)
	}
	stored := *tag
	s.tags[tag.TagName] = &stored
	return nil
}

func (s *tagStoreStub) IncrementUsage(ctx context.Context, tagID string) error {
	for _, tag := range s.tags {
		if tag.ID == tagID {
			tag.UsageCount++
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *tagStoreStub) DecrementUsage(ctx context.Context, tagID string) error {
	for _, tag := range s.tags {
		if tag.ID == tagID {
			if tag.UsageCount > 0 {
				tag.UsageCount--
			}
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *tagStoreStub) count(name string) int {
	if tag, ok := s.tags[name]; ok {
		return tag.UsageCount
	}
	return -1
}

func TestApplyTagChangesNewTagsCreated(t *testing.T) {
	store := newTagStoreStub()
	svc := NewTagService(store, nil)

	err := svc.ApplyTagChanges(context.Background(), nil, models.StringList{"survey", "geology"})
	require.NoError(t, err)
	require.Equal(t, 1, store.count("survey"))
	require.Equal(t, 1, store.count("geology"))
}

func TestApplyTagChangesExistingIncremented(t *testing.T) {
	store := newTagStoreStub()
	require.NoError(t, store.Create(context.Background(), &models.TagDictionary{TagName: "survey", UsageCount: 4}))
	svc := NewTagService(store, nil)

	err := svc.ApplyTagChanges(context.Background(), nil, models.StringList{"survey"})
	require.NoError(t, err)
	require.Equal(t, 5, store.count("survey"))
}

func TestApplyTagChangesDelta(t *testing.T) {
	store := newTagStoreStub()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.TagDictionary{TagName: "a", UsageCount: 2}))
	require.NoError(t, store.Create(ctx, &models.TagDictionary{TagName: "b", UsageCount: 2}))
	svc := NewTagService(store, nil)

	// a stays, b dropped, c added.
	err := svc.ApplyTagChanges(ctx, models.StringList{"a", "b"}, models.StringList{"a", "c"})
	require.NoError(t, err)
	require.Equal(t, 2, store.count("a"))
	require.Equal(t, 1, store.count("b"))
	require.Equal(t, 1, store.count("c"))
}

func TestApplyTagChangesDecrementFloorsAtZero(t *testing.T) {
	store := newTagStoreStub()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.TagDictionary{TagName: "a", UsageCount: 0}))
	svc := NewTagService(store, nil)

	require.NoError(t, svc.ApplyTagChanges(ctx, models.StringList{"a"}, nil))
	require.Equal(t, 0, store.count("a"))
}

func TestApplyTagChangesMissingDroppedTagIgnored(t *testing.T) {
	store := newTagStoreStub()
	svc := NewTagService(store, nil)
	require.NoError(t, svc.ApplyTagChanges(context.Background(), models.StringList{"ghost"}, nil))
}
