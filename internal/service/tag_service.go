package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/bams-platform/bams-api/internal/models"
	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

type tagStore interface {
	GetByName(ctx context.Context, name string) (*models.TagDictionary, error)
	List(ctx context.Context) ([]models.TagDictionary, error)
	Create(ctx context.Context, tag *models.TagDictionary) error
	IncrementUsage(ctx context.Context, tagID string) error
	DecrementUsage(ctx context.Context, tagID string) error
}

// TagService keeps the tag dictionary's usage counters in step with the tags
// referenced by archives.
type TagService struct {
	store  tagStore
	logger *zap.Logger
}

// NewTagService constructs the service.
func NewTagService(store tagStore, logger *zap.Logger) *TagService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TagService{store: store, logger: logger}
}

// List returns all dictionary tags ordered by usage.
func (s *TagService) List(ctx context.Context) ([]models.TagDictionary, error) {
	tags, err := s.store.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list tags")
	}
	return tags, nil
}

// ApplyTagChanges adjusts usage counters for a tag set transition: tags newly
// referenced get incremented (created first if unknown), tags dropped get
// decremented. Tags present in both sets are untouched.
func (s *TagService) ApplyTagChanges(ctx context.Context, before, after models.StringList) error {
	for _, name := range after {
		if before.Contains(name) {
			continue
		}
		if err := s.reference(ctx, name); err != nil {
			return err
		}
	}
	for _, name := range before {
		if after.Contains(name) {
			continue
		}
		if err := s.release(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *TagService) reference(ctx context.Context, name string) error {
	tag, err := s.store.GetByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		created := &models.TagDictionary{TagName: name, UsageCount: 1}
		if err := s.store.Create(ctx, created); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create tag")
		}
		return nil
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "lookup tag")
	}
	if err := s.store.IncrementUsage(ctx, tag.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "increment tag usage")
	}
	return nil
}

func (s *TagService) release(ctx context.Context, name string) error {
	tag, err := s.store.GetByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		// The dictionary row is gone; nothing to decrement.
		s.logger.Debug("released tag missing from dictionary", zap.String("tag", name))
		return nil
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "lookup tag")
	}
	if err := s.store.DecrementUsage(ctx, tag.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decrement tag usage")
	}
	return nil
}
