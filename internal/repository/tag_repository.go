package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bams-platform/bams-api/internal/models"
)

// TagRepository maintains the tag dictionary and its usage counters. Counter
// updates are single-row atomic SQL so concurrent archive edits referencing
// the same tag never lose updates.
type TagRepository struct {
	db *sqlx.DB
}

// NewTagRepository constructs the repository.
func NewTagRepository(db *sqlx.DB) *TagRepository {
	return &TagRepository{db: db}
}

// GetByName retrieves one tag row.
func (r *TagRepository) GetByName(ctx context.Context, name string) (*models.TagDictionary, error) {
	const query = `SELECT tag_id, tag_name, usage_count, created_at FROM bams_tag_dictionary WHERE tag_name = $1`
	var tag models.TagDictionary
	if err := r.db.GetContext(ctx, &tag, query, name); err != nil {
		return nil, err
	}
	return &tag, nil
}

// List returns all tags ordered by usage.
func (r *TagRepository) List(ctx context.Context) ([]models.TagDictionary, error) {
	const query = `SELECT tag_id, tag_name, usage_count, created_at FROM bams_tag_dictionary ORDER BY usage_count DESC, tag_name ASC`
	var tags []models.TagDictionary
	if err := r.db.SelectContext(ctx, &tags, query); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// Create stores a new tag.
func (r *TagRepository) Create(ctx context.Context, tag *models.TagDictionary) error {
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bams_tag_dictionary (tag_id, tag_name, usage_count, created_at)
	VALUES (:tag_id, :tag_name, :usage_count, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tag); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// IncrementUsage bumps a tag's usage counter atomically.
func (r *TagRepository) IncrementUsage(ctx context.Context, tagID string) error {
	const query = `UPDATE bams_tag_dictionary SET usage_count = usage_count + 1 WHERE tag_id = $1`
	if _, err := r.db.ExecContext(ctx, query, tagID); err != nil {
		return fmt.Errorf("increment tag usage: %w", err)
	}
	return nil
}

// DecrementUsage lowers a tag's usage counter atomically, floored at zero.
func (r *TagRepository) DecrementUsage(ctx context.Context, tagID string) error {
	const query = `UPDATE bams_tag_dictionary SET usage_count = GREATEST(usage_count - 1, 0) WHERE tag_id = $1`
	if _, err := r.db.ExecContext(ctx, query, tagID); err != nil {
		return fmt.Errorf("decrement tag usage: %w", err)
	}
	return nil
}
