package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bams-platform/bams-api/internal/models"
)

// DictionaryRepository resolves coded values to display labels.
type DictionaryRepository struct {
	db *sqlx.DB
}

// NewDictionaryRepository constructs the repository.
func NewDictionaryRepository(db *sqlx.DB) *DictionaryRepository {
	return &DictionaryRepository{db: db}
}

// Label returns the display label for a coded value, or "" when the code has
// no dictionary entry.
func (r *DictionaryRepository) Label(ctx context.Context, dictType, value string) (string, error) {
	const query = `SELECT dict_label FROM bams_dictionary WHERE dict_type = $1 AND dict_value = $2`
	var label string
	if err := r.db.GetContext(ctx, &label, query, dictType, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("lookup dictionary label: %w", err)
	}
	return label, nil
}

// ListByType returns all entries of one dictionary type in sort order.
func (r *DictionaryRepository) ListByType(ctx context.Context, dictType string) ([]models.DictionaryEntry, error) {
	const query = `SELECT entry_id, dict_type, dict_value, dict_label, sort
	FROM bams_dictionary WHERE dict_type = $1 ORDER BY sort ASC`
	var entries []models.DictionaryEntry
	if err := r.db.SelectContext(ctx, &entries, query, dictType); err != nil {
		return nil, fmt.Errorf("list dictionary entries: %w", err)
	}
	return entries, nil
}
