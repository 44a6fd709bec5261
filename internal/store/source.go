package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptobrief/refinery/internal/model"
	"gorm.io/gorm"
)

// SourceRepository reads candidates from the externally owned source table.
// The table name is a deployment choice, so every query goes through Table().
type SourceRepository struct {
	db    *gorm.DB
	table string
}

// NewSourceRepository creates a repository over the given source table.
func NewSourceRepository(db *gorm.DB, table string) *SourceRepository {
	return &SourceRepository{db: db, table: table}
}

// FetchLatest returns up to limit candidates, newest first by publish time.
func (r *SourceRepository) FetchLatest(ctx context.Context, limit int) ([]model.Candidate, error) {
	var candidates []model.Candidate
	err := r.db.WithContext(ctx).
		Table(r.table).
		Order("published_at DESC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("fetch latest from %s: %w", r.table, err)
	}
	return candidates, nil
}

// FetchUnprocessed returns up to limit candidates published within the window
// that have not been flagged processed yet, newest first.
func (r *SourceRepository) FetchUnprocessed(ctx context.Context, limit int, window time.Duration) ([]model.Candidate, error) {
	cutoff := time.Now().Add(-window)

	var candidates []model.Candidate
	err := r.db.WithContext(ctx).
		Table(r.table).
		Where("processed = ?", false).
		Where("published_at >= ?", cutoff).
		Order("published_at DESC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed from %s: %w", r.table, err)
	}
	return candidates, nil
}

// MarkProcessed flips the processed flag on one source row. Best effort: a
// failure here is logged by the caller and never rolls back a store.
func (r *SourceRepository) MarkProcessed(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).
		Table(r.table).
		Where("id = ?", id).
		Update("processed", true).Error
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", id, err)
	}
	return nil
}
