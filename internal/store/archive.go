package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptobrief/refinery/internal/model"
	"gorm.io/gorm"
)

// ArchiveRepository owns the destination table: existence checks for dedup,
// the row count, single-row inserts, and oldest-first pruning.
type ArchiveRepository struct {
	db    *gorm.DB
	table string
}

// NewArchiveRepository creates a repository over the given destination table.
func NewArchiveRepository(db *gorm.DB, table string) *ArchiveRepository {
	return &ArchiveRepository{db: db, table: table}
}

// Migrate creates or updates the destination table schema. The source table
// is owned by the ingestion side and never migrated here.
func (r *ArchiveRepository) Migrate() error {
	err := r.db.Table(r.table).AutoMigrate(&model.ArchivedStory{})
	if err != nil {
		return fmt.Errorf("migrate %s: %w", r.table, err)
	}
	return nil
}

// HasLink reports whether a story with this original link exists.
func (r *ArchiveRepository) HasLink(ctx context.Context, link string) (bool, error) {
	return r.exists(ctx, r.db.WithContext(ctx).Table(r.table).Where("original_link = ?", link))
}

// HasRecentHeadline reports whether a story with this original headline was
// archived at or after the cutoff time.
func (r *ArchiveRepository) HasRecentHeadline(ctx context.Context, headline string, since time.Time) (bool, error) {
	return r.exists(ctx, r.db.WithContext(ctx).Table(r.table).
		Where("original_headline = ?", headline).
		Where("processed_at >= ?", since))
}

// HasOriginalID reports whether a story with this original id exists.
func (r *ArchiveRepository) HasOriginalID(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, r.db.WithContext(ctx).Table(r.table).Where("original_id = ?", id))
}

func (r *ArchiveRepository) exists(_ context.Context, query *gorm.DB) (bool, error) {
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("existence check on %s: %w", r.table, err)
	}
	return count > 0, nil
}

// Count returns the current destination row count.
func (r *ArchiveRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table(r.table).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return count, nil
}

// Insert adds one archived story.
func (r *ArchiveRepository) Insert(ctx context.Context, story *model.ArchivedStory) error {
	err := r.db.WithContext(ctx).Table(r.table).Create(story).Error
	if err != nil {
		return fmt.Errorf("insert into %s: %w", r.table, err)
	}
	return nil
}

// Prune enforces the retention ceiling. When the table holds ceiling rows or
// more, the oldest (count - ceiling + 1) rows are removed so one insert fits
// under the ceiling again. Deletes are issued one row at a time on purpose:
// downstream observers watch individual delete events.
func (r *ArchiveRepository) Prune(ctx context.Context, ceiling int, order model.RetentionOrder) (int, error) {
	count, err := r.Count(ctx)
	if err != nil {
		return 0, err
	}

	if count < int64(ceiling) {
		return 0, nil
	}
	toDelete := int(count) - ceiling + 1

	var ids []uint
	err = r.db.WithContext(ctx).
		Table(r.table).
		Order(string(order) + " ASC").
		Limit(toDelete).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("select oldest from %s: %w", r.table, err)
	}

	deleted := 0
	for _, id := range ids {
		err := r.db.WithContext(ctx).
			Table(r.table).
			Where("id = ?", id).
			Delete(&model.ArchivedStory{}).Error
		if err != nil {
			return deleted, fmt.Errorf("delete %d from %s: %w", id, r.table, err)
		}
		deleted++
	}

	return deleted, nil
}
