// Package sync persists the progress of long-running metadata backfills so
// the HTTP layer can report it and a second run is refused while one is
// active.
//
//	var _ metadata.ProgressReporter = (*Repository)(nil)
package sync

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/logging"
	"github.com/mrlokans/bookie/internal/metadata"
)

var _ metadata.ProgressReporter = (*Repository)(nil)

// DefaultStaleAfter is how long a running sync may go without an update
// before it is considered interrupted.
const DefaultStaleAfter = 10 * time.Minute

// Repository tracks one sync type.
type Repository struct {
	db         *gorm.DB
	syncType   entities.SyncType
	staleAfter time.Duration
	now        func() time.Time
}

// NewRepository tracks metadata backfills.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		syncType:   entities.SyncTypeEnrichment,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// GetSyncProgress returns the last known progress, or nil if none ran yet.
func (r *Repository) GetSyncProgress() (*entities.SyncProgress, error) {
	var progress entities.SyncProgress
	err := r.db.Where("sync_type = ?", r.syncType).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// StartSync creates or resets the progress row.
func (r *Repository) StartSync(totalItems int) error {
	now := r.now()
	progress := entities.SyncProgress{
		SyncType:   r.syncType,
		Status:     entities.SyncStatusRunning,
		TotalItems: totalItems,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sync_type"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":       entities.SyncStatusRunning,
			"total_items":  totalItems,
			"processed":    0,
			"succeeded":    0,
			"failed":       0,
			"skipped":      0,
			"current_item": "",
			"error":        "",
			"started_at":   now,
			"updated_at":   now,
			"completed_at": nil,
		}),
	}).Create(&progress).Error
}

// UpdateProgress records the counters of an ongoing sync.
func (r *Repository) UpdateProgress(processed, succeeded, failed, skipped int, currentItem string) error {
	return r.db.Model(&entities.SyncProgress{}).
		Where("sync_type = ?", r.syncType).
		Updates(map[string]any{
			"processed":    processed,
			"succeeded":    succeeded,
			"failed":       failed,
			"skipped":      skipped,
			"current_item": currentItem,
			"updated_at":   r.now(),
		}).Error
}

// CompleteSync marks the sync as completed or failed.
func (r *Repository) CompleteSync(succeeded bool, errorMsg string) error {
	now := r.now()
	status := entities.SyncStatusCompleted
	if !succeeded {
		status = entities.SyncStatusFailed
	}

	updates := map[string]any{
		"status":       status,
		"current_item": "",
		"updated_at":   now,
		"completed_at": now,
	}
	if errorMsg != "" {
		updates["error"] = errorMsg
	}
	return r.db.Model(&entities.SyncProgress{}).
		Where("sync_type = ?", r.syncType).
		Updates(updates).Error
}

// IsSyncRunning reports whether a sync is in progress. A running row that
// was not updated within the stale window is closed as interrupted.
func (r *Repository) IsSyncRunning() (bool, error) {
	var progress entities.SyncProgress
	err := r.db.Where("sync_type = ? AND status = ?", r.syncType, entities.SyncStatusRunning).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if progress.UpdatedAt.Before(r.now().Add(-r.staleAfter)) {
		logging.Warn().Str("sync_type", string(r.syncType)).Time("updated_at", progress.UpdatedAt).Msg("closing stale sync")
		if err := r.CompleteSync(false, "sync was interrupted"); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}
