package repository

import (
	"time"

	"unibox-backend/internal/platform"
	"unibox-backend/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncStateRepository defines interface for sync state operations
type SyncStateRepository interface {
	GetOrCreate(userID, platformName string) (*domain.SyncState, error)
	GetByUserAndPlatform(userID, platformName string) (*domain.SyncState, error)
	GetStatesForUser(userID string) ([]*domain.SyncState, error)
	// TryAcquire atomically sets is_syncing for the state. Returns
	// platform.ErrSyncInProgress when another run already holds it.
	TryAcquire(stateID string) error
	// Release clears is_syncing and records the run's outcome. The cursor
	// is advanced only when advance is true: a failed run must leave it
	// untouched so the next run retries the same window.
	Release(stateID string, cursor string, processed int, errMsg string, advance bool) error
	// ForceRelease clears a live is_syncing flag without recording an
	// outcome. Admin recovery for runs that died without releasing.
	ForceRelease(stateID string) error
	// Reset clears the cursor and initial-sync flag so the next run is
	// treated as an initial sync.
	Reset(stateID string) error
}

type syncStateRepository struct {
	db *gorm.DB
}

func NewSyncStateRepository(db *gorm.DB) SyncStateRepository {
	return &syncStateRepository{db: db}
}

func (r *syncStateRepository) GetOrCreate(userID, platformName string) (*domain.SyncState, error) {
	state := domain.SyncState{
		UserID:   userID,
		Platform: platformName,
	}
	result := r.db.Where("user_id = ? AND platform = ?", userID, platformName).
		Attrs(domain.SyncState{ID: uuid.New().String()}).
		FirstOrCreate(&state)
	if result.Error != nil {
		return nil, result.Error
	}
	return &state, nil
}

func (r *syncStateRepository) GetByUserAndPlatform(userID, platformName string) (*domain.SyncState, error) {
	var state domain.SyncState
	err := r.db.Where("user_id = ? AND platform = ?", userID, platformName).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *syncStateRepository) GetStatesForUser(userID string) ([]*domain.SyncState, error) {
	var states []*domain.SyncState
	err := r.db.Where("user_id = ?", userID).Order("platform asc").Find(&states).Error
	if err != nil {
		return nil, err
	}
	return states, nil
}

func (r *syncStateRepository) TryAcquire(stateID string) error {
	now := time.Now()
	result := r.db.Model(&domain.SyncState{}).
		Where("id = ? AND is_syncing = ?", stateID, false).
		Updates(map[string]interface{}{
			"is_syncing":      true,
			"sync_started_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return platform.ErrSyncInProgress
	}
	return nil
}

func (r *syncStateRepository) Release(stateID string, cursor string, processed int, errMsg string, advance bool) error {
	updates := map[string]interface{}{
		"is_syncing":      false,
		"sync_started_at": nil,
		"last_error":      errMsg,
	}
	if advance {
		now := time.Now()
		updates["cursor"] = cursor
		updates["last_sync_at"] = now
		updates["initial_sync_complete"] = true
		updates["messages_processed"] = gorm.Expr("messages_processed + ?", processed)
	}
	return r.db.Model(&domain.SyncState{}).Where("id = ?", stateID).Updates(updates).Error
}

func (r *syncStateRepository) ForceRelease(stateID string) error {
	return r.db.Model(&domain.SyncState{}).
		Where("id = ?", stateID).
		Updates(map[string]interface{}{
			"is_syncing":      false,
			"sync_started_at": nil,
		}).Error
}

func (r *syncStateRepository) Reset(stateID string) error {
	return r.db.Model(&domain.SyncState{}).
		Where("id = ?", stateID).
		Updates(map[string]interface{}{
			"cursor":                "",
			"initial_sync_complete": false,
			"is_syncing":            false,
			"sync_started_at":       nil,
			"last_error":            "",
		}).Error
}
