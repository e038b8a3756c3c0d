package domain

import (
	"time"

	"gorm.io/gorm"
)

// SyncState tracks incremental sync progress for one (user, platform) pair.
// Cursor is opaque: each platform adapter decides what it encodes (a Gmail
// history id, an IMAP UID, a Slack timestamp).
type SyncState struct {
	ID       string `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"not null;uniqueIndex:idx_sync_state_user_platform"`
	Platform string `json:"platform" gorm:"not null;uniqueIndex:idx_sync_state_user_platform"`

	Cursor              string `json:"cursor"`
	InitialSyncComplete bool   `json:"initial_sync_complete" gorm:"default:false"`

	// IsSyncing is the mutual-exclusion flag: only one sync run may hold
	// it per (user, platform). SyncStartedAt bounds how long a crashed
	// run can keep it.
	IsSyncing     bool       `json:"is_syncing" gorm:"default:false"`
	SyncStartedAt *time.Time `json:"sync_started_at"`

	LastSyncAt        *time.Time `json:"last_sync_at"`
	LastError         string     `json:"last_error"`
	MessagesProcessed int        `json:"messages_processed" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Stale reports whether the last successful sync is older than the threshold.
// A state that never synced is always stale.
func (s *SyncState) Stale(threshold time.Duration) bool {
	if s.LastSyncAt == nil {
		return true
	}
	return time.Since(*s.LastSyncAt) > threshold
}

// Fresh reports whether the last successful sync is younger than the threshold.
func (s *SyncState) Fresh(threshold time.Duration) bool {
	if s.LastSyncAt == nil {
		return false
	}
	return time.Since(*s.LastSyncAt) <= threshold
}

// SyncingLongerThan reports whether a live sync flag has been held past the
// given duration, which suggests the owning run crashed without releasing.
func (s *SyncState) SyncingLongerThan(d time.Duration) bool {
	if !s.IsSyncing || s.SyncStartedAt == nil {
		return false
	}
	return time.Since(*s.SyncStartedAt) > d
}
