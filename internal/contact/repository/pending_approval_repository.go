package repository

import (
	"time"

	contactdomain "unibox-backend/internal/contact/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// pendingApprovalRepository implements PendingApprovalRepository interface
type pendingApprovalRepository struct {
	db *gorm.DB
}

func NewPendingApprovalRepository(db *gorm.DB) PendingApprovalRepository {
	return &pendingApprovalRepository{db: db}
}

func (r *pendingApprovalRepository) Create(pending *contactdomain.PendingApproval) error {
	now := time.Now()
	if pending.ID == "" {
		pending.ID = uuid.New().String()
	}
	pending.Status = contactdomain.StatusPending
	pending.CreatedAt = now
	pending.UpdatedAt = now
	return r.db.Create(pending).Error
}

func (r *pendingApprovalRepository) GetByID(userID, pendingID string) (*contactdomain.PendingApproval, error) {
	var pending contactdomain.PendingApproval
	err := r.db.Where("user_id = ? AND id = ?", userID, pendingID).First(&pending).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &pending, nil
}

func (r *pendingApprovalRepository) ListOpen(userID string) ([]*contactdomain.PendingApproval, error) {
	var items []*contactdomain.PendingApproval
	err := r.db.Where("user_id = ? AND status = ?", userID, contactdomain.StatusPending).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *pendingApprovalRepository) FindOpenByIdentity(userID, platform, remoteContactID string) (*contactdomain.PendingApproval, error) {
	var pending contactdomain.PendingApproval
	err := r.db.Where("user_id = ? AND platform = ? AND remote_contact_id = ? AND status = ?",
		userID, platform, remoteContactID, contactdomain.StatusPending).
		First(&pending).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &pending, nil
}

// Close transitions pending → terminal exactly once. The status guard in the
// WHERE clause makes concurrent decisions race-safe: only one wins.
func (r *pendingApprovalRepository) Close(pendingID, status, decidedContactID string) (bool, error) {
	now := time.Now()
	result := r.db.Model(&contactdomain.PendingApproval{}).
		Where("id = ? AND status = ?", pendingID, contactdomain.StatusPending).
		Updates(map[string]interface{}{
			"status":             status,
			"decided_contact_id": decidedContactID,
			"decided_at":         now,
			"updated_at":         now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
