package repository

import (
	"strings"
	"time"

	contactdomain "unibox-backend/internal/contact/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// suppressionRepository implements SuppressionRepository interface
type suppressionRepository struct {
	db *gorm.DB
}

func NewSuppressionRepository(db *gorm.DB) SuppressionRepository {
	return &suppressionRepository{db: db}
}

func (r *suppressionRepository) Create(s *contactdomain.SuppressedIdentity) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = time.Now()
	err := r.db.Create(s).Error
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate") {
		// Already suppressed; rejection replay is a no-op.
		return nil
	}
	return err
}

func (r *suppressionRepository) IsSuppressed(userID, platform, remoteContactID, email string) (bool, error) {
	query := r.db.Model(&contactdomain.SuppressedIdentity{}).
		Where("user_id = ? AND platform = ? AND remote_contact_id = ?", userID, platform, remoteContactID)
	if email != "" {
		query = r.db.Model(&contactdomain.SuppressedIdentity{}).
			Where("user_id = ?", userID).
			Where("(platform = ? AND remote_contact_id = ?) OR LOWER(email) = ?",
				platform, remoteContactID, strings.ToLower(email))
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *suppressionRepository) ListByUser(userID string) ([]*contactdomain.SuppressedIdentity, error) {
	var items []*contactdomain.SuppressedIdentity
	err := r.db.Where("user_id = ?", userID).Order("created_at desc").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *suppressionRepository) Delete(userID, suppressionID string) error {
	return r.db.Where("user_id = ? AND id = ?", userID, suppressionID).
		Delete(&contactdomain.SuppressedIdentity{}).Error
}
