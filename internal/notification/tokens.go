package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceToken is one FCM registration for a user's device.
type DeviceToken struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Token     string    `json:"token" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeviceTokenRepository defines persistence for device tokens
type DeviceTokenRepository interface {
	Register(userID, token string) error
	TokensForUser(userID string) ([]string, error)
	Delete(token string) error
}

type deviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

func (r *deviceTokenRepository) Register(userID, token string) error {
	existing := DeviceToken{Token: token}
	result := r.db.Where("token = ?", token).
		Attrs(DeviceToken{ID: uuid.New().String(), UserID: userID}).
		FirstOrCreate(&existing)
	if result.Error != nil {
		return result.Error
	}
	// A token re-registered by a different user moves to that user.
	if existing.UserID != userID {
		return r.db.Model(&DeviceToken{}).Where("token = ?", token).
			Update("user_id", userID).Error
	}
	return nil
}

func (r *deviceTokenRepository) TokensForUser(userID string) ([]string, error) {
	var tokens []string
	err := r.db.Model(&DeviceToken{}).Where("user_id = ?", userID).
		Pluck("token", &tokens).Error
	return tokens, err
}

func (r *deviceTokenRepository) Delete(token string) error {
	return r.db.Where("token = ?", token).Delete(&DeviceToken{}).Error
}
