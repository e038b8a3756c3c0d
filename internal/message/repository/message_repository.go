package repository

import (
	"fmt"
	"strings"
	"time"

	msgdomain "unibox-backend/internal/message/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// messageRepository implements MessageRepository interface
type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Upsert(message *msgdomain.Message) (bool, error) {
	var existing msgdomain.Message
	err := r.db.Where("user_id = ? AND platform = ? AND platform_message_id = ?",
		message.UserID, message.Platform, message.PlatformMessageID).
		First(&existing).Error

	now := time.Now()
	if err == gorm.ErrRecordNotFound {
		message.ID = uuid.New().String()
		message.CreatedAt = now
		message.UpdatedAt = now
		if createErr := r.db.Create(message).Error; createErr != nil {
			return false, createErr
		}
		return true, nil
	} else if err != nil {
		return false, err
	}

	// Re-ingestion of the same window: update mutable fields in place,
	// never duplicate.
	existing.Content = message.Content
	existing.Timestamp = message.Timestamp
	existing.PlatformData = message.PlatformData
	if message.ContactID != nil {
		existing.ContactID = message.ContactID
	}
	existing.UpdatedAt = now
	if saveErr := r.db.Save(&existing).Error; saveErr != nil {
		return false, saveErr
	}
	*message = existing
	return false, nil
}

func (r *messageRepository) GetByNaturalKey(userID, platform, platformMessageID string) (*msgdomain.Message, error) {
	var message msgdomain.Message
	err := r.db.Where("user_id = ? AND platform = ? AND platform_message_id = ?",
		userID, platform, platformMessageID).First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) ListByUser(userID string) ([]*msgdomain.Message, error) {
	var messages []*msgdomain.Message
	err := r.db.Where("user_id = ?", userID).
		Order("timestamp asc, created_at asc").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) ListByThread(userID, threadID string) ([]*msgdomain.Message, error) {
	all, err := r.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	// Thread membership is computed, not stored: filter on the extracted key.
	var messages []*msgdomain.Message
	for _, m := range all {
		if m.IsThreadSummary() {
			continue
		}
		if m.ThreadKey() == threadID {
			messages = append(messages, m)
		}
	}
	return messages, nil
}

func (r *messageRepository) CountByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&msgdomain.Message{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *messageRepository) AttachContactBySenderEmail(userID, senderEmail, contactID string) (int64, error) {
	senderEmail = strings.ToLower(strings.TrimSpace(senderEmail))
	if senderEmail == "" {
		return 0, nil
	}
	// The sender address lives in the platform-data bag as "Name <email>" or a
	// bare address; match on the email portion.
	pattern := fmt.Sprintf("%%%s%%", senderEmail)
	result := r.db.Model(&msgdomain.Message{}).
		Where("user_id = ? AND contact_id IS NULL", userID).
		Where("LOWER(platform_data) LIKE ?", pattern).
		Updates(map[string]interface{}{"contact_id": contactID, "updated_at": time.Now()})
	return result.RowsAffected, result.Error
}
