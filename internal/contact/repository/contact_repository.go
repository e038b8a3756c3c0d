package repository

import (
	"strings"
	"time"

	contactdomain "unibox-backend/internal/contact/domain"
	"unibox-backend/internal/platform"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// contactRepository implements ContactRepository interface
type contactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) GetByID(userID, contactID string) (*contactdomain.UnifiedContact, error) {
	var contact contactdomain.UnifiedContact
	err := r.db.Preload("Identities").
		Where("user_id = ? AND id = ?", userID, contactID).
		First(&contact).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) ListByUser(userID string) ([]*contactdomain.UnifiedContact, error) {
	var contacts []*contactdomain.UnifiedContact
	err := r.db.Preload("Identities").
		Where("user_id = ?", userID).
		Order("display_name asc").
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *contactRepository) CountByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&contactdomain.UnifiedContact{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *contactRepository) FindByIdentity(userID, platformName, platformContactID string) (*contactdomain.UnifiedContact, error) {
	var identity contactdomain.PlatformIdentity
	err := r.db.Where("user_id = ? AND platform = ? AND platform_contact_id = ?",
		userID, platformName, platformContactID).First(&identity).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return r.GetByID(userID, identity.ContactID)
}

func (r *contactRepository) FindByEmail(userID, email string) ([]*contactdomain.UnifiedContact, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}

	// Match either the contact's primary email or any identity's email.
	var identityContactIDs []string
	if err := r.db.Model(&contactdomain.PlatformIdentity{}).
		Where("user_id = ? AND LOWER(email) = ?", userID, email).
		Pluck("contact_id", &identityContactIDs).Error; err != nil {
		return nil, err
	}

	query := r.db.Preload("Identities").Where("user_id = ?", userID)
	if len(identityContactIDs) > 0 {
		query = query.Where("LOWER(primary_email) = ? OR id IN ?", email, identityContactIDs)
	} else {
		query = query.Where("LOWER(primary_email) = ?", email)
	}

	var contacts []*contactdomain.UnifiedContact
	if err := query.Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *contactRepository) CreateWithIdentity(contact *contactdomain.UnifiedContact, identity *contactdomain.PlatformIdentity) error {
	now := time.Now()
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	contact.CreatedAt = now
	contact.UpdatedAt = now

	identity.ID = uuid.New().String()
	identity.ContactID = contact.ID
	identity.UserID = contact.UserID
	identity.CreatedAt = now

	return r.db.Transaction(func(tx *gorm.DB) error {
		if taken, err := identityTaken(tx, identity); err != nil {
			return err
		} else if taken {
			return platform.ErrIdentityTaken
		}
		if err := tx.Create(contact).Error; err != nil {
			return err
		}
		return tx.Create(identity).Error
	})
}

func (r *contactRepository) AttachIdentity(userID, contactID string, identity *contactdomain.PlatformIdentity) error {
	identity.ID = uuid.New().String()
	identity.ContactID = contactID
	identity.UserID = userID
	identity.CreatedAt = time.Now()

	return r.db.Transaction(func(tx *gorm.DB) error {
		var contact contactdomain.UnifiedContact
		if err := tx.Where("user_id = ? AND id = ?", userID, contactID).First(&contact).Error; err != nil {
			return err
		}

		if taken, err := identityTaken(tx, identity); err != nil {
			return err
		} else if taken {
			return platform.ErrIdentityTaken
		}

		// At most one identity per platform on a contact.
		var samePlatform int64
		if err := tx.Model(&contactdomain.PlatformIdentity{}).
			Where("user_id = ? AND contact_id = ? AND platform = ?", userID, contactID, identity.Platform).
			Count(&samePlatform).Error; err != nil {
			return err
		}
		if samePlatform > 0 {
			return platform.ErrPlatformAlreadyLinked
		}

		if err := tx.Create(identity).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"updated_at": time.Now()}
		if contact.PrimaryEmail == "" && identity.Email != "" {
			updates["primary_email"] = identity.Email
		}
		return tx.Model(&contact).Updates(updates).Error
	})
}

// identityTaken checks the uniqueness invariant inside the write transaction.
// The unique index is the backstop for concurrent writers.
func identityTaken(tx *gorm.DB, identity *contactdomain.PlatformIdentity) (bool, error) {
	var count int64
	err := tx.Model(&contactdomain.PlatformIdentity{}).
		Where("user_id = ? AND platform = ? AND platform_contact_id = ?",
			identity.UserID, identity.Platform, identity.PlatformContactID).
		Count(&count).Error
	return count > 0, err
}
