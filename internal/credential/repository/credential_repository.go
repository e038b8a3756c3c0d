package repository

import (
	"time"

	creddomain "unibox-backend/internal/credential/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CredentialRepository defines persistence for platform credentials.
type CredentialRepository interface {
	GetByUserAndPlatform(userID, platform string) (*creddomain.PlatformCredential, error)
	GetByUser(userID string) ([]*creddomain.PlatformCredential, error)
	Upsert(cred *creddomain.PlatformCredential) error
	UpdateTokens(userID, platform, accessToken, refreshToken string, expiry time.Time) error
	// FindUserIDByAccountEmail maps a remote account address back to the
	// owning user, for webhook routing. Returns "" when unknown.
	FindUserIDByAccountEmail(platform, accountEmail string) (string, error)
	// ListByPlatform returns every enabled credential for one platform.
	ListByPlatform(platform string) ([]*creddomain.PlatformCredential, error)
}

type credentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) GetByUserAndPlatform(userID, platform string) (*creddomain.PlatformCredential, error) {
	var cred creddomain.PlatformCredential
	err := r.db.Where("user_id = ? AND platform = ?", userID, platform).First(&cred).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) GetByUser(userID string) ([]*creddomain.PlatformCredential, error) {
	var creds []*creddomain.PlatformCredential
	if err := r.db.Where("user_id = ?", userID).Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *credentialRepository) Upsert(cred *creddomain.PlatformCredential) error {
	existing, err := r.GetByUserAndPlatform(cred.UserID, cred.Platform)
	if err != nil {
		return err
	}
	now := time.Now()
	if existing == nil {
		cred.ID = uuid.New().String()
		cred.CreatedAt = now
		cred.UpdatedAt = now
		return r.db.Create(cred).Error
	}
	cred.ID = existing.ID
	cred.CreatedAt = existing.CreatedAt
	cred.UpdatedAt = now
	return r.db.Save(cred).Error
}

func (r *credentialRepository) UpdateTokens(userID, platform, accessToken, refreshToken string, expiry time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"token_expiry": expiry,
		"updated_at":   time.Now(),
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return r.db.Model(&creddomain.PlatformCredential{}).
		Where("user_id = ? AND platform = ?", userID, platform).
		Updates(updates).Error
}

func (r *credentialRepository) FindUserIDByAccountEmail(platform, accountEmail string) (string, error) {
	var cred creddomain.PlatformCredential
	err := r.db.Where("platform = ? AND LOWER(account_email) = LOWER(?)", platform, accountEmail).
		First(&cred).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return cred.UserID, nil
}

func (r *credentialRepository) ListByPlatform(platform string) ([]*creddomain.PlatformCredential, error) {
	var creds []*creddomain.PlatformCredential
	err := r.db.Where("platform = ? AND enabled = ?", platform, true).Find(&creds).Error
	if err != nil {
		return nil, err
	}
	return creds, nil
}
