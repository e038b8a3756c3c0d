package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONMap is a custom type to handle JSON objects in GORM
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	if len(bytes) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// UnifiedContact is the canonical person record merging identities from
// multiple platforms. Never deleted by the sync engine.
type UnifiedContact struct {
	ID           string             `json:"id" gorm:"primaryKey"`
	UserID       string             `json:"user_id" gorm:"index;not null"`
	DisplayName  string             `json:"display_name"`
	PrimaryEmail string             `json:"primary_email,omitempty" gorm:"index"`
	Identities   []PlatformIdentity `json:"identities" gorm:"foreignKey:ContactID"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// IdentityFor returns the contact's identity on a platform, if linked.
func (c *UnifiedContact) IdentityFor(platform string) *PlatformIdentity {
	for i := range c.Identities {
		if c.Identities[i].Platform == platform {
			return &c.Identities[i]
		}
	}
	return nil
}

// PlatformIdentity is a contact's representation on one external platform.
// The unique index enforces that a (user, platform, remote id) triple is
// attached to at most one unified contact.
type PlatformIdentity struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	ContactID         string    `json:"contact_id" gorm:"index;not null"`
	UserID            string    `json:"user_id" gorm:"uniqueIndex:idx_platform_identity;not null"`
	Platform          string    `json:"platform" gorm:"uniqueIndex:idx_platform_identity;not null"`
	PlatformContactID string    `json:"platform_contact_id" gorm:"uniqueIndex:idx_platform_identity;not null"`
	Handle            string    `json:"handle,omitempty"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	RawData           JSONMap   `json:"raw_data,omitempty" gorm:"type:text"`
	CreatedAt         time.Time `json:"created_at"`
}
