package domain

import "time"

// PlatformCredential stores one user's connection to one external platform.
// Token and password fields are encrypted at rest; the credential provider
// decrypts them on the way out. Acquisition of these credentials (the OAuth
// dance, IMAP setup forms) happens outside this service.
type PlatformCredential struct {
	ID       string `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"index:idx_user_platform_cred,unique;not null"`
	Platform string `json:"platform" gorm:"index:idx_user_platform_cred,unique;not null"`
	Enabled  bool   `json:"enabled" gorm:"default:true"`

	// AccountEmail is the remote account's address (the Gmail address, the
	// Slack profile email). Webhook deliveries are routed back to a user
	// through it.
	AccountEmail string `json:"account_email,omitempty" gorm:"index"`

	// OAuth platforms (gmail, slack)
	AccessToken  string    `json:"-" gorm:"type:text"`
	RefreshToken string    `json:"-" gorm:"type:text"`
	TokenExpiry  time.Time `json:"token_expiry,omitempty"`

	// IMAP
	ImapServer   string `json:"imap_server,omitempty"`
	ImapPort     int    `json:"imap_port,omitempty"`
	ImapUsername string `json:"imap_username,omitempty"`
	ImapPassword string `json:"-" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expires reports whether this platform's tokens expire at all.
func (c *PlatformCredential) Expires() bool {
	return !c.TokenExpiry.IsZero()
}
