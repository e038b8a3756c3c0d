package dto

// TriggerSyncRequest optionally narrows the sync to specific platforms.
type TriggerSyncRequest struct {
	Platforms []string `json:"platforms"`
	Force     bool     `json:"force"`
}

// WebhookRequest is the generic webhook payload for platforms that deliver
// over plain HTTP. The account email routes the delivery to a user.
type WebhookRequest struct {
	AccountEmail string `json:"account_email" binding:"required"`
}

// ResetRequest clears sync state for one platform.
type ResetRequest struct {
	Platform string `json:"platform" binding:"required"`
	Force    bool   `json:"force"`
}
