package domain

import "time"

// Pending approval decisions.
const (
	DecisionApproveNew   = "approve_new"
	DecisionApproveMerge = "approve_merge"
	DecisionReject       = "reject"
)

// Pending approval statuses. An item is open while status is pending and
// closes exactly once.
const (
	StatusPending       = "pending"
	StatusApprovedNew   = "approved_new"
	StatusApprovedMerge = "approved_merge"
	StatusRejected      = "rejected"
)

// PendingApproval holds a platform contact the unification engine could not
// confidently place. The normalized payload is flattened into columns so the
// workbench never parses platform-specific blobs.
type PendingApproval struct {
	ID       string `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"index;not null"`
	Platform string `json:"platform" gorm:"not null"`

	RemoteContactID string `json:"remote_contact_id" gorm:"not null"`
	Name            string `json:"name"`
	Email           string `json:"email,omitempty"`
	Handle          string `json:"handle,omitempty"`
	Phone           string `json:"phone,omitempty"`
	AvatarURL       string `json:"avatar_url,omitempty"`

	// Best candidate found during matching, if any.
	CandidateContactID  string  `json:"candidate_contact_id,omitempty"`
	CandidateConfidence float64 `json:"candidate_confidence,omitempty"`
	MatchReason         string  `json:"match_reason,omitempty"`

	Status           string     `json:"status" gorm:"index;default:pending"`
	DecidedContactID string     `json:"decided_contact_id,omitempty"`
	DecidedAt        *time.Time `json:"decided_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Closed reports whether a terminal decision has been applied.
func (p *PendingApproval) Closed() bool {
	return p.Status != StatusPending
}

// SuppressedIdentity records a rejected sender so re-ingesting the same
// identity does not re-flag it. Persists until administratively cleared.
type SuppressedIdentity struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"user_id" gorm:"uniqueIndex:idx_suppressed_identity;not null"`
	Platform        string    `json:"platform" gorm:"uniqueIndex:idx_suppressed_identity;not null"`
	RemoteContactID string    `json:"remote_contact_id" gorm:"uniqueIndex:idx_suppressed_identity;not null"`
	Email           string    `json:"email,omitempty" gorm:"index"`
	Reason          string    `json:"reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
