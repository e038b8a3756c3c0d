package dto

import contactdomain "unibox-backend/internal/contact/domain"

// ContactsResponse wraps the unified contact list.
type ContactsResponse struct {
	Contacts []*contactdomain.UnifiedContact `json:"contacts"`
	Total    int64                           `json:"total"`
}

// PendingResponse wraps the open approvals list.
type PendingResponse struct {
	Pending []*contactdomain.PendingApproval `json:"pending"`
}

// DecisionRequest submits one terminal decision for a pending approval.
type DecisionRequest struct {
	Decision        string `json:"decision" binding:"required"`
	TargetContactID string `json:"target_contact_id"`
}

// SuppressionsResponse wraps the user's suppressed identities.
type SuppressionsResponse struct {
	Suppressions []*contactdomain.SuppressedIdentity `json:"suppressions"`
}
