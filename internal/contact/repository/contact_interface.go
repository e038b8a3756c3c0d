package repository

import contactdomain "unibox-backend/internal/contact/domain"

// ContactRepository defines persistence for the unified contact graph.
type ContactRepository interface {
	GetByID(userID, contactID string) (*contactdomain.UnifiedContact, error)
	ListByUser(userID string) ([]*contactdomain.UnifiedContact, error)
	CountByUser(userID string) (int64, error)

	// FindByIdentity resolves a (platform, remote id) pair to its unified
	// contact, or nil when no definitive link exists.
	FindByIdentity(userID, platform, platformContactID string) (*contactdomain.UnifiedContact, error)

	// FindByEmail returns contacts whose primary email or any identity email
	// matches exactly (case-insensitive).
	FindByEmail(userID, email string) ([]*contactdomain.UnifiedContact, error)

	// CreateWithIdentity persists a new contact and its first identity as one
	// transaction. Returns platform.ErrIdentityTaken if the identity is
	// already attached elsewhere.
	CreateWithIdentity(contact *contactdomain.UnifiedContact, identity *contactdomain.PlatformIdentity) error

	// AttachIdentity adds a platform identity to an existing contact as one
	// transaction, updating the contact's primary email if it had none.
	AttachIdentity(userID, contactID string, identity *contactdomain.PlatformIdentity) error
}

// PendingApprovalRepository defines persistence for the approval workbench.
type PendingApprovalRepository interface {
	Create(pending *contactdomain.PendingApproval) error
	GetByID(userID, pendingID string) (*contactdomain.PendingApproval, error)
	ListOpen(userID string) ([]*contactdomain.PendingApproval, error)
	FindOpenByIdentity(userID, platform, remoteContactID string) (*contactdomain.PendingApproval, error)

	// Close applies a terminal status. It only succeeds when the row is still
	// pending; a zero-row update means the item was already closed.
	Close(pendingID, status, decidedContactID string) (bool, error)
}

// SuppressionRepository records rejected identities per user.
type SuppressionRepository interface {
	Create(s *contactdomain.SuppressedIdentity) error
	IsSuppressed(userID, platform, remoteContactID, email string) (bool, error)
	ListByUser(userID string) ([]*contactdomain.SuppressedIdentity, error)
	Delete(userID, suppressionID string) error
}
