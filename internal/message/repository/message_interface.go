package repository

import msgdomain "unibox-backend/internal/message/domain"

// MessageRepository defines persistence for synced messages.
type MessageRepository interface {
	// Upsert inserts by natural key or updates the existing row in place.
	// Returns true when a new row was created.
	Upsert(message *msgdomain.Message) (bool, error)

	GetByNaturalKey(userID, platform, platformMessageID string) (*msgdomain.Message, error)
	ListByUser(userID string) ([]*msgdomain.Message, error)
	ListByThread(userID, threadID string) ([]*msgdomain.Message, error)
	CountByUser(userID string) (int64, error)

	// AttachContactBySenderEmail re-attaches messages that were associated
	// only heuristically (by sender address) to a contact id. Returns the
	// number of rows updated.
	AttachContactBySenderEmail(userID, senderEmail, contactID string) (int64, error)
}
