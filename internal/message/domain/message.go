package domain

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
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

// GetString returns a string field from the bag, or "" when absent.
func (m JSONMap) GetString(key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ThreadSummaryPrefix keys the distinguished thread-summary message sub-type.
const ThreadSummaryPrefix = "thread_summary_"

// Platform-data bag keys written by the sync pipeline and read by the
// threading engine.
const (
	DataThreadID      = "thread_id"
	DataDirection     = "direction"
	DataSubject       = "subject"
	DataSenderAddress = "sender_address"
	DataSummary       = "summary"
	DataKeyPoints     = "key_points"
	DataActionItems   = "action_items"
	DataUrgency       = "urgency"
)

// Message is one communication unit pulled from a platform. Re-ingesting the
// same remote message is a no-op: (user_id, platform, platform_message_id)
// is the natural key.
type Message struct {
	ID                string     `json:"id" gorm:"primaryKey"`
	UserID            string     `json:"user_id" gorm:"uniqueIndex:idx_message_natural_key;not null"`
	Platform          string     `json:"platform" gorm:"uniqueIndex:idx_message_natural_key;not null"`
	PlatformMessageID string     `json:"platform_message_id" gorm:"uniqueIndex:idx_message_natural_key;not null"`
	ContactID         *string    `json:"contact_id,omitempty" gorm:"index"`
	Content           string     `json:"content" gorm:"type:text"`
	Timestamp         time.Time  `json:"timestamp" gorm:"index"`
	PlatformData      JSONMap    `json:"platform_data,omitempty" gorm:"type:text"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsThreadSummary reports whether this row is a thread-summary record.
func (m *Message) IsThreadSummary() bool {
	return strings.HasPrefix(m.PlatformMessageID, ThreadSummaryPrefix)
}

// SummaryThreadID extracts the thread id a summary record belongs to.
func (m *Message) SummaryThreadID() string {
	return strings.TrimPrefix(m.PlatformMessageID, ThreadSummaryPrefix)
}

// ThreadKey is the thread id from platform metadata, falling back to the
// message's own remote id (singleton thread).
func (m *Message) ThreadKey() string {
	if tid := m.PlatformData.GetString(DataThreadID); tid != "" {
		return tid
	}
	return m.PlatformMessageID
}
