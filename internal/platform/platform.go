package platform

import (
	"context"
	"time"
)

// Platform names known to the engine. Adapters register under one of these.
const (
	Gmail = "gmail"
	Slack = "slack"
	IMAP  = "imap"
)

// Contact is the normalized shape every adapter produces.
// Engines downstream never branch on platform-specific field names.
type Contact struct {
	RemoteID  string `json:"remote_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Handle    string `json:"handle,omitempty"`
	Phone     string `json:"phone,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// Direction of a message relative to the syncing user.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message is the normalized message shape.
type Message struct {
	RemoteID        string    `json:"remote_id"`
	ThreadID        string    `json:"thread_id,omitempty"`
	SenderRemoteID  string    `json:"sender_remote_id,omitempty"`
	SenderAddress   string    `json:"sender_address,omitempty"` // "Name <email>" when the platform provides it
	Subject         string    `json:"subject,omitempty"`
	Content         string    `json:"content"`
	Direction       string    `json:"direction"`
	Timestamp       time.Time `json:"timestamp"`
}

// FetchResult is one incremental window of platform data.
type FetchResult struct {
	Contacts   []Contact
	Messages   []Message
	NextCursor string
}

// Credentials carries whatever the adapter needs to talk to the remote API.
// Filled in by the credential provider, never read from storage by adapters.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time

	// IMAP
	Host     string
	Port     int
	Username string
	Password string

	// OnTokenRefresh is invoked when the adapter refreshes an OAuth token so
	// the new token can be persisted.
	OnTokenRefresh func(accessToken, refreshToken string, expiry time.Time) error
}

// Adapter pulls contacts and messages from one platform since a cursor.
// Implementations must return typed errors (RateLimitedError, ErrNotAuthenticated,
// TransientError) so the orchestrator can classify failures.
type Adapter interface {
	Platform() string
	FetchSince(ctx context.Context, creds Credentials, cursor string) (*FetchResult, error)
}

// Registry maps platform names to adapters.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

func (r *Registry) Get(platform string) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
