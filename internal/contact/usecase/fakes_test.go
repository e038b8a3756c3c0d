package usecase

import (
	"errors"
	"strings"
	"sync"
	"time"

	contactdomain "unibox-backend/internal/contact/domain"
	msgdomain "unibox-backend/internal/message/domain"
	"unibox-backend/internal/platform"

	"github.com/google/uuid"
)

// In-memory repository fakes. They mirror the gorm implementations closely
// enough for usecase tests: same uniqueness checks, same nil-on-not-found
// conventions.

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts []*contactdomain.UnifiedContact
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{}
}

func (r *fakeContactRepo) GetByID(userID, contactID string) (*contactdomain.UnifiedContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.UserID == userID && c.ID == contactID {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeContactRepo) ListByUser(userID string) ([]*contactdomain.UnifiedContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contactdomain.UnifiedContact
	for _, c := range r.contacts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeContactRepo) CountByUser(userID string) (int64, error) {
	list, _ := r.ListByUser(userID)
	return int64(len(list)), nil
}

func (r *fakeContactRepo) FindByIdentity(userID, platformName, platformContactID string) (*contactdomain.UnifiedContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.UserID != userID {
			continue
		}
		for _, id := range c.Identities {
			if id.Platform == platformName && id.PlatformContactID == platformContactID {
				return c, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeContactRepo) FindByEmail(userID, email string) ([]*contactdomain.UnifiedContact, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contactdomain.UnifiedContact
	for _, c := range r.contacts {
		if c.UserID != userID {
			continue
		}
		if strings.ToLower(c.PrimaryEmail) == email {
			out = append(out, c)
			continue
		}
		for _, id := range c.Identities {
			if strings.ToLower(id.Email) == email {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeContactRepo) CreateWithIdentity(contact *contactdomain.UnifiedContact, identity *contactdomain.PlatformIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.identityTakenLocked(contact.UserID, identity) {
		return platform.ErrIdentityTaken
	}
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	identity.ID = uuid.New().String()
	identity.ContactID = contact.ID
	identity.UserID = contact.UserID
	contact.Identities = append(contact.Identities, *identity)
	r.contacts = append(r.contacts, contact)
	return nil
}

func (r *fakeContactRepo) AttachIdentity(userID, contactID string, identity *contactdomain.PlatformIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity.UserID = userID
	if r.identityTakenLocked(userID, identity) {
		return platform.ErrIdentityTaken
	}
	for _, c := range r.contacts {
		if c.UserID == userID && c.ID == contactID {
			for _, id := range c.Identities {
				if id.Platform == identity.Platform {
					return platform.ErrPlatformAlreadyLinked
				}
			}
			identity.ID = uuid.New().String()
			identity.ContactID = contactID
			c.Identities = append(c.Identities, *identity)
			if c.PrimaryEmail == "" && identity.Email != "" {
				c.PrimaryEmail = identity.Email
			}
			return nil
		}
	}
	return errors.New("contact not found")
}

func (r *fakeContactRepo) identityTakenLocked(userID string, identity *contactdomain.PlatformIdentity) bool {
	for _, c := range r.contacts {
		if c.UserID != userID {
			continue
		}
		for _, id := range c.Identities {
			if id.Platform == identity.Platform && id.PlatformContactID == identity.PlatformContactID {
				return true
			}
		}
	}
	return false
}

type fakePendingRepo struct {
	mu    sync.Mutex
	items []*contactdomain.PendingApproval
}

func newFakePendingRepo() *fakePendingRepo {
	return &fakePendingRepo{}
}

func (r *fakePendingRepo) Create(pending *contactdomain.PendingApproval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pending.ID == "" {
		pending.ID = uuid.New().String()
	}
	pending.Status = contactdomain.StatusPending
	pending.CreatedAt = time.Now()
	r.items = append(r.items, pending)
	return nil
}

func (r *fakePendingRepo) GetByID(userID, pendingID string) (*contactdomain.PendingApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.UserID == userID && p.ID == pendingID {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePendingRepo) ListOpen(userID string) ([]*contactdomain.PendingApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contactdomain.PendingApproval
	for _, p := range r.items {
		if p.UserID == userID && p.Status == contactdomain.StatusPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePendingRepo) FindOpenByIdentity(userID, platformName, remoteContactID string) (*contactdomain.PendingApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.UserID == userID && p.Platform == platformName &&
			p.RemoteContactID == remoteContactID && p.Status == contactdomain.StatusPending {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePendingRepo) Close(pendingID, status, decidedContactID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.ID == pendingID && p.Status == contactdomain.StatusPending {
			now := time.Now()
			p.Status = status
			p.DecidedContactID = decidedContactID
			p.DecidedAt = &now
			return true, nil
		}
	}
	return false, nil
}

type fakeSuppressionRepo struct {
	mu    sync.Mutex
	items []*contactdomain.SuppressedIdentity
}

func newFakeSuppressionRepo() *fakeSuppressionRepo {
	return &fakeSuppressionRepo{}
}

func (r *fakeSuppressionRepo) Create(s *contactdomain.SuppressedIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.UserID == s.UserID && existing.Platform == s.Platform &&
			existing.RemoteContactID == s.RemoteContactID {
			return nil
		}
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = time.Now()
	r.items = append(r.items, s)
	return nil
}

func (r *fakeSuppressionRepo) IsSuppressed(userID, platformName, remoteContactID, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.items {
		if s.UserID != userID {
			continue
		}
		if s.Platform == platformName && s.RemoteContactID == remoteContactID {
			return true, nil
		}
		if email != "" && strings.EqualFold(s.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSuppressionRepo) ListByUser(userID string) ([]*contactdomain.SuppressedIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contactdomain.SuppressedIdentity
	for _, s := range r.items {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSuppressionRepo) Delete(userID, suppressionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.items {
		if s.UserID == userID && s.ID == suppressionID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*msgdomain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Upsert(message *msgdomain.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.UserID == message.UserID && m.Platform == message.Platform &&
			m.PlatformMessageID == message.PlatformMessageID {
			m.Content = message.Content
			m.ContactID = message.ContactID
			m.Timestamp = message.Timestamp
			m.PlatformData = message.PlatformData
			return false, nil
		}
	}
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	r.messages = append(r.messages, message)
	return true, nil
}

func (r *fakeMessageRepo) GetByNaturalKey(userID, platformName, platformMessageID string) (*msgdomain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.UserID == userID && m.Platform == platformName && m.PlatformMessageID == platformMessageID {
			return m, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) ListByUser(userID string) ([]*msgdomain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*msgdomain.Message
	for _, m := range r.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) ListByThread(userID, threadID string) ([]*msgdomain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*msgdomain.Message
	for _, m := range r.messages {
		if m.UserID == userID && !m.IsThreadSummary() && m.ThreadKey() == threadID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) CountByUser(userID string) (int64, error) {
	list, _ := r.ListByUser(userID)
	return int64(len(list)), nil
}

func (r *fakeMessageRepo) AttachContactBySenderEmail(userID, senderEmail, contactID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for _, m := range r.messages {
		if m.UserID != userID || m.ContactID != nil {
			continue
		}
		addr := m.PlatformData.GetString(msgdomain.DataSenderAddress)
		if strings.Contains(strings.ToLower(addr), strings.ToLower(senderEmail)) {
			id := contactID
			m.ContactID = &id
			updated++
		}
	}
	return updated, nil
}

// capturedEvent records one SSE fanout call for assertions.
type capturedEvent struct {
	UserID  string
	Type    string
	Payload interface{}
}

type fakeEventService struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (s *fakeEventService) SendToUser(userID string, eventType string, payload interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, capturedEvent{UserID: userID, Type: eventType, Payload: payload})
}

func (s *fakeEventService) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}
