package usecase

import (
	"context"
	"strings"
	"sync"

	contactdomain "unibox-backend/internal/contact/domain"
	msgdomain "unibox-backend/internal/message/domain"
	"unibox-backend/internal/platform"
	"unibox-backend/pkg/ai"

	"github.com/google/uuid"
)

// In-memory fakes for the repositories the threading and annotation services
// depend on. ListByUser preserves insertion order, matching the gorm
// implementation's timestamp-ordered reads closely enough for grouping tests.

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

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts map[string]*contactdomain.UnifiedContact
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[string]*contactdomain.UnifiedContact)}
}

func (r *fakeContactRepo) add(contact *contactdomain.UnifiedContact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	r.contacts[contact.ID] = contact
}

func (r *fakeContactRepo) GetByID(userID, contactID string) (*contactdomain.UnifiedContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[contactID]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	return c, nil
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
	return nil, nil
}

func (r *fakeContactRepo) CreateWithIdentity(contact *contactdomain.UnifiedContact, identity *contactdomain.PlatformIdentity) error {
	contact.Identities = append(contact.Identities, *identity)
	r.add(contact)
	return nil
}

func (r *fakeContactRepo) AttachIdentity(userID, contactID string, identity *contactdomain.PlatformIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contacts[contactID]; ok {
		for _, id := range c.Identities {
			if id.Platform == identity.Platform {
				return platform.ErrPlatformAlreadyLinked
			}
		}
		c.Identities = append(c.Identities, *identity)
	}
	return nil
}

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

// fakeAnnotator implements ai.AnnotatorService with a canned annotation.
type fakeAnnotator struct {
	mu         sync.Mutex
	threads    []string
	annotation ai.ThreadAnnotation
	err        error
}

func (a *fakeAnnotator) AnnotateThread(ctx context.Context, threadText string) (*ai.ThreadAnnotation, error) {
	a.mu.Lock()
	a.threads = append(a.threads, threadText)
	a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	out := a.annotation
	return &out, nil
}

func (a *fakeAnnotator) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.threads)
}
