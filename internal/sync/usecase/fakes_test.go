package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	contactdomain "unibox-backend/internal/contact/domain"
	msgdomain "unibox-backend/internal/message/domain"
	"unibox-backend/internal/platform"
	"unibox-backend/internal/sync/domain"

	"github.com/google/uuid"
)

// In-memory fakes covering every dependency of the scheduler and the
// orchestrator, so sync flows can be exercised end to end without a database
// or network.

type fakeSyncStateRepo struct {
	mu     sync.Mutex
	states map[string]*domain.SyncState
}

func newFakeSyncStateRepo() *fakeSyncStateRepo {
	return &fakeSyncStateRepo{states: make(map[string]*domain.SyncState)}
}

func (r *fakeSyncStateRepo) seed(state *domain.SyncState) *domain.SyncState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state.ID == "" {
		state.ID = uuid.New().String()
	}
	r.states[state.ID] = state
	return state
}

func (r *fakeSyncStateRepo) GetOrCreate(userID, platformName string) (*domain.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s.UserID == userID && s.Platform == platformName {
			return s, nil
		}
	}
	state := &domain.SyncState{ID: uuid.New().String(), UserID: userID, Platform: platformName}
	r.states[state.ID] = state
	return state, nil
}

func (r *fakeSyncStateRepo) GetByUserAndPlatform(userID, platformName string) (*domain.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s.UserID == userID && s.Platform == platformName {
			return s, nil
		}
	}
	return nil, errors.New("sync state not found")
}

func (r *fakeSyncStateRepo) GetStatesForUser(userID string) ([]*domain.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SyncState
	for _, s := range r.states {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSyncStateRepo) TryAcquire(stateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[stateID]
	if !ok || s.IsSyncing {
		return platform.ErrSyncInProgress
	}
	now := time.Now()
	s.IsSyncing = true
	s.SyncStartedAt = &now
	return nil
}

func (r *fakeSyncStateRepo) Release(stateID string, cursor string, processed int, errMsg string, advance bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[stateID]
	if !ok {
		return nil
	}
	s.IsSyncing = false
	s.SyncStartedAt = nil
	s.LastError = errMsg
	if advance {
		now := time.Now()
		s.Cursor = cursor
		s.LastSyncAt = &now
		s.InitialSyncComplete = true
		s.MessagesProcessed += processed
	}
	return nil
}

func (r *fakeSyncStateRepo) ForceRelease(stateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[stateID]; ok {
		s.IsSyncing = false
		s.SyncStartedAt = nil
	}
	return nil
}

func (r *fakeSyncStateRepo) Reset(stateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[stateID]; ok {
		s.Cursor = ""
		s.InitialSyncComplete = false
		s.IsSyncing = false
		s.SyncStartedAt = nil
		s.LastError = ""
	}
	return nil
}

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
	for _, c := range r.contacts {
		if c.UserID == userID && c.ID == contactID {
			for _, id := range c.Identities {
				if id.Platform == identity.Platform {
					return platform.ErrPlatformAlreadyLinked
				}
			}
			identity.ID = uuid.New().String()
			identity.ContactID = contactID
			identity.UserID = userID
			c.Identities = append(c.Identities, *identity)
			if c.PrimaryEmail == "" && identity.Email != "" {
				c.PrimaryEmail = identity.Email
			}
			return nil
		}
	}
	return nil
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
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
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
	return nil, nil
}

func (r *fakeSuppressionRepo) Delete(userID, suppressionID string) error {
	return nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  []*msgdomain.Message
	upsertErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Upsert(message *msgdomain.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return false, r.upsertErr
	}
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
	return 0, nil
}

// fakeCredProvider hands out canned credentials per (user, platform).
type fakeCredProvider struct {
	mu        sync.Mutex
	platforms map[string][]string
	credErrs  map[string]error
}

func newFakeCredProvider(userID string, platforms ...string) *fakeCredProvider {
	return &fakeCredProvider{
		platforms: map[string][]string{userID: platforms},
		credErrs:  make(map[string]error),
	}
}

func (p *fakeCredProvider) failCreds(userID, platformName string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credErrs[userID+"|"+platformName] = err
}

func (p *fakeCredProvider) ValidPlatforms(userID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.platforms[userID], nil
}

func (p *fakeCredProvider) Creds(userID, platformName string) (platform.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.credErrs[userID+"|"+platformName]; ok {
		return platform.Credentials{}, err
	}
	return platform.Credentials{AccessToken: "token"}, nil
}

// fakeAdapter returns a canned fetch result and records the cursors it was
// asked to fetch from.
type fakeAdapter struct {
	name string

	mu      sync.Mutex
	cursors []string
	result  *platform.FetchResult
	err     error
}

func (a *fakeAdapter) Platform() string {
	return a.name
}

func (a *fakeAdapter) FetchSince(ctx context.Context, creds platform.Credentials, cursor string) (*platform.FetchResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cursors = append(a.cursors, cursor)
	if a.err != nil {
		return nil, a.err
	}
	if a.result == nil {
		return &platform.FetchResult{NextCursor: cursor}, nil
	}
	return a.result, nil
}

func (a *fakeAdapter) lastCursor() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.cursors) == 0 {
		return ""
	}
	return a.cursors[len(a.cursors)-1]
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
