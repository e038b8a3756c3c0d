package usecase

import (
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	contactdomain "unibox-backend/internal/contact/domain"
	contactrepo "unibox-backend/internal/contact/repository"
	msgdomain "unibox-backend/internal/message/domain"
	"unibox-backend/internal/message/repository"
)

// DisplayThread is the computed representation of one conversation: the most
// recent message as representative, with the AI summary's content superseding
// the raw content when one exists. The full raw message list stays attached
// for drill-down.
type DisplayThread struct {
	ThreadID       string               `json:"thread_id"`
	Platform       string               `json:"platform"`
	Subject        string               `json:"subject,omitempty"`
	Content        string               `json:"content"`
	HasSummary     bool                 `json:"has_summary"`
	KeyPoints      string               `json:"key_points,omitempty"`
	ActionItems    string               `json:"action_items,omitempty"`
	Urgency        string               `json:"urgency,omitempty"`
	ContactID      *string              `json:"contact_id,omitempty"`
	DisplayName    string               `json:"display_name"`
	Timestamp      time.Time            `json:"timestamp"`
	MessageCount   int                  `json:"message_count"`
	ThreadMessages []*msgdomain.Message `json:"thread_messages"`
}

// ThreadingService groups raw messages into display threads. Thread
// membership is recomputed on read; the per-user cache is a performance
// optimization invalidated whenever new messages are ingested.
type ThreadingService struct {
	messageRepo repository.MessageRepository
	contactRepo contactrepo.ContactRepository

	cache   map[string][]*DisplayThread
	cacheMu sync.RWMutex
}

func NewThreadingService(messageRepo repository.MessageRepository, contactRepo contactrepo.ContactRepository) *ThreadingService {
	return &ThreadingService{
		messageRepo: messageRepo,
		contactRepo: contactRepo,
		cache:       make(map[string][]*DisplayThread),
	}
}

// Invalidate drops the cached thread view for a user. Called after every
// ingestion write; a stale view must never outlive a completed sync.
func (s *ThreadingService) Invalidate(userID string) {
	s.cacheMu.Lock()
	delete(s.cache, userID)
	s.cacheMu.Unlock()
}

// ThreadsForUser returns the user's threads ordered by representative
// timestamp, most recent activity first.
func (s *ThreadingService) ThreadsForUser(userID string) ([]*DisplayThread, error) {
	s.cacheMu.RLock()
	cached, ok := s.cache[userID]
	s.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	threads, err := s.computeThreads(userID)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.cache[userID] = threads
	s.cacheMu.Unlock()
	return threads, nil
}

func (s *ThreadingService) computeThreads(userID string) ([]*DisplayThread, error) {
	messages, err := s.messageRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	// Partition summary records from raw messages, then group raw messages
	// by extracted thread key (the message's own id when no thread id exists).
	summaries := make(map[string]*msgdomain.Message)
	groups := make(map[string][]*msgdomain.Message)
	var order []string
	for _, m := range messages {
		if m.IsThreadSummary() {
			summaries[m.SummaryThreadID()] = m
			continue
		}
		key := m.ThreadKey()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	contacts := make(map[string]*contactdomain.UnifiedContact)

	threads := make([]*DisplayThread, 0, len(groups))
	for _, key := range order {
		group := groups[key]

		// Most recent message represents the thread. Messages arrive from the
		// repository in insertion order, so ties keep the later insertion.
		representative := group[0]
		for _, m := range group[1:] {
			if !m.Timestamp.Before(representative.Timestamp) {
				representative = m
			}
		}

		thread := &DisplayThread{
			ThreadID:       key,
			Platform:       representative.Platform,
			Subject:        representative.PlatformData.GetString(msgdomain.DataSubject),
			Content:        representative.Content,
			ContactID:      representative.ContactID,
			Timestamp:      representative.Timestamp,
			MessageCount:   len(group),
			ThreadMessages: group,
		}

		// Summary content supersedes the representative's raw content for
		// display; the representative still supplies timing and contact.
		if summary, ok := summaries[key]; ok {
			thread.HasSummary = true
			thread.Content = summary.Content
			thread.KeyPoints = summary.PlatformData.GetString(msgdomain.DataKeyPoints)
			thread.ActionItems = summary.PlatformData.GetString(msgdomain.DataActionItems)
			thread.Urgency = summary.PlatformData.GetString(msgdomain.DataUrgency)
		}

		thread.DisplayName = s.displayName(userID, representative, contacts)
		threads = append(threads, thread)
	}

	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].Timestamp.After(threads[j].Timestamp)
	})
	return threads, nil
}

// displayName attributes the representative message to a sender. When the
// parsed sender address differs from the associated contact's known email the
// message was relayed (mailing list, assistant), shown as
// "ActualSender (via ContactName)".
func (s *ThreadingService) displayName(userID string, m *msgdomain.Message, contacts map[string]*contactdomain.UnifiedContact) string {
	senderName, senderEmail := parseSenderAddress(m.PlatformData.GetString(msgdomain.DataSenderAddress))

	var contact *contactdomain.UnifiedContact
	if m.ContactID != nil {
		var ok bool
		contact, ok = contacts[*m.ContactID]
		if !ok {
			contact, _ = s.contactRepo.GetByID(userID, *m.ContactID)
			contacts[*m.ContactID] = contact
		}
	}

	if contact == nil {
		if senderName != "" {
			return senderName
		}
		if senderEmail != "" {
			return senderEmail
		}
		return "Unknown"
	}

	if senderEmail != "" && !contactHasEmail(contact, senderEmail) {
		actual := senderName
		if actual == "" {
			actual = senderEmail
		}
		return actual + " (via " + contact.DisplayName + ")"
	}
	return contact.DisplayName
}

func parseSenderAddress(raw string) (name, email string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		// Bare addresses and handles fail RFC parsing; treat as-is.
		if strings.Contains(raw, "@") {
			return "", strings.ToLower(raw)
		}
		return raw, ""
	}
	return addr.Name, strings.ToLower(addr.Address)
}

func contactHasEmail(contact *contactdomain.UnifiedContact, email string) bool {
	email = strings.ToLower(email)
	if strings.ToLower(contact.PrimaryEmail) == email {
		return true
	}
	for _, id := range contact.Identities {
		if strings.ToLower(id.Email) == email {
			return true
		}
	}
	return false
}
