package gmailsync

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"unibox-backend/internal/platform"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// How many messages an initial sync pulls per run. Subsequent runs are
// incremental via the history API.
const initialFetchLimit = 100

// Adapter syncs Gmail contacts and messages. The cursor is the mailbox
// history id: empty means initial sync.
type Adapter struct {
	clientID     string
	clientSecret string
	topicName    string
}

func NewAdapter(clientID, clientSecret, topicName string) *Adapter {
	return &Adapter{
		clientID:     clientID,
		clientSecret: clientSecret,
		topicName:    topicName,
	}
}

func (a *Adapter) Platform() string {
	return platform.Gmail
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback func(accessToken, refreshToken string, expiry time.Time) error
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t.AccessToken, t.RefreshToken, t.Expiry); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func (a *Adapter) service(ctx context.Context, creds platform.Credentials) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       creds.Expiry,
	}

	config := &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrapped := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: creds.OnTokenRefresh,
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, wrapped)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}
	return srv, nil
}

// FetchSince pulls messages added since the cursor's history id, deriving
// contacts from message senders. An expired history id falls back to a
// bounded full fetch rather than failing the run.
func (a *Adapter) FetchSince(ctx context.Context, creds platform.Credentials, cursor string) (*platform.FetchResult, error) {
	srv, err := a.service(ctx, creds)
	if err != nil {
		return nil, classifyError(err)
	}

	var messageIDs []string
	var nextCursor string

	if cursor == "" {
		messageIDs, nextCursor, err = a.listInitial(srv)
	} else {
		messageIDs, nextCursor, err = a.listHistory(srv, cursor)
		if isHistoryExpired(err) {
			// Gmail only retains history for about a week. Start over.
			log.Printf("[Gmail] History id %s expired, falling back to full fetch", cursor)
			messageIDs, nextCursor, err = a.listInitial(srv)
		}
	}
	if err != nil {
		return nil, classifyError(err)
	}

	result := &platform.FetchResult{NextCursor: nextCursor}
	seenSenders := make(map[string]bool)

	for _, id := range messageIDs {
		msg, err := srv.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, classifyError(err)
		}
		m, sender := normalizeMessage(msg)
		result.Messages = append(result.Messages, m)

		if sender.RemoteID != "" && !seenSenders[sender.RemoteID] {
			seenSenders[sender.RemoteID] = true
			result.Contacts = append(result.Contacts, sender)
		}
	}

	// Oldest first: the orchestrator upserts in adapter order.
	reverse(result.Messages)
	return result, nil
}

// Watch registers the mailbox for pub/sub push notifications. The returned
// expiration tells the caller when re-registration is due.
func (a *Adapter) Watch(ctx context.Context, creds platform.Credentials) (time.Time, error) {
	if a.topicName == "" {
		return time.Time{}, fmt.Errorf("no pub/sub topic configured")
	}
	srv, err := a.service(ctx, creds)
	if err != nil {
		return time.Time{}, classifyError(err)
	}

	// Only one push client is allowed per user; clear any existing watch.
	_ = srv.Users.Stop("me").Do()

	resp, err := srv.Users.Watch("me", &gmail.WatchRequest{
		TopicName: a.topicName,
		LabelIds:  []string{"INBOX"},
	}).Do()
	if err != nil {
		return time.Time{}, classifyError(err)
	}
	log.Printf("[Gmail] Watch registered, expiration %d, history id %d", resp.Expiration, resp.HistoryId)
	return time.Unix(resp.Expiration/1000, 0), nil
}

func (a *Adapter) listInitial(srv *gmail.Service) ([]string, string, error) {
	profile, err := srv.Users.GetProfile("me").Do()
	if err != nil {
		return nil, "", err
	}

	resp, err := srv.Users.Messages.List("me").MaxResults(initialFetchLimit).Do()
	if err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, strconv.FormatUint(profile.HistoryId, 10), nil
}

func (a *Adapter) listHistory(srv *gmail.Service, cursor string) ([]string, string, error) {
	startID, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("malformed history cursor %q: %v", cursor, err)
	}

	var ids []string
	seen := make(map[string]bool)
	nextCursor := cursor
	pageToken := ""

	for {
		call := srv.Users.History.List("me").
			StartHistoryId(startID).
			HistoryTypes("messageAdded")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, "", err
		}

		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message != nil && !seen[added.Message.Id] {
					seen[added.Message.Id] = true
					ids = append(ids, added.Message.Id)
				}
			}
		}
		if resp.HistoryId > 0 {
			nextCursor = strconv.FormatUint(resp.HistoryId, 10)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return ids, nextCursor, nil
}

// normalizeMessage maps a Gmail message onto the common shape and extracts
// the sender as a contact candidate.
func normalizeMessage(msg *gmail.Message) (platform.Message, platform.Contact) {
	from := getHeader(msg.Payload.Headers, "From")
	direction := platform.DirectionInbound
	if hasLabel(msg.LabelIds, "SENT") {
		direction = platform.DirectionOutbound
	}

	body := getBodyText(msg.Payload)
	if body == "" {
		body = msg.Snippet
	}

	var sender platform.Contact
	if direction == platform.DirectionInbound && from != "" {
		if addr, err := mail.ParseAddress(from); err == nil {
			sender = platform.Contact{
				RemoteID: strings.ToLower(addr.Address),
				Name:     addr.Name,
				Email:    strings.ToLower(addr.Address),
			}
		}
	}

	m := platform.Message{
		RemoteID:       msg.Id,
		ThreadID:       msg.ThreadId,
		SenderRemoteID: sender.RemoteID,
		SenderAddress:  from,
		Subject:        getHeader(msg.Payload.Headers, "Subject"),
		Content:        body,
		Direction:      direction,
		Timestamp:      time.Unix(msg.InternalDate/1000, 0),
	}
	return m, sender
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// getBodyText returns the message body as plain text, preferring text/plain
// parts and stripping tags from HTML-only messages.
func getBodyText(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	var htmlBody, plainBody string

	var decode = func(part *gmail.MessagePart) string {
		if part.Body == nil || part.Body.Data == "" {
			return ""
		}
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(data)
	}

	if body := decode(payload); body != "" {
		if payload.MimeType == "text/html" {
			htmlBody = body
		} else {
			plainBody = body
		}
	}

	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			switch part.MimeType {
			case "text/plain":
				if plainBody == "" {
					plainBody = decode(part)
				}
			case "text/html":
				if htmlBody == "" {
					htmlBody = decode(part)
				}
			}
			if len(part.Parts) > 0 {
				walk(part.Parts)
			}
		}
	}
	walk(payload.Parts)

	if plainBody != "" {
		return plainBody
	}
	stripped := htmlTagPattern.ReplaceAllString(htmlBody, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

func hasLabel(labels []string, labelID string) bool {
	for _, label := range labels {
		if label == labelID {
			return true
		}
	}
	return false
}

func reverse(messages []platform.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}

func isHistoryExpired(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 404
}

// classifyError maps Gmail API errors onto the engine's error kinds.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	// A rejected token refresh surfaces from the oauth2 transport, wrapped in
	// a *url.Error, not as a googleapi error. The refresh token is revoked or
	// expired; the user has to reconnect, retrying cannot help.
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return platform.ErrNotAuthenticated
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return &platform.TransientError{Err: err}
	}
	switch {
	case apiErr.Code == 401:
		return &platform.CredentialExpiredError{Platform: platform.Gmail}
	case apiErr.Code == 403 && strings.Contains(strings.ToLower(apiErr.Message), "rate"):
		return &platform.RateLimitedError{Platform: platform.Gmail, RetryAfter: time.Minute}
	case apiErr.Code == 403:
		return platform.ErrNotAuthenticated
	case apiErr.Code == 429:
		return &platform.RateLimitedError{Platform: platform.Gmail, RetryAfter: time.Minute}
	case apiErr.Code >= 500:
		return &platform.TransientError{Err: err}
	default:
		return err
	}
}
