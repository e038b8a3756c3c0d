package slacksync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"unibox-backend/internal/platform"
)

const defaultBaseURL = "https://slack.com/api"

// How many messages per channel one run pulls.
const historyPageLimit = 100

// Adapter syncs Slack users and conversation history over the Web API.
// The cursor is the newest message "ts" seen across all channels: Slack
// timestamps are decimal strings that order chronologically.
type Adapter struct {
	baseURL    string
	httpClient *http.Client
}

func NewAdapter() *Adapter {
	return &Adapter{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewAdapterWithBaseURL is used by tests to point at a stub server.
func NewAdapterWithBaseURL(baseURL string) *Adapter {
	a := NewAdapter()
	a.baseURL = baseURL
	return a
}

func (a *Adapter) Platform() string {
	return platform.Slack
}

func (a *Adapter) FetchSince(ctx context.Context, creds platform.Credentials, cursor string) (*platform.FetchResult, error) {
	if creds.AccessToken == "" {
		return nil, platform.ErrNotAuthenticated
	}

	users, err := a.listUsers(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	channels, err := a.listChannels(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	result := &platform.FetchResult{NextCursor: cursor}
	for _, u := range users {
		result.Contacts = append(result.Contacts, u)
	}

	maxTS := cursor
	for _, channel := range channels {
		messages, err := a.channelHistory(ctx, creds.AccessToken, channel, cursor)
		if err != nil {
			return nil, err
		}
		for _, m := range messages {
			result.Messages = append(result.Messages, m)
			if tsAfter(m.RemoteID, maxTS) {
				maxTS = m.RemoteID
			}
		}
	}

	// Chronological across channels; the orchestrator upserts in order.
	sort.SliceStable(result.Messages, func(i, j int) bool {
		return result.Messages[i].Timestamp.Before(result.Messages[j].Timestamp)
	})

	result.NextCursor = maxTS
	return result, nil
}

type slackUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
	IsBot   bool   `json:"is_bot"`
	Profile struct {
		RealName string `json:"real_name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Image192 string `json:"image_192"`
	} `json:"profile"`
}

func (a *Adapter) listUsers(ctx context.Context, token string) ([]platform.Contact, error) {
	var contacts []platform.Contact
	cursor := ""

	for {
		params := url.Values{"limit": {"200"}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp struct {
			slackEnvelope
			Members          []slackUser `json:"members"`
			ResponseMetadata struct {
				NextCursor string `json:"next_cursor"`
			} `json:"response_metadata"`
		}
		if err := a.call(ctx, token, "users.list", params, &resp); err != nil {
			return nil, err
		}

		for _, u := range resp.Members {
			if u.ID == "USLACKBOT" {
				continue
			}
			name := u.Profile.RealName
			if name == "" {
				name = u.Name
			}
			contacts = append(contacts, platform.Contact{
				RemoteID:  u.ID,
				Name:      name,
				Email:     u.Profile.Email,
				Handle:    u.Name,
				Phone:     u.Profile.Phone,
				AvatarURL: u.Profile.Image192,
				IsBot:     u.IsBot,
				Deleted:   u.Deleted,
			})
		}

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}
	return contacts, nil
}

func (a *Adapter) listChannels(ctx context.Context, token string) ([]string, error) {
	var channels []string
	cursor := ""

	for {
		params := url.Values{
			"types": {"im,mpim"},
			"limit": {"200"},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp struct {
			slackEnvelope
			Channels []struct {
				ID string `json:"id"`
			} `json:"channels"`
			ResponseMetadata struct {
				NextCursor string `json:"next_cursor"`
			} `json:"response_metadata"`
		}
		if err := a.call(ctx, token, "conversations.list", params, &resp); err != nil {
			return nil, err
		}

		for _, c := range resp.Channels {
			channels = append(channels, c.ID)
		}

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}
	return channels, nil
}

func (a *Adapter) channelHistory(ctx context.Context, token, channelID, oldest string) ([]platform.Message, error) {
	params := url.Values{
		"channel": {channelID},
		"limit":   {strconv.Itoa(historyPageLimit)},
	}
	if oldest != "" {
		params.Set("oldest", oldest)
	}

	var resp struct {
		slackEnvelope
		Messages []struct {
			TS       string `json:"ts"`
			ThreadTS string `json:"thread_ts"`
			User     string `json:"user"`
			Text     string `json:"text"`
			Subtype  string `json:"subtype"`
		} `json:"messages"`
	}
	if err := a.call(ctx, token, "conversations.history", params, &resp); err != nil {
		return nil, err
	}

	messages := make([]platform.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		// Join/leave notices and other system subtypes are not conversation.
		if m.Subtype != "" || m.TS == oldest {
			continue
		}
		threadID := m.ThreadTS
		if threadID == "" {
			// Unthreaded channel messages all belong to the channel's stream.
			threadID = channelID
		}
		messages = append(messages, platform.Message{
			RemoteID:       m.TS,
			ThreadID:       threadID,
			SenderRemoteID: m.User,
			Content:        m.Text,
			Direction:      platform.DirectionInbound,
			Timestamp:      tsToTime(m.TS),
		})
	}
	return messages, nil
}

type slackEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (e slackEnvelope) check() error {
	if e.OK {
		return nil
	}
	switch e.Error {
	case "invalid_auth", "not_authed", "token_revoked", "account_inactive":
		return platform.ErrNotAuthenticated
	case "token_expired":
		return &platform.CredentialExpiredError{Platform: platform.Slack}
	case "ratelimited":
		return &platform.RateLimitedError{Platform: platform.Slack, RetryAfter: time.Minute}
	default:
		return fmt.Errorf("slack API error: %s", e.Error)
	}
}

func (a *Adapter) call(ctx context.Context, token, method string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+"/"+method+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &platform.TransientError{Err: fmt.Errorf("slack request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Minute
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &platform.RateLimitedError{Platform: platform.Slack, RetryAfter: retryAfter}
	}
	if resp.StatusCode >= 500 {
		return &platform.TransientError{Err: fmt.Errorf("slack API returned %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &platform.TransientError{Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse slack response: %w", err)
	}

	// Every payload embeds the ok/error envelope.
	var envelope slackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to parse slack envelope: %w", err)
	}
	return envelope.check()
}

func tsToTime(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Now()
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// tsAfter reports whether a comes after b in Slack timestamp order.
func tsAfter(a, b string) bool {
	if b == "" {
		return true
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil {
		return a > b
	}
	return fa > fb
}
