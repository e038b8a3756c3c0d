package slacksync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"unibox-backend/internal/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range handlers {
		mux.HandleFunc("/"+path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestFetchSinceNormalizesUsersAndMessages(t *testing.T) {
	srv := stubServer(t, map[string]http.HandlerFunc{
		"users.list": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
			writeJSON(w, `{"ok":true,"members":[
				{"id":"USLACKBOT","name":"slackbot"},
				{"id":"U1","name":"jdoe","profile":{"real_name":"Jane Doe","email":"jane@example.com","phone":"+1 555 010 2000","image_192":"https://img/jane.png"}},
				{"id":"B1","name":"deploybot","is_bot":true,"profile":{"real_name":"Deploy Bot"}}
			]}`)
		},
		"conversations.list": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, `{"ok":true,"channels":[{"id":"D100"}]}`)
		},
		"conversations.history": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "D100", r.URL.Query().Get("channel"))
			// Newest first, the way Slack returns history.
			writeJSON(w, `{"ok":true,"messages":[
				{"ts":"1700000300.000100","user":"U1","text":"see you then"},
				{"ts":"1700000200.000100","user":"U1","text":"joined the channel","subtype":"channel_join"},
				{"ts":"1700000100.000100","user":"U1","text":"lunch tomorrow?","thread_ts":"1700000000.000100"}
			]}`)
		},
	})

	adapter := NewAdapterWithBaseURL(srv.URL)
	result, err := adapter.FetchSince(context.Background(), platform.Credentials{AccessToken: "xoxb-test"}, "")
	require.NoError(t, err)

	// Slackbot is dropped; the bot user passes through flagged for the filter.
	require.Len(t, result.Contacts, 2)
	jane := result.Contacts[0]
	assert.Equal(t, "U1", jane.RemoteID)
	assert.Equal(t, "Jane Doe", jane.Name)
	assert.Equal(t, "jane@example.com", jane.Email)
	assert.Equal(t, "jdoe", jane.Handle)
	assert.False(t, jane.IsBot)
	assert.True(t, result.Contacts[1].IsBot)

	// The join notice is filtered; survivors are oldest first.
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "1700000100.000100", result.Messages[0].RemoteID)
	assert.Equal(t, "1700000000.000100", result.Messages[0].ThreadID)
	assert.Equal(t, "1700000300.000100", result.Messages[1].RemoteID)
	// Unthreaded messages fall back to the channel stream.
	assert.Equal(t, "D100", result.Messages[1].ThreadID)
	assert.True(t, result.Messages[0].Timestamp.Before(result.Messages[1].Timestamp))

	assert.Equal(t, "1700000300.000100", result.NextCursor)
}

func TestFetchSinceIncrementalSkipsCursorMessage(t *testing.T) {
	srv := stubServer(t, map[string]http.HandlerFunc{
		"users.list": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, `{"ok":true,"members":[]}`)
		},
		"conversations.list": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, `{"ok":true,"channels":[{"id":"D100"}]}`)
		},
		"conversations.history": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1700000100.000100", r.URL.Query().Get("oldest"))
			// Slack's oldest param is inclusive; the boundary message was
			// already ingested last run.
			writeJSON(w, `{"ok":true,"messages":[
				{"ts":"1700000200.000100","user":"U1","text":"new"},
				{"ts":"1700000100.000100","user":"U1","text":"already seen"}
			]}`)
		},
	})

	adapter := NewAdapterWithBaseURL(srv.URL)
	result, err := adapter.FetchSince(context.Background(), platform.Credentials{AccessToken: "xoxb-test"}, "1700000100.000100")
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "1700000200.000100", result.Messages[0].RemoteID)
	assert.Equal(t, "1700000200.000100", result.NextCursor)
}

func TestFetchSinceEmptyWindowKeepsCursor(t *testing.T) {
	srv := stubServer(t, map[string]http.HandlerFunc{
		"users.list": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, `{"ok":true,"members":[]}`)
		},
		"conversations.list": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, `{"ok":true,"channels":[]}`)
		},
	})

	adapter := NewAdapterWithBaseURL(srv.URL)
	result, err := adapter.FetchSince(context.Background(), platform.Credentials{AccessToken: "xoxb-test"}, "1700000100.000100")
	require.NoError(t, err)
	assert.Empty(t, result.Messages)
	assert.Equal(t, "1700000100.000100", result.NextCursor)
}

func TestFetchSinceWithoutToken(t *testing.T) {
	adapter := NewAdapter()
	_, err := adapter.FetchSince(context.Background(), platform.Credentials{}, "")
	assert.ErrorIs(t, err, platform.ErrNotAuthenticated)
}

func TestFetchSinceInvalidAuth(t *testing.T) {
	srv := stubServer(t, map[string]http.HandlerFunc{
		"users.list": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, `{"ok":false,"error":"invalid_auth"}`)
		},
	})

	adapter := NewAdapterWithBaseURL(srv.URL)
	_, err := adapter.FetchSince(context.Background(), platform.Credentials{AccessToken: "bad"}, "")
	assert.ErrorIs(t, err, platform.ErrNotAuthenticated)
}

func TestFetchSinceTokenExpired(t *testing.T) {
	srv := stubServer(t, map[string]http.HandlerFunc{
		"users.list": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, `{"ok":false,"error":"token_expired"}`)
		},
	})

	adapter := NewAdapterWithBaseURL(srv.URL)
	_, err := adapter.FetchSince(context.Background(), platform.Credentials{AccessToken: "old"}, "")
	var expired *platform.CredentialExpiredError
	assert.ErrorAs(t, err, &expired)
}

func TestFetchSinceRateLimited(t *testing.T) {
	srv := stubServer(t, map[string]http.HandlerFunc{
		"users.list": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		},
	})

	adapter := NewAdapterWithBaseURL(srv.URL)
	_, err := adapter.FetchSince(context.Background(), platform.Credentials{AccessToken: "xoxb-test"}, "")
	var rateLimited *platform.RateLimitedError
	require.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, 7*time.Second, rateLimited.RetryAfter)
}

func TestFetchSinceServerError(t *testing.T) {
	srv := stubServer(t, map[string]http.HandlerFunc{
		"users.list": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})

	adapter := NewAdapterWithBaseURL(srv.URL)
	_, err := adapter.FetchSince(context.Background(), platform.Credentials{AccessToken: "xoxb-test"}, "")
	var transient *platform.TransientError
	assert.ErrorAs(t, err, &transient)
}

func TestTsToTime(t *testing.T) {
	ts := tsToTime("1700000100.000100")
	assert.Equal(t, int64(1700000100), ts.Unix())
}

func TestTsAfter(t *testing.T) {
	assert.True(t, tsAfter("1700000200.000100", "1700000100.000100"))
	assert.False(t, tsAfter("1700000100.000100", "1700000200.000100"))
	assert.True(t, tsAfter("1700000100.000100", ""))
}
