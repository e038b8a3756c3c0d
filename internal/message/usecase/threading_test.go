package usecase

import (
	"testing"
	"time"

	contactdomain "unibox-backend/internal/contact/domain"
	msgdomain "unibox-backend/internal/message/domain"
	"unibox-backend/internal/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func rawMessage(id, threadID, content string, ts time.Time) *msgdomain.Message {
	data := msgdomain.JSONMap{}
	if threadID != "" {
		data[msgdomain.DataThreadID] = threadID
	}
	return &msgdomain.Message{
		UserID:            testUser,
		Platform:          platform.Gmail,
		PlatformMessageID: id,
		Content:           content,
		Timestamp:         ts,
		PlatformData:      data,
	}
}

func TestThreadsGroupedByThreadKey(t *testing.T) {
	messageRepo := newFakeMessageRepo()
	svc := NewThreadingService(messageRepo, newFakeContactRepo())

	for _, m := range []*msgdomain.Message{
		rawMessage("m1", "t1", "first", baseTime),
		rawMessage("m2", "t1", "second", baseTime.Add(time.Hour)),
		rawMessage("m3", "t2", "other topic", baseTime.Add(30*time.Minute)),
	} {
		_, err := messageRepo.Upsert(m)
		require.NoError(t, err)
	}

	threads, err := svc.ThreadsForUser(testUser)
	require.NoError(t, err)
	require.Len(t, threads, 2)

	// Most recent activity first.
	assert.Equal(t, "t1", threads[0].ThreadID)
	assert.Equal(t, 2, threads[0].MessageCount)
	assert.Equal(t, "second", threads[0].Content)
	assert.Equal(t, "t2", threads[1].ThreadID)
	assert.Equal(t, 1, threads[1].MessageCount)
}

func TestSingletonThreadKeyedByMessageID(t *testing.T) {
	messageRepo := newFakeMessageRepo()
	svc := NewThreadingService(messageRepo, newFakeContactRepo())

	_, err := messageRepo.Upsert(rawMessage("m1", "", "standalone", baseTime))
	require.NoError(t, err)

	threads, err := svc.ThreadsForUser(testUser)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "m1", threads[0].ThreadID)
}

func TestSummaryOverridesRepresentativeContent(t *testing.T) {
	messageRepo := newFakeMessageRepo()
	svc := NewThreadingService(messageRepo, newFakeContactRepo())

	for _, m := range []*msgdomain.Message{
		rawMessage("m1", "t1", "can we move the launch?", baseTime),
		rawMessage("m2", "t1", "yes, to Thursday", baseTime.Add(time.Hour)),
		rawMessage("m3", "t1", "confirmed", baseTime.Add(2*time.Hour)),
	} {
		_, err := messageRepo.Upsert(m)
		require.NoError(t, err)
	}
	_, err := messageRepo.Upsert(&msgdomain.Message{
		UserID:            testUser,
		Platform:          platform.Gmail,
		PlatformMessageID: msgdomain.ThreadSummaryPrefix + "t1",
		Content:           "Launch moved to Thursday, all parties confirmed.",
		Timestamp:         baseTime.Add(2 * time.Hour),
		PlatformData: msgdomain.JSONMap{
			msgdomain.DataThreadID:    "t1",
			msgdomain.DataKeyPoints:   "launch date moved",
			msgdomain.DataActionItems: "update calendar",
			msgdomain.DataUrgency:     "normal",
		},
	})
	require.NoError(t, err)

	threads, err := svc.ThreadsForUser(testUser)
	require.NoError(t, err)
	require.Len(t, threads, 1)

	thread := threads[0]
	assert.True(t, thread.HasSummary)
	assert.Equal(t, "Launch moved to Thursday, all parties confirmed.", thread.Content)
	assert.Equal(t, "launch date moved", thread.KeyPoints)
	assert.Equal(t, "update calendar", thread.ActionItems)
	assert.Equal(t, "normal", thread.Urgency)

	// The summary never counts as a message and never shifts the timeline.
	assert.Equal(t, 3, thread.MessageCount)
	assert.Len(t, thread.ThreadMessages, 3)
	assert.True(t, thread.Timestamp.Equal(baseTime.Add(2*time.Hour)))
}

func TestDisplayNameUsesContact(t *testing.T) {
	messageRepo := newFakeMessageRepo()
	contactRepo := newFakeContactRepo()
	svc := NewThreadingService(messageRepo, contactRepo)

	contact := &contactdomain.UnifiedContact{
		UserID:       testUser,
		DisplayName:  "Jane Doe",
		PrimaryEmail: "jane@example.com",
	}
	contactRepo.add(contact)

	m := rawMessage("m1", "t1", "hello", baseTime)
	m.ContactID = &contact.ID
	m.PlatformData[msgdomain.DataSenderAddress] = "Jane Doe <jane@example.com>"
	_, err := messageRepo.Upsert(m)
	require.NoError(t, err)

	threads, err := svc.ThreadsForUser(testUser)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "Jane Doe", threads[0].DisplayName)
}

func TestDisplayNameRelayedSenderShownVia(t *testing.T) {
	messageRepo := newFakeMessageRepo()
	contactRepo := newFakeContactRepo()
	svc := NewThreadingService(messageRepo, contactRepo)

	contact := &contactdomain.UnifiedContact{
		UserID:       testUser,
		DisplayName:  "Jane Doe",
		PrimaryEmail: "jane@example.com",
	}
	contactRepo.add(contact)

	// Associated with Jane's contact, but actually sent by her assistant.
	m := rawMessage("m1", "t1", "forwarding on Jane's behalf", baseTime)
	m.ContactID = &contact.ID
	m.PlatformData[msgdomain.DataSenderAddress] = "Sam Assistant <sam@example.com>"
	_, err := messageRepo.Upsert(m)
	require.NoError(t, err)

	threads, err := svc.ThreadsForUser(testUser)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "Sam Assistant (via Jane Doe)", threads[0].DisplayName)
}

func TestDisplayNameFallbacksWithoutContact(t *testing.T) {
	messageRepo := newFakeMessageRepo()
	svc := NewThreadingService(messageRepo, newFakeContactRepo())

	m1 := rawMessage("m1", "t1", "hi", baseTime)
	m1.PlatformData[msgdomain.DataSenderAddress] = "Pat Lee <pat@example.com>"
	m2 := rawMessage("m2", "t2", "hi", baseTime)
	m2.PlatformData[msgdomain.DataSenderAddress] = "pat@example.com"
	m3 := rawMessage("m3", "t3", "hi", baseTime)
	for _, m := range []*msgdomain.Message{m1, m2, m3} {
		_, err := messageRepo.Upsert(m)
		require.NoError(t, err)
	}

	threads, err := svc.ThreadsForUser(testUser)
	require.NoError(t, err)
	require.Len(t, threads, 3)

	names := make(map[string]string, 3)
	for _, th := range threads {
		names[th.ThreadID] = th.DisplayName
	}
	assert.Equal(t, "Pat Lee", names["t1"])
	assert.Equal(t, "pat@example.com", names["t2"])
	assert.Equal(t, "Unknown", names["t3"])
}

func TestInvalidateDropsCachedView(t *testing.T) {
	messageRepo := newFakeMessageRepo()
	svc := NewThreadingService(messageRepo, newFakeContactRepo())

	_, err := messageRepo.Upsert(rawMessage("m1", "t1", "first", baseTime))
	require.NoError(t, err)

	threads, err := svc.ThreadsForUser(testUser)
	require.NoError(t, err)
	require.Len(t, threads, 1)

	_, err = messageRepo.Upsert(rawMessage("m2", "t2", "second", baseTime.Add(time.Minute)))
	require.NoError(t, err)

	// Cached until invalidated.
	threads, err = svc.ThreadsForUser(testUser)
	require.NoError(t, err)
	assert.Len(t, threads, 1)

	svc.Invalidate(testUser)
	threads, err = svc.ThreadsForUser(testUser)
	require.NoError(t, err)
	assert.Len(t, threads, 2)
}
