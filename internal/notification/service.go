package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	credrepo "unibox-backend/internal/credential/repository"
	"unibox-backend/internal/platform"
	syncusecase "unibox-backend/internal/sync/usecase"
	"unibox-backend/pkg/fcm"
	"unibox-backend/pkg/sse"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes to the pub/sub topic
// registered by the watch call.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// SyncTrigger is the part of the sync orchestrator webhooks need.
type SyncTrigger interface {
	HandlePush(ctx context.Context, userID, platformName string) (*syncusecase.PlatformOutcome, error)
}

// Service consumes Gmail push notifications from pub/sub and turns them
// into incremental sync runs, then fans the outcome out over SSE and FCM.
type Service struct {
	pubsubClient *pubsub.Client
	sseManager   *sse.Manager
	credRepo     credrepo.CredentialRepository
	tokenRepo    DeviceTokenRepository
	fcmClient    *fcm.Client
	syncTrigger  SyncTrigger
	topicName    string
	subName      string

	// Gmail redelivers aggressively; drop notifications whose history id
	// is not past the last one handled per user.
	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewService(projectID, topicName, credentialsFile string, sseManager *sse.Manager, credRepo credrepo.CredentialRepository, tokenRepo DeviceTokenRepository, fcmClient *fcm.Client, syncTrigger SyncTrigger) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient:  client,
		sseManager:    sseManager,
		credRepo:      credRepo,
		tokenRepo:     tokenRepo,
		fcmClient:     fcmClient,
		syncTrigger:   syncTrigger,
		topicName:     topicName,
		subName:       topicName + "-sub",
		lastHistoryID: make(map[string]uint64),
	}, nil
}

// Start subscribes and blocks receiving messages until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot create subscription", s.topicName)
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var notification GmailNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return
	}

	log.Printf("[PubSub] Notification for %s (historyId: %d)", notification.EmailAddress, notification.HistoryID)

	userID, err := s.credRepo.FindUserIDByAccountEmail(platform.Gmail, notification.EmailAddress)
	if err != nil {
		log.Printf("[PubSub] Error resolving user for %s: %v", notification.EmailAddress, err)
		return
	}
	if userID == "" {
		log.Printf("[PubSub] No user connected for %s", notification.EmailAddress)
		return
	}

	if !s.markHistoryID(userID, notification.HistoryID) {
		return
	}

	outcome, err := s.syncTrigger.HandlePush(ctx, userID, platform.Gmail)
	if err != nil {
		log.Printf("[PubSub] Push sync for user %s failed: %v", userID, err)
		return
	}
	if outcome.Error != "" {
		// A concurrent run holding the flag will pick up the new history.
		log.Printf("[PubSub] Push sync for user %s: %s (%s)", userID, outcome.Error, outcome.ErrorKind)
		return
	}
	if outcome.MessagesCreated == 0 {
		return
	}

	s.sseManager.SendToUser(userID, "new_messages", map[string]interface{}{
		"platform": platform.Gmail,
		"count":    outcome.MessagesCreated,
	})
	s.pushToDevices(userID, outcome)
}

// markHistoryID records the history id and reports whether it advances past
// the last one seen for this user.
func (s *Service) markHistoryID(userID string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[userID]; ok && historyID <= last {
		log.Printf("[PubSub] Skipping duplicate notification for user %s (historyId %d <= %d)", userID, historyID, last)
		return false
	}
	s.lastHistoryID[userID] = historyID
	return true
}

func (s *Service) pushToDevices(userID string, outcome *syncusecase.PlatformOutcome) {
	if s.fcmClient == nil || s.tokenRepo == nil {
		return
	}

	tokens, err := s.tokenRepo.TokensForUser(userID)
	if err != nil {
		log.Printf("[FCM] Error getting tokens for user %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	body := "You have a new message"
	if outcome.MessagesCreated > 1 {
		body = fmt.Sprintf("You have %d new messages", outcome.MessagesCreated)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	failed, err := s.fcmClient.SendToDevices(ctx, tokens, fcm.Notification{
		Title: "New messages",
		Body:  body,
		Data: map[string]string{
			"type":     "new_messages",
			"platform": outcome.Platform,
			"count":    fmt.Sprintf("%d", outcome.MessagesCreated),
		},
	})
	if err != nil {
		log.Printf("[FCM] Error sending notifications: %v", err)
		return
	}
	for _, token := range failed {
		if err := s.tokenRepo.Delete(token); err != nil {
			log.Printf("[FCM] Failed to prune dead token: %v", err)
		}
	}
}
