package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	api "unibox-backend/cmd/api"
	contactDelivery "unibox-backend/internal/contact/delivery"
	contactdomain "unibox-backend/internal/contact/domain"
	contactRepo "unibox-backend/internal/contact/repository"
	contactUsecase "unibox-backend/internal/contact/usecase"
	creddomain "unibox-backend/internal/credential/domain"
	credRepo "unibox-backend/internal/credential/repository"
	credUsecase "unibox-backend/internal/credential/usecase"
	messageDelivery "unibox-backend/internal/message/delivery"
	msgdomain "unibox-backend/internal/message/domain"
	messageRepo "unibox-backend/internal/message/repository"
	messageUsecase "unibox-backend/internal/message/usecase"
	"unibox-backend/internal/notification"
	"unibox-backend/internal/platform"
	syncDelivery "unibox-backend/internal/sync/delivery"
	syncdomain "unibox-backend/internal/sync/domain"
	syncRepo "unibox-backend/internal/sync/repository"
	syncUsecase "unibox-backend/internal/sync/usecase"
	"unibox-backend/pkg/ai"
	"unibox-backend/pkg/config"
	"unibox-backend/pkg/database"
	"unibox-backend/pkg/fcm"
	"unibox-backend/pkg/gmailsync"
	"unibox-backend/pkg/imapsync"
	"unibox-backend/pkg/slacksync"
	"unibox-backend/pkg/sse"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&creddomain.PlatformCredential{},
		&contactdomain.UnifiedContact{},
		&contactdomain.PlatformIdentity{},
		&contactdomain.PendingApproval{},
		&contactdomain.SuppressedIdentity{},
		&msgdomain.Message{},
		&syncdomain.SyncState{},
		&notification.DeviceToken{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	credentialRepo := credRepo.NewCredentialRepository(db)
	contactRepository := contactRepo.NewContactRepository(db)
	pendingRepo := contactRepo.NewPendingApprovalRepository(db)
	suppressionRepo := contactRepo.NewSuppressionRepository(db)
	msgRepository := messageRepo.NewMessageRepository(db)
	syncStateRepo := syncRepo.NewSyncStateRepository(db)
	tokenRepo := notification.NewDeviceTokenRepository(db)

	// SSE fanout
	sseManager := sse.NewManager()

	// Credential provider decrypts stored tokens for the adapters
	credProvider := credUsecase.NewProvider(credentialRepo, cfg.EncryptionKey)

	// Contact unification and the approval workbench
	unifier := contactUsecase.NewUnificationEngine(contactRepository, pendingRepo, suppressionRepo)
	unifier.SetEventService(sseManager)
	workbench := contactUsecase.NewWorkbench(unifier, contactRepository, pendingRepo, suppressionRepo, msgRepository)

	// Thread view and background annotation. Ollama settings are shared with
	// the settings API so runtime changes reach the annotator.
	ollamaSettings := ai.NewOllamaSettings(cfg.OllamaBaseURL, cfg.OllamaModel)
	threading := messageUsecase.NewThreadingService(msgRepository, contactRepository)
	annotationWorker := messageUsecase.NewAnnotationWorkerService(msgRepository, threading, cfg.AnnotationWorkers)
	annotationWorker.SetAnnotator(ai.NewAnnotatorService(ai.Config{
		Provider:     ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey: cfg.GeminiAPIKey,
		Ollama:       ollamaSettings,
	}))
	annotationWorker.SetEventService(sseManager)

	var searchService *messageUsecase.SearchService
	if chromaClient := api.NewVectorSearch(cfg); chromaClient != nil {
		annotationWorker.SetVectorSearchService(chromaClient)
		searchService = messageUsecase.NewSearchService(chromaClient, threading)
		log.Println("Chroma client initialized, semantic search enabled")
	}
	annotationWorker.Start()

	// Platform adapters
	gmailAdapter := gmailsync.NewAdapter(cfg.GoogleClientID, cfg.GoogleClientSecret, fullTopicName(cfg))
	slackAdapter := slacksync.NewAdapter()
	imapAdapter := imapsync.NewAdapter()
	registry := platform.NewRegistry(gmailAdapter, slackAdapter, imapAdapter)

	// Sync scheduling and orchestration
	scheduler := syncUsecase.NewScheduler(syncStateRepo, contactRepository, msgRepository, credProvider, cfg)
	syncOrchestrator := syncUsecase.NewSyncUsecase(scheduler, unifier, threading, annotationWorker, registry)
	syncOrchestrator.SetEventService(sseManager)

	// Gmail push notifications over pub/sub
	if cfg.GoogleProjectID != "" {
		var fcmClient *fcm.Client
		if cfg.FirebaseCredentials != "" {
			fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
			if err != nil {
				log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
			}
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, shortTopicName(cfg), cfg.GoogleCredentials, sseManager, credentialRepo, tokenRepo, fcmClient, syncOrchestrator)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
		}

		// Gmail watch registrations expire; renew them in the background.
		watchRenewer := syncUsecase.NewWatchRenewer(credentialRepo, credProvider, gmailAdapter)
		watchRenewer.Start()
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, pub/sub notifications disabled")
	}

	// HTTP delivery
	syncHandler := syncDelivery.NewSyncHandler(syncOrchestrator, credentialRepo, credProvider, gmailAdapter)
	contactHandler := contactDelivery.NewContactHandler(contactRepository, suppressionRepo, workbench)
	threadHandler := messageDelivery.NewThreadHandler(threading, searchService)

	handler := api.NewHandler(cfg, sseManager, tokenRepo, ollamaSettings, syncHandler, contactHandler, threadHandler)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// shortTopicName strips any "projects/x/topics/" prefix from the configured
// topic; the pub/sub client wants the short form.
func shortTopicName(cfg *config.Config) string {
	topic := cfg.GooglePubSubTopic
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		topic = parts[len(parts)-1]
	}
	if topic == "" {
		topic = "gmail-updates"
	}
	return topic
}

// fullTopicName builds the fully-qualified topic resource the Gmail watch
// API requires.
func fullTopicName(cfg *config.Config) string {
	if strings.Contains(cfg.GooglePubSubTopic, "/") {
		return cfg.GooglePubSubTopic
	}
	if cfg.GoogleProjectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/topics/%s", cfg.GoogleProjectID, shortTopicName(cfg))
}
