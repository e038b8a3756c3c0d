package api

import (
	"log"

	contactDelivery "unibox-backend/internal/contact/delivery"
	messageDelivery "unibox-backend/internal/message/delivery"
	"unibox-backend/internal/notification"
	syncDelivery "unibox-backend/internal/sync/delivery"
	"unibox-backend/pkg/ai"
	"unibox-backend/pkg/chroma"
	"unibox-backend/pkg/config"
	"unibox-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

// Handler owns the HTTP server and its route dependencies.
type Handler struct {
	config          *config.Config
	sseManager      *sse.Manager
	tokenRepo       notification.DeviceTokenRepository
	syncHandler     *syncDelivery.SyncHandler
	contactHandler  *contactDelivery.ContactHandler
	threadHandler   *messageDelivery.ThreadHandler
	settingsHandler *SettingsHandler
}

func NewHandler(cfg *config.Config, sseManager *sse.Manager, tokenRepo notification.DeviceTokenRepository, ollamaSettings *ai.OllamaSettings, syncHandler *syncDelivery.SyncHandler, contactHandler *contactDelivery.ContactHandler, threadHandler *messageDelivery.ThreadHandler) *Handler {
	return &Handler{
		config:          cfg,
		sseManager:      sseManager,
		tokenRepo:       tokenRepo,
		syncHandler:     syncHandler,
		contactHandler:  contactHandler,
		threadHandler:   threadHandler,
		settingsHandler: NewSettingsHandler(ollamaSettings),
	}
}

// NewVectorSearch builds the Chroma client, or nil when not configured.
func NewVectorSearch(cfg *config.Config) *chroma.ChromaClient {
	if cfg.ChromaAPIKey == "" {
		log.Println("[API] CHROMA_API_KEY not set, semantic search disabled")
		return nil
	}
	client, err := chroma.NewChromaClient(cfg)
	if err != nil {
		log.Printf("[API] Failed to initialize Chroma client, semantic search disabled: %v", err)
		return nil
	}
	return client
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.config, h.sseManager, h.tokenRepo, h.syncHandler, h.contactHandler, h.threadHandler, h.settingsHandler)

	return r.Run(addr)
}
