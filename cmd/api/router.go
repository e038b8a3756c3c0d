package api

import (
	"net/http"

	contactDelivery "unibox-backend/internal/contact/delivery"
	messageDelivery "unibox-backend/internal/message/delivery"
	"unibox-backend/internal/notification"
	syncDelivery "unibox-backend/internal/sync/delivery"
	"unibox-backend/pkg/config"
	"unibox-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, sseManager *sse.Manager, tokenRepo notification.DeviceTokenRepository, syncHandler *syncDelivery.SyncHandler, contactHandler *contactDelivery.ContactHandler, threadHandler *messageDelivery.ThreadHandler, settingsHandler *SettingsHandler) {
	auth := AuthMiddleware(cfg.JWTSecret)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// SSE endpoint
		api.GET("/events", auth, func(c *gin.Context) {
			sseManager.HandleStream(c, c.GetString("userID"))
		})

		// FCM device registration (protected)
		fcmGroup := api.Group("/fcm")
		fcmGroup.Use(auth)
		{
			fcmGroup.POST("/register", func(c *gin.Context) {
				var req struct {
					Token string `json:"token" binding:"required"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				if err := tokenRepo.Register(c.GetString("userID"), req.Token); err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
					return
				}
				c.JSON(http.StatusOK, gin.H{"message": "token registered"})
			})
			fcmGroup.DELETE("/:token", func(c *gin.Context) {
				if err := tokenRepo.Delete(c.Param("token")); err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
					return
				}
				c.JSON(http.StatusOK, gin.H{"message": "token removed"})
			})
		}

		// Sync routes
		syncGroup := api.Group("/sync")
		{
			syncGroup.POST("", auth, syncHandler.TriggerSync)
			syncGroup.GET("/status", auth, syncHandler.Status)
			syncGroup.POST("/watch", auth, syncHandler.WatchGmail)
			syncGroup.POST("/reset", auth, syncHandler.Reset)
			// Webhook deliveries carry no user JWT; routing is by account email.
			syncGroup.POST("/webhook/:platform", syncHandler.Webhook)
		}

		// Contact routes (protected)
		contacts := api.Group("/contacts")
		contacts.Use(auth)
		{
			contacts.GET("", contactHandler.ListContacts)
			contacts.GET("/pending", contactHandler.ListPending)
			contacts.POST("/pending/:id/decision", contactHandler.Decide)
			contacts.GET("/suppressions", contactHandler.ListSuppressions)
			contacts.DELETE("/suppressions/:id", contactHandler.DeleteSuppression)
			contacts.GET("/:id", contactHandler.GetContact)
		}

		// Thread routes (protected)
		threads := api.Group("/threads")
		threads.Use(auth)
		{
			threads.GET("", threadHandler.ListThreads)
			threads.GET("/:id", threadHandler.GetThread)
		}

		// Search routes (protected)
		search := api.Group("/search")
		search.Use(auth)
		{
			search.POST("/semantic", threadHandler.SemanticSearch)
		}

		// Settings routes (public) - Runtime configuration
		settings := api.Group("/settings")
		{
			settings.GET("/ollama", settingsHandler.Get)
			settings.PUT("/ollama", settingsHandler.Update)
			settings.POST("/ollama/test", settingsHandler.CheckConnection)
		}
	}
}
