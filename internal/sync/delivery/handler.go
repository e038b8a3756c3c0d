package delivery

import (
	"errors"
	"net/http"

	credrepo "unibox-backend/internal/credential/repository"
	credusecase "unibox-backend/internal/credential/usecase"
	"unibox-backend/internal/platform"
	syncdto "unibox-backend/internal/sync/dto"
	"unibox-backend/internal/sync/usecase"
	"unibox-backend/pkg/gmailsync"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	syncUsecase  *usecase.SyncUsecase
	credRepo     credrepo.CredentialRepository
	credProvider credusecase.Provider
	gmailAdapter *gmailsync.Adapter
}

func NewSyncHandler(syncUsecase *usecase.SyncUsecase, credRepo credrepo.CredentialRepository, credProvider credusecase.Provider, gmailAdapter *gmailsync.Adapter) *SyncHandler {
	return &SyncHandler{
		syncUsecase:  syncUsecase,
		credRepo:     credRepo,
		credProvider: credProvider,
		gmailAdapter: gmailAdapter,
	}
}

// TriggerSync runs the scheduler and, when due, syncs the user's platforms.
// Partial failures still return 200 with per-platform detail.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	userID := c.GetString("userID")

	var req syncdto.TriggerSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.syncUsecase.TriggerSync(c.Request.Context(), userID, req.Platforms, req.Force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Status reports sync state and cached statistics without fetching.
func (h *SyncHandler) Status(c *gin.Context) {
	userID := c.GetString("userID")

	status, err := h.syncUsecase.Status(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// Webhook receives an incremental push for one platform and runs a delta
// sync for the owning user. The delivery is unauthenticated in the JWT
// sense; routing is by the platform account email.
func (h *SyncHandler) Webhook(c *gin.Context) {
	platformName := c.Param("platform")

	var req syncdto.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := h.credRepo.FindUserIDByAccountEmail(platformName, req.AccountEmail)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if userID == "" {
		// Ack unknown accounts so the sender stops retrying.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	outcome, err := h.syncUsecase.HandlePush(c.Request.Context(), userID, platformName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// Reset clears a platform's cursor, forcing the next run to be initial.
func (h *SyncHandler) Reset(c *gin.Context) {
	userID := c.GetString("userID")

	var req syncdto.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.syncUsecase.ResetState(userID, req.Platform, req.Force); err != nil {
		if errors.Is(err, platform.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "sync in progress, pass force to override"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "sync state reset"})
}

// WatchGmail registers the user's mailbox for pub/sub push notifications so
// webhook-driven incremental syncs start flowing.
func (h *SyncHandler) WatchGmail(c *gin.Context) {
	userID := c.GetString("userID")

	creds, err := h.credProvider.Creds(userID, platform.Gmail)
	if err != nil {
		if errors.Is(err, platform.ErrNotAuthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "gmail is not connected"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	expiration, err := h.gmailAdapter.Watch(c.Request.Context(), creds)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "watch registered",
		"expiration": expiration,
	})
}
