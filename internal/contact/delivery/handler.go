package delivery

import (
	"errors"
	"net/http"

	contactdto "unibox-backend/internal/contact/dto"
	"unibox-backend/internal/contact/repository"
	"unibox-backend/internal/contact/usecase"
	"unibox-backend/internal/platform"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	contactRepo     repository.ContactRepository
	suppressionRepo repository.SuppressionRepository
	workbench       *usecase.Workbench
}

func NewContactHandler(contactRepo repository.ContactRepository, suppressionRepo repository.SuppressionRepository, workbench *usecase.Workbench) *ContactHandler {
	return &ContactHandler{
		contactRepo:     contactRepo,
		suppressionRepo: suppressionRepo,
		workbench:       workbench,
	}
}

func (h *ContactHandler) ListContacts(c *gin.Context) {
	userID := c.GetString("userID")

	contacts, err := h.contactRepo.ListByUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := h.contactRepo.CountByUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, contactdto.ContactsResponse{Contacts: contacts, Total: total})
}

func (h *ContactHandler) GetContact(c *gin.Context) {
	userID := c.GetString("userID")
	contactID := c.Param("id")

	contact, err := h.contactRepo.GetByID(userID, contactID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if contact == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
		return
	}

	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) ListPending(c *gin.Context) {
	userID := c.GetString("userID")

	pending, err := h.workbench.ListPending(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, contactdto.PendingResponse{Pending: pending})
}

// Decide applies one terminal decision to a pending approval. Replaying
// the identical decision is a 200 no-op; a different decision on a closed
// item is a 409.
func (h *ContactHandler) Decide(c *gin.Context) {
	userID := c.GetString("userID")
	pendingID := c.Param("id")

	var req contactdto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.workbench.Decide(userID, pendingID, req.Decision, req.TargetContactID)
	if err != nil {
		if errors.Is(err, platform.ErrConflictingDecision) {
			c.JSON(http.StatusConflict, gin.H{"error": "pending approval already decided differently"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

func (h *ContactHandler) ListSuppressions(c *gin.Context) {
	userID := c.GetString("userID")

	suppressions, err := h.suppressionRepo.ListByUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, contactdto.SuppressionsResponse{Suppressions: suppressions})
}

// DeleteSuppression clears one suppressed identity so future ingestion of
// that sender can flag for review again.
func (h *ContactHandler) DeleteSuppression(c *gin.Context) {
	userID := c.GetString("userID")
	suppressionID := c.Param("id")

	if err := h.suppressionRepo.Delete(userID, suppressionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "suppression removed"})
}
