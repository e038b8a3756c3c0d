package delivery

import (
	"net/http"

	msgdto "unibox-backend/internal/message/dto"
	"unibox-backend/internal/message/usecase"

	"github.com/gin-gonic/gin"
)

type ThreadHandler struct {
	threadingService *usecase.ThreadingService
	searchService    *usecase.SearchService
}

func NewThreadHandler(threadingService *usecase.ThreadingService, searchService *usecase.SearchService) *ThreadHandler {
	return &ThreadHandler{
		threadingService: threadingService,
		searchService:    searchService,
	}
}

// ListThreads returns the computed thread view, most recent activity first.
func (h *ThreadHandler) ListThreads(c *gin.Context) {
	userID := c.GetString("userID")

	threads, err := h.threadingService.ThreadsForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, msgdto.ThreadsResponse{Threads: threads, Total: len(threads)})
}

// GetThread returns one thread with its full raw message list.
func (h *ThreadHandler) GetThread(c *gin.Context) {
	userID := c.GetString("userID")
	threadID := c.Param("id")

	threads, err := h.threadingService.ThreadsForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, t := range threads {
		if t.ThreadID == threadID {
			c.JSON(http.StatusOK, t)
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
}

// SemanticSearch ranks threads by similarity to a natural-language query.
func (h *ThreadHandler) SemanticSearch(c *gin.Context) {
	userID := c.GetString("userID")

	if h.searchService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "semantic search is not configured"})
		return
	}

	var req msgdto.SemanticSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.searchService.SearchThreads(c.Request.Context(), userID, req.Query, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, msgdto.SemanticSearchResponse{Results: results})
}
