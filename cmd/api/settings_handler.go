package api

import (
	"net/http"
	"strings"
	"time"

	"unibox-backend/pkg/ai"

	"github.com/gin-gonic/gin"
)

// SettingsHandler exposes the runtime annotator configuration. Updates apply
// to the next annotation call without a restart.
type SettingsHandler struct {
	ollama *ai.OllamaSettings
	client *http.Client
}

func NewSettingsHandler(ollama *ai.OllamaSettings) *SettingsHandler {
	return &SettingsHandler{
		ollama: ollama,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type ollamaSettingsRequest struct {
	BaseURL string `json:"ollama_base_url" binding:"required"`
	Model   string `json:"ollama_model"`
}

// Get returns the Ollama configuration currently in effect.
func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ollama_base_url": h.ollama.BaseURL(),
		"ollama_model":    h.ollama.Model(),
	})
}

// Update replaces the Ollama base URL and, when given, the model.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req ollamaSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !strings.HasPrefix(req.BaseURL, "http://") && !strings.HasPrefix(req.BaseURL, "https://") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ollama_base_url must be an http(s) URL"})
		return
	}

	h.ollama.Update(strings.TrimRight(req.BaseURL, "/"), req.Model)
	c.JSON(http.StatusOK, gin.H{
		"ollama_base_url": h.ollama.BaseURL(),
		"ollama_model":    h.ollama.Model(),
	})
}

// CheckConnection verifies an Ollama server answers on its tags endpoint.
// Without a URL in the body, the currently configured one is checked.
func (h *SettingsHandler) CheckConnection(c *gin.Context) {
	var req struct {
		BaseURL string `json:"ollama_base_url"`
	}
	_ = c.ShouldBindJSON(&req)

	baseURL := strings.TrimRight(req.BaseURL, "/")
	if baseURL == "" {
		baseURL = h.ollama.BaseURL()
	}

	resp, err := h.client.Get(baseURL + "/api/tags")
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"reachable": false, "error": err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{"reachable": false, "status_code": resp.StatusCode})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reachable": true, "ollama_base_url": baseURL})
}
