package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOllamaSettingsDefaults(t *testing.T) {
	s := NewOllamaSettings("", "")
	assert.Equal(t, "http://localhost:11434", s.BaseURL())
	assert.Equal(t, "llama3", s.Model())
}

func TestOllamaSettingsUpdateKeepsModelWhenEmpty(t *testing.T) {
	s := NewOllamaSettings("http://localhost:11434", "llama3")

	s.Update("http://ollama.internal:11434", "")
	assert.Equal(t, "http://ollama.internal:11434", s.BaseURL())
	assert.Equal(t, "llama3", s.Model())

	s.Update("http://ollama.internal:11434", "mistral")
	assert.Equal(t, "mistral", s.Model())
}

func TestOllamaSettingsUpdateReachesRunningService(t *testing.T) {
	s := NewOllamaSettings("http://localhost:11434", "llama3")
	svc := NewOllamaService(s.BaseURL, s.Model)

	s.Update("http://ollama.internal:11434", "mistral")

	// The service reads through the settings getters, so the update applies
	// without rebuilding it.
	assert.Equal(t, "http://ollama.internal:11434", svc.getBaseURL())
	assert.Equal(t, "mistral", svc.getModel())
}
