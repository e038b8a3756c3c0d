package ai

import "context"

// ThreadAnnotation is the AI-derived payload for one conversation thread.
type ThreadAnnotation struct {
	Summary     string `json:"summary"`
	KeyPoints   string `json:"key_points,omitempty"`
	ActionItems string `json:"action_items,omitempty"`
	Urgency     string `json:"urgency,omitempty"` // "low", "normal" or "high"
}

// AnnotatorService is the interface for AI thread annotation
// Implement this interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type AnnotatorService interface {
	AnnotateThread(ctx context.Context, threadText string) (*ThreadAnnotation, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
