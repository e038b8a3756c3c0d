package ai

// Config selects the annotation provider. Ollama settings are shared with the
// runtime settings API, so changes made there reach a running annotator.
type Config struct {
	Provider     ProviderType
	GeminiAPIKey string
	Ollama       *OllamaSettings
}

// NewAnnotatorService is the provider factory: Gemini when an API key is
// configured, Ollama otherwise, unless the provider is pinned explicitly.
func NewAnnotatorService(cfg Config) AnnotatorService {
	if cfg.Ollama == nil {
		cfg.Ollama = NewOllamaSettings("", "")
	}
	switch cfg.Provider {
	case ProviderGemini:
		return NewGeminiService(cfg.GeminiAPIKey)
	case ProviderOllama:
		return NewOllamaService(cfg.Ollama.BaseURL, cfg.Ollama.Model)
	default:
		if cfg.GeminiAPIKey != "" {
			return NewGeminiService(cfg.GeminiAPIKey)
		}
		return NewOllamaService(cfg.Ollama.BaseURL, cfg.Ollama.Model)
	}
}
