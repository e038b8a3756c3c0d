package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OllamaService implements AnnotatorService using Ollama local LLM.
// Base URL and model are read through getters so they can be changed at
// runtime via the settings API.
type OllamaService struct {
	getBaseURL func() string
	getModel   func() string
}

// NewOllamaService creates an Ollama service reading its base URL and model
// through the given getters, typically OllamaSettings method values.
func NewOllamaService(getBaseURL, getModel func() string) *OllamaService {
	return &OllamaService{getBaseURL: getBaseURL, getModel: getModel}
}

// AnnotateThread implements AnnotatorService
func (o *OllamaService) AnnotateThread(ctx context.Context, threadText string) (*ThreadAnnotation, error) {
	url := o.getBaseURL() + "/api/generate"

	// Same prompt as Gemini for consistency across providers.
	prompt := fmt.Sprintf(geminiAnnotatePrompt, threadText)

	payload := map[string]interface{}{
		"model":  o.getModel(),
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]interface{}{
			"temperature": 0.3,
			"num_predict": 300,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return parseAnnotationJSON(result.Response)
}
