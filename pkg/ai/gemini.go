package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GeminiService implements AnnotatorService using the Gemini REST API
type GeminiService struct {
	apiKey string
}

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{apiKey: apiKey}
}

const geminiAnnotatePrompt = `You are an assistant that analyzes a conversation thread and produces a compact JSON annotation.

INSTRUCTIONS:
- "summary": the thread's main point in one or two sentences
- "key_points": semicolon-separated list of the important facts, empty string if none
- "action_items": semicolon-separated list of things the reader must do, empty string if none
- "urgency": one of "low", "normal", "high"
- Respond with ONLY the JSON object, no markdown fences

THREAD:
%s

JSON:`

// AnnotateThread implements AnnotatorService
func (g *GeminiService) AnnotateThread(ctx context.Context, threadText string) (*ThreadAnnotation, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not configured")
	}

	url := "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent?key=" + g.apiKey
	prompt := fmt.Sprintf(geminiAnnotatePrompt, threadText)

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse gemini response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	return parseAnnotationJSON(result.Candidates[0].Content.Parts[0].Text)
}

// parseAnnotationJSON tolerates models that wrap the JSON in markdown fences.
func parseAnnotationJSON(text string) (*ThreadAnnotation, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var annotation ThreadAnnotation
	if err := json.Unmarshal([]byte(text), &annotation); err != nil {
		return nil, fmt.Errorf("failed to parse annotation JSON: %w", err)
	}
	if annotation.Summary == "" {
		return nil, fmt.Errorf("annotation has no summary")
	}
	return &annotation, nil
}
