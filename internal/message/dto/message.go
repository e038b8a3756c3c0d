package dto

import "unibox-backend/internal/message/usecase"

// ThreadsResponse wraps the computed thread view.
type ThreadsResponse struct {
	Threads []*usecase.DisplayThread `json:"threads"`
	Total   int                      `json:"total"`
}

// SemanticSearchRequest queries threads by meaning rather than keywords.
type SemanticSearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

// SemanticSearchResponse wraps ranked search hits.
type SemanticSearchResponse struct {
	Results []*usecase.ThreadSearchResult `json:"results"`
}
