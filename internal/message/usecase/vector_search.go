package usecase

import (
	"context"
	"log"
)

// ThreadSearchResult pairs a display thread with its similarity distance.
type ThreadSearchResult struct {
	Thread   *DisplayThread `json:"thread"`
	Distance float64        `json:"distance"`
}

// SearchService answers semantic queries over a user's threads by
// combining the vector index with the computed thread view.
type SearchService struct {
	vectorSearch     VectorSearchService
	threadingService *ThreadingService
}

func NewSearchService(vectorSearch VectorSearchService, threadingService *ThreadingService) *SearchService {
	return &SearchService{
		vectorSearch:     vectorSearch,
		threadingService: threadingService,
	}
}

// SearchThreads returns the user's threads ranked by semantic similarity
// to the query. Threads indexed but no longer present (e.g. all their
// messages were re-attributed) are skipped.
func (s *SearchService) SearchThreads(ctx context.Context, userID, query string, limit int) ([]*ThreadSearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	threadIDs, distances, err := s.vectorSearch.SemanticSearch(ctx, userID, query, limit)
	if err != nil {
		return nil, err
	}
	if len(threadIDs) == 0 {
		return []*ThreadSearchResult{}, nil
	}

	threads, err := s.threadingService.ThreadsForUser(userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*DisplayThread, len(threads))
	for _, t := range threads {
		byID[t.ThreadID] = t
	}

	results := make([]*ThreadSearchResult, 0, len(threadIDs))
	for i, id := range threadIDs {
		thread, ok := byID[id]
		if !ok {
			log.Printf("[Search] Indexed thread %s not found for user %s, skipping", id, userID)
			continue
		}
		distance := 0.0
		if i < len(distances) {
			distance = distances[i]
		}
		results = append(results, &ThreadSearchResult{Thread: thread, Distance: distance})
	}
	return results, nil
}
