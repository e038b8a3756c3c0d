package usecase

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	msgdomain "unibox-backend/internal/message/domain"
	"unibox-backend/internal/message/repository"
	"unibox-backend/pkg/ai"
)

// AnnotationJob requests an AI annotation for one conversation thread.
type AnnotationJob struct {
	UserID   string
	Platform string
	ThreadID string
}

// EventService defines interface for sending notifications
type EventService interface {
	SendToUser(userID string, eventType string, payload interface{})
}

// VectorSearchService interface for vector search operations
type VectorSearchService interface {
	UpsertThreadEmbedding(ctx context.Context, userID, threadID, subject, content string) error
	SemanticSearch(ctx context.Context, userID, query string, limit int) ([]string, []float64, error)
}

// AnnotationWorkerService generates thread summaries in the background.
// Annotation is best-effort: a failed or slow AI call never blocks cursor
// advancement, it just leaves the thread without a summary until retried.
type AnnotationWorkerService struct {
	messageRepo      repository.MessageRepository
	threadingService *ThreadingService
	annotator        ai.AnnotatorService
	vectorSearch     VectorSearchService
	eventService     EventService

	jobQueue    chan AnnotationJob
	workerWg    sync.WaitGroup
	workerCount int
	started     bool
	mu          sync.Mutex
}

func NewAnnotationWorkerService(messageRepo repository.MessageRepository, threadingService *ThreadingService, workerCount int) *AnnotationWorkerService {
	if workerCount <= 0 {
		workerCount = 3
	}
	return &AnnotationWorkerService{
		messageRepo:      messageRepo,
		threadingService: threadingService,
		jobQueue:         make(chan AnnotationJob, 500),
		workerCount:      workerCount,
	}
}

// SetAnnotator allows wiring the AI service after creation
func (s *AnnotationWorkerService) SetAnnotator(svc ai.AnnotatorService) {
	s.annotator = svc
}

// SetVectorSearchService allows wiring VectorSearchService after creation
func (s *AnnotationWorkerService) SetVectorSearchService(svc VectorSearchService) {
	s.vectorSearch = svc
}

// SetEventService allows wiring EventService after creation
func (s *AnnotationWorkerService) SetEventService(svc EventService) {
	s.eventService = svc
}

// Start starts the annotation workers
func (s *AnnotationWorkerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	for i := 0; i < s.workerCount; i++ {
		s.workerWg.Add(1)
		go s.worker(i)
	}
	s.started = true
	log.Printf("[AnnotationWorker] Started %d workers", s.workerCount)
}

// Stop stops all workers gracefully
func (s *AnnotationWorkerService) Stop() {
	close(s.jobQueue)
	s.workerWg.Wait()
}

// Enqueue schedules a thread for annotation. A full queue drops the job:
// the next sync touching the thread re-enqueues it.
func (s *AnnotationWorkerService) Enqueue(job AnnotationJob) {
	select {
	case s.jobQueue <- job:
	default:
		log.Printf("[AnnotationWorker] Queue full, dropping job for thread %s", job.ThreadID)
	}
}

func (s *AnnotationWorkerService) worker(workerID int) {
	defer s.workerWg.Done()

	for job := range s.jobQueue {
		if s.annotator == nil {
			continue
		}
		if err := s.annotate(job); err != nil {
			log.Printf("[AnnotationWorker] Worker %d: failed to annotate thread %s: %v", workerID, job.ThreadID, err)
		}
	}
}

func (s *AnnotationWorkerService) annotate(job AnnotationJob) error {
	messages, err := s.messageRepo.ListByThread(job.UserID, job.ThreadID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	var b strings.Builder
	var subject string
	for _, m := range messages {
		if subject == "" {
			subject = m.PlatformData.GetString(msgdomain.DataSubject)
		}
		b.WriteString(m.Timestamp.Format(time.RFC3339))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	threadText := b.String()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	annotation, err := s.annotator.AnnotateThread(ctx, threadText)
	if err != nil {
		return err
	}

	latest := messages[len(messages)-1]
	summary := &msgdomain.Message{
		UserID:            job.UserID,
		Platform:          latest.Platform,
		PlatformMessageID: msgdomain.ThreadSummaryPrefix + job.ThreadID,
		ContactID:         latest.ContactID,
		Content:           annotation.Summary,
		Timestamp:         latest.Timestamp,
		PlatformData: msgdomain.JSONMap{
			msgdomain.DataThreadID:    job.ThreadID,
			msgdomain.DataSubject:     subject,
			msgdomain.DataKeyPoints:   annotation.KeyPoints,
			msgdomain.DataActionItems: annotation.ActionItems,
			msgdomain.DataUrgency:     annotation.Urgency,
		},
	}
	if _, err := s.messageRepo.Upsert(summary); err != nil {
		return err
	}

	// A new summary changes the thread view.
	s.threadingService.Invalidate(job.UserID)

	if s.vectorSearch != nil {
		if err := s.vectorSearch.UpsertThreadEmbedding(ctx, job.UserID, job.ThreadID, subject, threadText); err != nil {
			log.Printf("[AnnotationWorker] Failed to index thread %s: %v", job.ThreadID, err)
		}
	}
	if s.eventService != nil {
		s.eventService.SendToUser(job.UserID, "threads_updated", map[string]string{
			"thread_id": job.ThreadID,
		})
	}
	return nil
}
