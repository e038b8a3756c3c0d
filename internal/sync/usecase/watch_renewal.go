package usecase

import (
	"context"
	"log"
	"time"

	credrepo "unibox-backend/internal/credential/repository"
	credusecase "unibox-backend/internal/credential/usecase"
	"unibox-backend/internal/platform"
)

// WatchRegistrar registers a mailbox for push notifications and returns
// when the registration expires.
type WatchRegistrar interface {
	Watch(ctx context.Context, creds platform.Credentials) (time.Time, error)
}

// WatchRenewer periodically re-registers Gmail push watches. Registrations
// expire after about seven days; renewing daily keeps webhook-driven sync
// flowing without user action.
type WatchRenewer struct {
	credRepo     credrepo.CredentialRepository
	credProvider credusecase.Provider
	registrar    WatchRegistrar
	interval     time.Duration
	stopChan     chan struct{}
}

func NewWatchRenewer(credRepo credrepo.CredentialRepository, credProvider credusecase.Provider, registrar WatchRegistrar) *WatchRenewer {
	return &WatchRenewer{
		credRepo:     credRepo,
		credProvider: credProvider,
		registrar:    registrar,
		interval:     24 * time.Hour,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the renewal loop
func (s *WatchRenewer) Start() {
	log.Printf("[WatchRenewer] Starting watch renewal loop (interval: %s)", s.interval)

	go func() {
		// Run immediately on start
		s.renewAll()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.renewAll()
			case <-s.stopChan:
				log.Println("[WatchRenewer] Stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the renewal loop
func (s *WatchRenewer) Stop() {
	close(s.stopChan)
}

func (s *WatchRenewer) renewAll() {
	creds, err := s.credRepo.ListByPlatform(platform.Gmail)
	if err != nil {
		log.Printf("[WatchRenewer] Error listing gmail credentials: %v", err)
		return
	}

	for _, cred := range creds {
		userCreds, err := s.credProvider.Creds(cred.UserID, platform.Gmail)
		if err != nil {
			// Expired and unrefreshable credentials renew nothing; the user
			// must reconnect.
			log.Printf("[WatchRenewer] Skipping user %s: %v", cred.UserID, err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		expiration, err := s.registrar.Watch(ctx, userCreds)
		cancel()
		if err != nil {
			log.Printf("[WatchRenewer] Failed to renew watch for user %s: %v", cred.UserID, err)
			continue
		}
		log.Printf("[WatchRenewer] Renewed watch for user %s (expires %s)", cred.UserID, expiration.Format(time.RFC3339))
	}
}
