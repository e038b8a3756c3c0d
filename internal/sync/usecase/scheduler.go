package usecase

import (
	"time"

	contactrepo "unibox-backend/internal/contact/repository"
	credusecase "unibox-backend/internal/credential/usecase"
	msgrepo "unibox-backend/internal/message/repository"
	"unibox-backend/internal/sync/domain"
	syncrepo "unibox-backend/internal/sync/repository"
	"unibox-backend/pkg/config"
)

// Decision reasons surfaced to callers.
const (
	ReasonInProgress    = "sync already in progress"
	ReasonForceThrottle = "forced sync throttled"
	ReasonForced        = "forced sync"
	ReasonInitialSync   = "initial sync"
	ReasonDataStale     = "data stale"
	ReasonDataFresh     = "data fresh, serving cache"
	ReasonNoPlatforms   = "no connected platforms"
)

// SyncDecision is the scheduler's answer for one user.
type SyncDecision struct {
	ShouldSync bool     `json:"should_sync"`
	Reason     string   `json:"reason"`
	Platforms  []string `json:"platforms"`
}

// Scheduler decides whether a user's cached data warrants an external fetch.
// It only reads state; acting on the decision is the orchestrator's job.
type Scheduler struct {
	syncStateRepo syncrepo.SyncStateRepository
	contactRepo   contactrepo.ContactRepository
	messageRepo   msgrepo.MessageRepository
	credentials   credusecase.Provider
	cfg           *config.Config
}

func NewScheduler(syncStateRepo syncrepo.SyncStateRepository, contactRepo contactrepo.ContactRepository, messageRepo msgrepo.MessageRepository, credentials credusecase.Provider, cfg *config.Config) *Scheduler {
	return &Scheduler{
		syncStateRepo: syncStateRepo,
		contactRepo:   contactRepo,
		messageRepo:   messageRepo,
		credentials:   credentials,
		cfg:           cfg,
	}
}

// Decide evaluates, in order: in-progress check, force throttling, initial
// sync, staleness. Platforms without a usable credential are excluded up
// front and never reported as failures.
func (s *Scheduler) Decide(userID string, force bool) (*SyncDecision, error) {
	states, err := s.syncStateRepo.GetStatesForUser(userID)
	if err != nil {
		return nil, err
	}

	for _, state := range states {
		if state.IsSyncing {
			return &SyncDecision{ShouldSync: false, Reason: ReasonInProgress}, nil
		}
	}

	platforms, err := s.credentials.ValidPlatforms(userID)
	if err != nil {
		return nil, err
	}
	if len(platforms) == 0 {
		return &SyncDecision{ShouldSync: false, Reason: ReasonNoPlatforms}, nil
	}

	lastSync := latestSyncTime(states)

	if force {
		if lastSync != nil && time.Since(*lastSync) < s.cfg.MinForceSyncInterval {
			return &SyncDecision{ShouldSync: false, Reason: ReasonForceThrottle}, nil
		}
		return &SyncDecision{ShouldSync: true, Reason: ReasonForced, Platforms: platforms}, nil
	}

	contactCount, err := s.contactRepo.CountByUser(userID)
	if err != nil {
		return nil, err
	}
	messageCount, err := s.messageRepo.CountByUser(userID)
	if err != nil {
		return nil, err
	}
	if contactCount == 0 && messageCount == 0 {
		return &SyncDecision{ShouldSync: true, Reason: ReasonInitialSync, Platforms: platforms}, nil
	}

	if lastSync == nil || time.Since(*lastSync) > s.cfg.StaleThreshold {
		return &SyncDecision{ShouldSync: true, Reason: ReasonDataStale, Platforms: stalePlatforms(states, platforms, s.cfg.StaleThreshold)}, nil
	}

	return &SyncDecision{ShouldSync: false, Reason: ReasonDataFresh}, nil
}

// latestSyncTime returns the most recent successful sync across platforms.
func latestSyncTime(states []*domain.SyncState) *time.Time {
	var latest *time.Time
	for _, state := range states {
		if state.LastSyncAt == nil {
			continue
		}
		if latest == nil || state.LastSyncAt.After(*latest) {
			latest = state.LastSyncAt
		}
	}
	return latest
}

// stalePlatforms keeps only the valid platforms whose state is stale or
// missing entirely.
func stalePlatforms(states []*domain.SyncState, valid []string, threshold time.Duration) []string {
	byPlatform := make(map[string]*domain.SyncState, len(states))
	for _, state := range states {
		byPlatform[state.Platform] = state
	}
	out := make([]string, 0, len(valid))
	for _, p := range valid {
		state, ok := byPlatform[p]
		if !ok || state.Stale(threshold) {
			out = append(out, p)
		}
	}
	return out
}
