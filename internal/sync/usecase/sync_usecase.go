package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	contactusecase "unibox-backend/internal/contact/usecase"
	msgdomain "unibox-backend/internal/message/domain"
	msgusecase "unibox-backend/internal/message/usecase"
	"unibox-backend/internal/platform"
	"unibox-backend/internal/sync/domain"
)

// Overall sync statuses. "partial" means some platforms errored while
// others completed; the failing platform is never masked as success.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Error kinds recorded per platform outcome.
const (
	ErrKindNotAuthenticated  = "not_authenticated"
	ErrKindCredentialExpired = "credential_expired"
	ErrKindRateLimited       = "rate_limited"
	ErrKindTransient         = "transient_fetch_failure"
	ErrKindSyncInProgress    = "sync_in_progress"
	ErrKindInternal          = "internal"
)

// PlatformOutcome reports one platform's sync run.
type PlatformOutcome struct {
	Platform        string `json:"platform"`
	Processed       int    `json:"processed"`
	ContactsCreated int    `json:"contacts_created"`
	ContactsMerged  int    `json:"contacts_merged"`
	Flagged         int    `json:"flagged"`
	MessagesCreated int    `json:"messages_created"`
	Error           string `json:"error,omitempty"`
	ErrorKind       string `json:"error_kind,omitempty"`
	RetryAfter      int    `json:"retry_after_seconds,omitempty"`
}

// SyncResult is the aggregate answer for one trigger call.
type SyncResult struct {
	Status   string             `json:"status"`
	Reason   string             `json:"reason,omitempty"`
	Outcomes []*PlatformOutcome `json:"outcomes"`
}

// SyncStatus is the read-only view served without triggering a fetch.
type SyncStatus struct {
	States       []*domain.SyncState `json:"states"`
	ContactCount int64               `json:"contact_count"`
	MessageCount int64               `json:"message_count"`
}

// SyncUsecase drives the fetch → filter → unify → thread pipeline per
// platform, under the per-(user, platform) mutual-exclusion flag.
type SyncUsecase struct {
	scheduler   *Scheduler
	unifier     *contactusecase.UnificationEngine
	threading   *msgusecase.ThreadingService
	annotations *msgusecase.AnnotationWorkerService
	adapters    *platform.Registry

	eventService EventService
}

// EventService defines interface for sending notifications
type EventService interface {
	SendToUser(userID string, eventType string, payload interface{})
}

func NewSyncUsecase(scheduler *Scheduler, unifier *contactusecase.UnificationEngine, threading *msgusecase.ThreadingService, annotations *msgusecase.AnnotationWorkerService, adapters *platform.Registry) *SyncUsecase {
	return &SyncUsecase{
		scheduler:   scheduler,
		unifier:     unifier,
		threading:   threading,
		annotations: annotations,
		adapters:    adapters,
	}
}

// SetEventService allows wiring EventService after creation
func (u *SyncUsecase) SetEventService(svc EventService) {
	u.eventService = svc
}

// TriggerSync runs the scheduler decision and, if due, syncs each decided
// platform independently. requestedPlatforms optionally narrows the scope.
func (u *SyncUsecase) TriggerSync(ctx context.Context, userID string, requestedPlatforms []string, force bool) (*SyncResult, error) {
	decision, err := u.scheduler.Decide(userID, force)
	if err != nil {
		return nil, err
	}
	if !decision.ShouldSync {
		return &SyncResult{Status: StatusSkipped, Reason: decision.Reason}, nil
	}

	platforms := decision.Platforms
	if len(requestedPlatforms) > 0 {
		platforms = intersect(decision.Platforms, requestedPlatforms)
	}
	if len(platforms) == 0 {
		return &SyncResult{Status: StatusSkipped, Reason: ReasonNoPlatforms}, nil
	}

	if u.eventService != nil {
		u.eventService.SendToUser(userID, "sync_started", map[string]interface{}{
			"reason":    decision.Reason,
			"platforms": platforms,
		})
	}

	result := &SyncResult{Reason: decision.Reason}
	for _, p := range platforms {
		// Each platform's outcome is independent; a failure here never
		// aborts its siblings.
		outcome := u.syncPlatform(ctx, userID, p)
		result.Outcomes = append(result.Outcomes, outcome)
	}
	result.Status = overallStatus(result.Outcomes)

	u.threading.Invalidate(userID)
	if u.eventService != nil {
		u.eventService.SendToUser(userID, "sync_completed", result)
	}
	return result, nil
}

// HandlePush processes a webhook delivery: it bypasses the staleness check
// and syncs just the one platform from its stored cursor.
func (u *SyncUsecase) HandlePush(ctx context.Context, userID, platformName string) (*PlatformOutcome, error) {
	if _, ok := u.adapters.Get(platformName); !ok {
		return nil, fmt.Errorf("unknown platform: %s", platformName)
	}

	outcome := u.syncPlatform(ctx, userID, platformName)
	if outcome.Error == "" {
		u.threading.Invalidate(userID)
		if u.eventService != nil {
			u.eventService.SendToUser(userID, "threads_updated", map[string]string{
				"platform": platformName,
			})
		}
	}
	return outcome, nil
}

// Status reports sync state and cached statistics without fetching.
func (u *SyncUsecase) Status(userID string) (*SyncStatus, error) {
	states, err := u.scheduler.syncStateRepo.GetStatesForUser(userID)
	if err != nil {
		return nil, err
	}
	contactCount, err := u.scheduler.contactRepo.CountByUser(userID)
	if err != nil {
		return nil, err
	}
	messageCount, err := u.scheduler.messageRepo.CountByUser(userID)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{
		States:       states,
		ContactCount: contactCount,
		MessageCount: messageCount,
	}, nil
}

// ResetState clears a platform's cursor so the next run is a full re-sync.
// A live in-progress flag is only overridden when it has been held past the
// maximum run duration, or when force is set: clearing a genuinely live flag
// would race cursor advancement.
func (u *SyncUsecase) ResetState(userID, platformName string, force bool) error {
	// GetOrCreate: resetting a platform that never synced is a no-op on a
	// fresh row, not an error.
	state, err := u.scheduler.syncStateRepo.GetOrCreate(userID, platformName)
	if err != nil {
		return err
	}
	if state.IsSyncing && !force && !state.SyncingLongerThan(u.scheduler.cfg.MaxSyncRunDuration) {
		return platform.ErrSyncInProgress
	}
	if err := u.scheduler.syncStateRepo.Reset(state.ID); err != nil {
		return err
	}
	log.Printf("[Sync] Reset state for user %s platform %s", userID, platformName)
	return nil
}

// syncPlatform runs the full pipeline for one platform. The in-progress
// flag is always cleared on exit; the cursor advances only on success.
func (u *SyncUsecase) syncPlatform(ctx context.Context, userID, platformName string) *PlatformOutcome {
	outcome := &PlatformOutcome{Platform: platformName}

	state, err := u.scheduler.syncStateRepo.GetOrCreate(userID, platformName)
	if err != nil {
		outcome.Error = err.Error()
		outcome.ErrorKind = ErrKindInternal
		return outcome
	}

	if err := u.scheduler.syncStateRepo.TryAcquire(state.ID); err != nil {
		outcome.Error = err.Error()
		if errors.Is(err, platform.ErrSyncInProgress) {
			outcome.ErrorKind = ErrKindSyncInProgress
		} else {
			outcome.ErrorKind = ErrKindInternal
		}
		return outcome
	}

	release := func(cursor string, processed int, errMsg string, advance bool) {
		if err := u.scheduler.syncStateRepo.Release(state.ID, cursor, processed, errMsg, advance); err != nil {
			log.Printf("[Sync] Failed to release state %s: %v", state.ID, err)
		}
	}

	creds, err := u.scheduler.credentials.Creds(userID, platformName)
	if err != nil {
		u.classify(err, outcome)
		release(state.Cursor, 0, outcome.Error, false)
		return outcome
	}

	adapter, ok := u.adapters.Get(platformName)
	if !ok {
		outcome.Error = "no adapter registered"
		outcome.ErrorKind = ErrKindInternal
		release(state.Cursor, 0, outcome.Error, false)
		return outcome
	}

	fetchCtx, cancel := context.WithTimeout(ctx, u.scheduler.cfg.FetchTimeout)
	defer cancel()

	fetched, err := adapter.FetchSince(fetchCtx, creds, state.Cursor)
	if err != nil {
		u.classify(err, outcome)
		release(state.Cursor, 0, outcome.Error, false)
		return outcome
	}

	// Contacts first so messages can attach to freshly-unified contacts.
	for _, contact := range fetched.Contacts {
		res, err := u.unifier.Process(ctx, contact, platformName, userID)
		if err != nil {
			// A persistence failure mid-window aborts the run; the cursor
			// stays put so the next run reprocesses the same window.
			u.classify(err, outcome)
			release(state.Cursor, outcome.Processed, outcome.Error, false)
			return outcome
		}
		outcome.Processed++
		switch res.Action {
		case contactusecase.ActionAutoCreatedNew:
			outcome.ContactsCreated++
		case contactusecase.ActionAutoMerged:
			outcome.ContactsMerged++
		case contactusecase.ActionFlaggedForReview:
			outcome.Flagged++
		}
	}

	// Messages in adapter order, which is assumed chronological.
	contactIDs := make(map[string]*string)
	threadsTouched := make(map[string]bool)
	for _, m := range fetched.Messages {
		row := u.buildMessage(userID, platformName, m, contactIDs)
		created, err := u.scheduler.messageRepo.Upsert(row)
		if err != nil {
			u.classify(err, outcome)
			release(state.Cursor, outcome.Processed, outcome.Error, false)
			return outcome
		}
		outcome.Processed++
		if created {
			outcome.MessagesCreated++
		}
		threadsTouched[row.ThreadKey()] = true
	}

	nextCursor := fetched.NextCursor
	if nextCursor == "" {
		nextCursor = state.Cursor
	}
	release(nextCursor, outcome.Processed, "", true)

	for threadID := range threadsTouched {
		u.annotations.Enqueue(msgusecase.AnnotationJob{
			UserID:   userID,
			Platform: platformName,
			ThreadID: threadID,
		})
	}

	log.Printf("[Sync] %s sync for user %s: %d processed, %d contacts created, %d merged, %d flagged, %d messages",
		platformName, userID, outcome.Processed, outcome.ContactsCreated, outcome.ContactsMerged, outcome.Flagged, outcome.MessagesCreated)
	return outcome
}

// buildMessage maps a normalized platform message onto a persistable row.
// The sender's contact id is resolved via the identity table and memoized
// for the duration of the run.
func (u *SyncUsecase) buildMessage(userID, platformName string, m platform.Message, contactIDs map[string]*string) *msgdomain.Message {
	var contactID *string
	if m.SenderRemoteID != "" {
		cached, ok := contactIDs[m.SenderRemoteID]
		if !ok {
			if c, err := u.scheduler.contactRepo.FindByIdentity(userID, platformName, m.SenderRemoteID); err == nil && c != nil {
				cached = &c.ID
			}
			contactIDs[m.SenderRemoteID] = cached
		}
		contactID = cached
	}

	data := msgdomain.JSONMap{}
	if m.ThreadID != "" {
		data[msgdomain.DataThreadID] = m.ThreadID
	}
	if m.Direction != "" {
		data[msgdomain.DataDirection] = m.Direction
	}
	if m.Subject != "" {
		data[msgdomain.DataSubject] = m.Subject
	}
	if m.SenderAddress != "" {
		data[msgdomain.DataSenderAddress] = m.SenderAddress
	}

	return &msgdomain.Message{
		UserID:            userID,
		Platform:          platformName,
		PlatformMessageID: m.RemoteID,
		ContactID:         contactID,
		Content:           m.Content,
		Timestamp:         m.Timestamp,
		PlatformData:      data,
	}
}

// classify maps an error onto the outcome's error kind.
func (u *SyncUsecase) classify(err error, outcome *PlatformOutcome) {
	outcome.Error = err.Error()

	var expired *platform.CredentialExpiredError
	var rateLimited *platform.RateLimitedError
	var transient *platform.TransientError

	switch {
	case errors.Is(err, platform.ErrNotAuthenticated):
		outcome.ErrorKind = ErrKindNotAuthenticated
	case errors.As(err, &expired):
		outcome.ErrorKind = ErrKindCredentialExpired
	case errors.As(err, &rateLimited):
		outcome.ErrorKind = ErrKindRateLimited
		outcome.RetryAfter = int(rateLimited.RetryAfter / time.Second)
	case errors.As(err, &transient):
		outcome.ErrorKind = ErrKindTransient
	case errors.Is(err, context.DeadlineExceeded):
		outcome.ErrorKind = ErrKindTransient
	default:
		outcome.ErrorKind = ErrKindInternal
	}
}

func overallStatus(outcomes []*PlatformOutcome) string {
	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusSuccess
	case failed == len(outcomes):
		return StatusFailed
	default:
		return StatusPartial
	}
}

func intersect(a, b []string) []string {
	allowed := make(map[string]bool, len(b))
	for _, s := range b {
		allowed[s] = true
	}
	out := make([]string, 0, len(a))
	for _, s := range a {
		if allowed[s] {
			out = append(out, s)
		}
	}
	return out
}
