package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	contactdomain "unibox-backend/internal/contact/domain"
	"unibox-backend/internal/contact/repository"
	"unibox-backend/internal/platform"
	"unibox-backend/pkg/botfilter"
	"unibox-backend/pkg/fuzzy"
)

// Unification actions.
const (
	ActionAutoMerged           = "auto_merged"
	ActionAutoCreatedNew       = "auto_created_new"
	ActionFlaggedForReview     = "flagged_for_review"
	ActionDefinitiveLinkExists = "definitive_link_exists"
	ActionFilteredBot          = "filtered_bot"
	ActionSuppressed           = "suppressed"
)

// Name similarity at or above this flags a candidate for review. Nothing
// short of an exact email match ever auto-merges.
const reviewSimilarityThreshold = 0.6

// Result is the outcome of processing one platform contact.
type Result struct {
	Action    string `json:"action"`
	ContactID string `json:"contact_id,omitempty"`
	PendingID string `json:"pending_id,omitempty"`
}

// EventService defines interface for sending notifications
type EventService interface {
	SendToUser(userID string, eventType string, payload interface{})
}

// UnificationEngine places normalized platform contacts into the unified
// contact graph: auto-merge on an exact single-candidate email match,
// auto-create when nothing matches, flag for review otherwise.
type UnificationEngine struct {
	contactRepo     repository.ContactRepository
	pendingRepo     repository.PendingApprovalRepository
	suppressionRepo repository.SuppressionRepository
	eventService    EventService

	// Candidate matching followed by a write must be serialized per user or
	// two concurrent decisions could both pick "create new" for the same
	// person. The sync mutual-exclusion lock covers sync runs; this covers
	// out-of-band calls like workbench decisions.
	userLocks   map[string]*sync.Mutex
	userLocksMu sync.Mutex
}

func NewUnificationEngine(contactRepo repository.ContactRepository, pendingRepo repository.PendingApprovalRepository, suppressionRepo repository.SuppressionRepository) *UnificationEngine {
	return &UnificationEngine{
		contactRepo:     contactRepo,
		pendingRepo:     pendingRepo,
		suppressionRepo: suppressionRepo,
		userLocks:       make(map[string]*sync.Mutex),
	}
}

// SetEventService allows wiring EventService after creation
func (e *UnificationEngine) SetEventService(svc EventService) {
	e.eventService = svc
}

func (e *UnificationEngine) lockUser(userID string) *sync.Mutex {
	e.userLocksMu.Lock()
	defer e.userLocksMu.Unlock()
	mu, ok := e.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		e.userLocks[userID] = mu
	}
	return mu
}

// Process runs one normalized contact through filter → link check → candidate
// matching → decision. The merge/create write is a single transaction; on
// error the whole call fails and the caller retries.
func (e *UnificationEngine) Process(ctx context.Context, contact platform.Contact, sourcePlatform, userID string) (*Result, error) {
	if contact.RemoteID == "" {
		return nil, fmt.Errorf("contact has no remote id")
	}

	// Step 1: bot filtering. Only high-confidence signals exclude; medium
	// signals are logged and the contact continues.
	classification := botfilter.Classify(contact)
	if classification.ShouldFilter() {
		log.Printf("[Unify] Filtered bot contact %s on %s (signals: %v)", contact.RemoteID, sourcePlatform, classification.Signals)
		return &Result{Action: ActionFilteredBot}, nil
	}
	if classification.IsBot {
		log.Printf("[Unify] Medium-confidence bot signals for %s on %s, ingesting anyway: %v", contact.RemoteID, sourcePlatform, classification.Signals)
	}

	mu := e.lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Rejected identities never re-flag.
	suppressed, err := e.suppressionRepo.IsSuppressed(userID, sourcePlatform, contact.RemoteID, contact.Email)
	if err != nil {
		return nil, err
	}
	if suppressed {
		return &Result{Action: ActionSuppressed}, nil
	}

	// Step 2: definitive link check — idempotent re-ingestion.
	if existing, err := e.contactRepo.FindByIdentity(userID, sourcePlatform, contact.RemoteID); err != nil {
		return nil, err
	} else if existing != nil {
		return &Result{Action: ActionDefinitiveLinkExists, ContactID: existing.ID}, nil
	}

	// An open pending item for the same identity must not be duplicated.
	if open, err := e.pendingRepo.FindOpenByIdentity(userID, sourcePlatform, contact.RemoteID); err != nil {
		return nil, err
	} else if open != nil {
		return &Result{Action: ActionFlaggedForReview, PendingID: open.ID}, nil
	}

	// Step 3: candidate matching. Exact email first.
	if contact.Email != "" {
		matches, err := e.contactRepo.FindByEmail(userID, contact.Email)
		if err != nil {
			return nil, err
		}
		if len(matches) == 1 {
			// Single unambiguous exact match: auto-merge.
			target := matches[0]
			if target.IdentityFor(sourcePlatform) != nil {
				// The candidate is already linked on this platform, so this is
				// a second distinct account sharing the email. Never a safe merge.
				return e.flagForReview(contact, sourcePlatform, userID, target.ID, 0.9, "candidate already linked on this platform")
			}
			if err := e.contactRepo.AttachIdentity(userID, target.ID, identityFrom(contact, sourcePlatform)); err != nil {
				return nil, err
			}
			log.Printf("[Unify] Auto-merged %s/%s into contact %s", sourcePlatform, contact.RemoteID, target.ID)
			return &Result{Action: ActionAutoMerged, ContactID: target.ID}, nil
		}
		if len(matches) > 1 {
			// The same email on several contacts is itself ambiguous.
			return e.flagForReview(contact, sourcePlatform, userID, matches[0].ID, 0.9, "email matched multiple contacts")
		}
	}

	// Fallback: fuzzy name similarity with secondary identity hints.
	best, bestScore, reason, err := e.bestFuzzyCandidate(userID, contact)
	if err != nil {
		return nil, err
	}
	if best != "" {
		return e.flagForReview(contact, sourcePlatform, userID, best, bestScore, reason)
	}

	// Step 4: nothing matched at all — auto-create.
	unified := &contactdomain.UnifiedContact{
		UserID:       userID,
		DisplayName:  contact.Name,
		PrimaryEmail: strings.ToLower(strings.TrimSpace(contact.Email)),
	}
	if unified.DisplayName == "" {
		unified.DisplayName = contact.Handle
	}
	if err := e.contactRepo.CreateWithIdentity(unified, identityFrom(contact, sourcePlatform)); err != nil {
		return nil, err
	}
	log.Printf("[Unify] Created contact %s for %s/%s", unified.ID, sourcePlatform, contact.RemoteID)
	return &Result{Action: ActionAutoCreatedNew, ContactID: unified.ID}, nil
}

// bestFuzzyCandidate scans the user's contacts for a name-similar candidate,
// boosted by an exact phone/handle hint. Returns the best contact id with its
// confidence, or "" when nothing clears the review threshold.
func (e *UnificationEngine) bestFuzzyCandidate(userID string, contact platform.Contact) (string, float64, string, error) {
	if contact.Name == "" && contact.Phone == "" && contact.Handle == "" {
		return "", 0, "", nil
	}

	candidates, err := e.contactRepo.ListByUser(userID)
	if err != nil {
		return "", 0, "", err
	}

	var bestID string
	var bestScore float64
	var bestReason string
	for _, cand := range candidates {
		score := fuzzy.NameSimilarity(contact.Name, cand.DisplayName)
		reason := "name similarity"

		for _, id := range cand.Identities {
			if fuzzy.MatchesHint(contact.Phone, id.Phone) || fuzzy.MatchesHint(contact.Handle, id.Handle) {
				// An exact secondary hint is a strong suggestion, but per
				// policy it still only flags, never auto-merges.
				if score < 0.85 {
					score = 0.85
				}
				reason = "secondary identity hint"
				break
			}
		}

		if score > bestScore {
			bestID = cand.ID
			bestScore = score
			bestReason = reason
		}
	}

	if bestScore < reviewSimilarityThreshold {
		return "", 0, "", nil
	}
	return bestID, bestScore, bestReason, nil
}

func (e *UnificationEngine) flagForReview(contact platform.Contact, sourcePlatform, userID, candidateID string, confidence float64, reason string) (*Result, error) {
	pending := &contactdomain.PendingApproval{
		UserID:              userID,
		Platform:            sourcePlatform,
		RemoteContactID:     contact.RemoteID,
		Name:                contact.Name,
		Email:               strings.ToLower(strings.TrimSpace(contact.Email)),
		Handle:              contact.Handle,
		Phone:               contact.Phone,
		AvatarURL:           contact.AvatarURL,
		CandidateContactID:  candidateID,
		CandidateConfidence: confidence,
		MatchReason:         reason,
	}
	if err := e.pendingRepo.Create(pending); err != nil {
		return nil, err
	}

	log.Printf("[Unify] Flagged %s/%s for review (candidate %s, confidence %.2f)", sourcePlatform, contact.RemoteID, candidateID, confidence)
	if e.eventService != nil {
		e.eventService.SendToUser(userID, "pending_approval", map[string]string{
			"pending_id": pending.ID,
			"platform":   sourcePlatform,
			"name":       pending.Name,
		})
	}
	return &Result{Action: ActionFlaggedForReview, PendingID: pending.ID}, nil
}

func identityFrom(contact platform.Contact, sourcePlatform string) *contactdomain.PlatformIdentity {
	raw := contactdomain.JSONMap{}
	if contact.AvatarURL != "" {
		raw["avatar_url"] = contact.AvatarURL
	}
	return &contactdomain.PlatformIdentity{
		Platform:          sourcePlatform,
		PlatformContactID: contact.RemoteID,
		Handle:            contact.Handle,
		Email:             strings.ToLower(strings.TrimSpace(contact.Email)),
		Phone:             contact.Phone,
		RawData:           raw,
	}
}
