package usecase

import (
	"fmt"
	"log"
	"strings"

	contactdomain "unibox-backend/internal/contact/domain"
	contactrepo "unibox-backend/internal/contact/repository"
	msgrepo "unibox-backend/internal/message/repository"
	"unibox-backend/internal/platform"
)

// DecisionOutcome reports what a workbench decision did.
type DecisionOutcome struct {
	Status           string `json:"status"`
	ContactID        string `json:"contact_id,omitempty"`
	MessagesImported int64  `json:"messages_imported"`
	Replayed         bool   `json:"replayed,omitempty"`
}

// Workbench applies human (or API) decisions to pending approvals exactly once.
type Workbench struct {
	engine          *UnificationEngine
	contactRepo     contactrepo.ContactRepository
	pendingRepo     contactrepo.PendingApprovalRepository
	suppressionRepo contactrepo.SuppressionRepository
	messageRepo     msgrepo.MessageRepository
}

func NewWorkbench(engine *UnificationEngine, contactRepo contactrepo.ContactRepository, pendingRepo contactrepo.PendingApprovalRepository, suppressionRepo contactrepo.SuppressionRepository, messageRepo msgrepo.MessageRepository) *Workbench {
	return &Workbench{
		engine:          engine,
		contactRepo:     contactRepo,
		pendingRepo:     pendingRepo,
		suppressionRepo: suppressionRepo,
		messageRepo:     messageRepo,
	}
}

// ListPending returns the user's open approvals, oldest first.
func (w *Workbench) ListPending(userID string) ([]*contactdomain.PendingApproval, error) {
	return w.pendingRepo.ListOpen(userID)
}

// Decide applies one terminal decision. Replaying the identical decision on a
// closed item is a no-op; any different decision fails with
// platform.ErrConflictingDecision.
func (w *Workbench) Decide(userID, pendingID, decision, targetContactID string) (*DecisionOutcome, error) {
	// Decisions mutate the contact graph: take the same per-user exclusion
	// the unification engine uses.
	mu := w.engine.lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	pending, err := w.pendingRepo.GetByID(userID, pendingID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, fmt.Errorf("pending approval %s not found", pendingID)
	}

	if pending.Closed() {
		if replayMatches(pending, decision, targetContactID) {
			return &DecisionOutcome{Status: pending.Status, ContactID: pending.DecidedContactID, Replayed: true}, nil
		}
		return nil, platform.ErrConflictingDecision
	}

	switch decision {
	case contactdomain.DecisionApproveNew:
		return w.approveNew(userID, pending)
	case contactdomain.DecisionApproveMerge:
		return w.approveMerge(userID, pending, targetContactID)
	case contactdomain.DecisionReject:
		return w.reject(userID, pending)
	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}
}

func (w *Workbench) approveNew(userID string, pending *contactdomain.PendingApproval) (*DecisionOutcome, error) {
	unified := &contactdomain.UnifiedContact{
		UserID:       userID,
		DisplayName:  pending.Name,
		PrimaryEmail: strings.ToLower(pending.Email),
	}
	if unified.DisplayName == "" {
		unified.DisplayName = pending.Handle
	}
	identity := &contactdomain.PlatformIdentity{
		Platform:          pending.Platform,
		PlatformContactID: pending.RemoteContactID,
		Handle:            pending.Handle,
		Email:             strings.ToLower(pending.Email),
		Phone:             pending.Phone,
	}
	if err := w.contactRepo.CreateWithIdentity(unified, identity); err != nil {
		return nil, err
	}

	closed, err := w.pendingRepo.Close(pending.ID, contactdomain.StatusApprovedNew, unified.ID)
	if err != nil {
		return nil, err
	}
	if !closed {
		// Lost a race with another decision on the same item.
		return nil, platform.ErrConflictingDecision
	}

	// Messages previously attached only by sender-address heuristic now get
	// the real contact id.
	var imported int64
	if pending.Email != "" {
		imported, err = w.messageRepo.AttachContactBySenderEmail(userID, pending.Email, unified.ID)
		if err != nil {
			log.Printf("[Workbench] Failed to re-attach messages for %s: %v", unified.ID, err)
		}
	}

	return &DecisionOutcome{Status: contactdomain.StatusApprovedNew, ContactID: unified.ID, MessagesImported: imported}, nil
}

func (w *Workbench) approveMerge(userID string, pending *contactdomain.PendingApproval, targetContactID string) (*DecisionOutcome, error) {
	if targetContactID == "" {
		targetContactID = pending.CandidateContactID
	}
	if targetContactID == "" {
		return nil, fmt.Errorf("approve_merge requires a target contact id")
	}

	target, err := w.contactRepo.GetByID(userID, targetContactID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("target contact %s not found", targetContactID)
	}

	identity := &contactdomain.PlatformIdentity{
		Platform:          pending.Platform,
		PlatformContactID: pending.RemoteContactID,
		Handle:            pending.Handle,
		Email:             strings.ToLower(pending.Email),
		Phone:             pending.Phone,
	}
	if err := w.contactRepo.AttachIdentity(userID, targetContactID, identity); err != nil {
		return nil, err
	}

	closed, err := w.pendingRepo.Close(pending.ID, contactdomain.StatusApprovedMerge, targetContactID)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, platform.ErrConflictingDecision
	}

	return &DecisionOutcome{Status: contactdomain.StatusApprovedMerge, ContactID: targetContactID}, nil
}

func (w *Workbench) reject(userID string, pending *contactdomain.PendingApproval) (*DecisionOutcome, error) {
	suppression := &contactdomain.SuppressedIdentity{
		UserID:          userID,
		Platform:        pending.Platform,
		RemoteContactID: pending.RemoteContactID,
		Email:           strings.ToLower(pending.Email),
		Reason:          "rejected pending approval",
	}
	if err := w.suppressionRepo.Create(suppression); err != nil {
		return nil, err
	}

	closed, err := w.pendingRepo.Close(pending.ID, contactdomain.StatusRejected, "")
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, platform.ErrConflictingDecision
	}

	return &DecisionOutcome{Status: contactdomain.StatusRejected}, nil
}

func replayMatches(pending *contactdomain.PendingApproval, decision, targetContactID string) bool {
	switch pending.Status {
	case contactdomain.StatusApprovedNew:
		return decision == contactdomain.DecisionApproveNew
	case contactdomain.StatusApprovedMerge:
		return decision == contactdomain.DecisionApproveMerge &&
			(targetContactID == "" || targetContactID == pending.DecidedContactID)
	case contactdomain.StatusRejected:
		return decision == contactdomain.DecisionReject
	}
	return false
}
