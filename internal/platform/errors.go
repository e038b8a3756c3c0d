package platform

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across the engine.
var (
	// ErrNotAuthenticated means the credential is missing or unusable and the
	// user has to reconnect the platform. Never retried automatically.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSyncInProgress is returned when a second sync is attempted while one
	// is already running for the same (user, platform).
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrConflictingDecision is returned when a closed pending approval is
	// re-decided with a different decision.
	ErrConflictingDecision = errors.New("conflicting decision for closed pending approval")

	// ErrIdentityTaken is returned when a platform identity is already attached
	// to a different unified contact.
	ErrIdentityTaken = errors.New("platform identity already attached to another contact")

	// ErrPlatformAlreadyLinked is returned when a contact already carries an
	// identity for the platform being attached. A contact holds at most one
	// identity per platform.
	ErrPlatformAlreadyLinked = errors.New("contact already has an identity for this platform")
)

// CredentialExpiredError indicates an expired token. The credential provider
// attempts one refresh; if that fails the error degrades to ErrNotAuthenticated.
type CredentialExpiredError struct {
	Platform string
}

func (e *CredentialExpiredError) Error() string {
	return fmt.Sprintf("%s credential expired", e.Platform)
}

// RateLimitedError carries the remote API's retry-after hint. The engine does
// not back off itself; the caller decides when to retry.
type RateLimitedError struct {
	Platform   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited, retry after %s", e.Platform, e.RetryAfter)
}

// TransientError wraps network/5xx failures that are safe to retry with the
// same cursor since nothing was advanced.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient fetch failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
