package limits

import (
	"turnstile-hq/turnstile/pkg/limits/ratelimit"
	"turnstile-hq/turnstile/pkg/limits/registry"
)

// Errors returned by RateLimiter. Use errors.Is to test for them; the
// concrete error is usually an *IdentityError carrying the operation and
// identity.
var (
	// ErrNotFound is returned for an identity that is not registered.
	ErrNotFound = registry.ErrNotFound

	// ErrAlreadyExists is returned when adding an identity twice.
	ErrAlreadyExists = registry.ErrAlreadyExists

	// ErrInvalidConfig is returned when a limiter configuration has a
	// missing or non-positive parameter.
	ErrInvalidConfig = ratelimit.ErrInvalidConfig
)

// IdentityError records the operation and identity behind an error.
type IdentityError = registry.IdentityError

// Config is a per-identity limiter configuration.
type Config = ratelimit.Config

// Stats is a point-in-time view of an identity's limiter.
type Stats = ratelimit.Stats

// Decision results used in metrics and logs.
const (
	resultAllowed = "allowed"
	resultDenied  = "denied"
	resultError   = "error"
)

// ReconcileResult reports what Reconcile did.
type ReconcileResult[K comparable] struct {
	// Added are identities that were registered.
	Added []K

	// Removed are identities that were unregistered.
	Removed []K

	// Changed are identities whose desired configuration differs from the
	// live one. They keep their live limiter; remove and re-add them to
	// apply new limits.
	Changed []K

	// Unchanged are identities whose configuration already matched.
	Unchanged []K

	// Errors holds one error per identity that could not be added.
	Errors []error
}

// Empty reports whether Reconcile made no change.
func (r ReconcileResult[K]) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}
