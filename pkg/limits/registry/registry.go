// Package registry maps identities to their limiters.
//
// The identity map is guarded by a read-write mutex and every entry by its
// own mutex. Lookups take the map read lock only long enough to find the
// entry; the decision itself runs under the entry lock. Calls for different
// identities never wait on each other, and calls for the same identity are
// applied one at a time.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

var (
	// ErrNotFound is returned when an identity is not registered.
	ErrNotFound = errors.New("identity not found")

	// ErrAlreadyExists is returned when registering an identity twice.
	ErrAlreadyExists = errors.New("identity already exists")
)

// IdentityError records the operation and identity behind a registry error.
type IdentityError struct {
	// Op is the failed operation (add, remove, allow, stats, config).
	Op string

	// Identity is the identity the operation was called with.
	Identity any

	// Err is the underlying error, usually ErrNotFound, ErrAlreadyExists or
	// a *ratelimit.ConfigError.
	Err error
}

// Error implements the error interface.
func (e *IdentityError) Error() string {
	return fmt.Sprintf("%s %v: %v", e.Op, e.Identity, e.Err)
}

// Unwrap returns the underlying error.
func (e *IdentityError) Unwrap() error {
	return e.Err
}

// entry is one identity's limiter. dead is set under mu when the entry is
// removed, so a caller that looked the entry up before removal does not
// decide against orphaned state.
type entry struct {
	mu      sync.Mutex
	limiter ratelimit.Limiter
	config  ratelimit.Config
	dead    bool
}

// Registry owns one limiter per identity.
type Registry[K comparable] struct {
	mu      sync.RWMutex
	entries map[K]*entry
}

// New creates an empty registry.
func New[K comparable]() *Registry[K] {
	return &Registry[K]{
		entries: make(map[K]*entry),
	}
}

// Add registers id with a fresh limiter built from cfg. The limiter's
// bookkeeping starts at now.
func (r *Registry[K]) Add(id K, cfg ratelimit.Config, now time.Time) error {
	limiter, err := ratelimit.New(cfg, now)
	if err != nil {
		return &IdentityError{Op: "add", Identity: id, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return &IdentityError{Op: "add", Identity: id, Err: ErrAlreadyExists}
	}

	r.entries[id] = &entry{limiter: limiter, config: cfg}
	return nil
}

// Remove unregisters id and discards its state.
func (r *Registry[K]) Remove(id K) error {
	r.mu.Lock()
	e, exists := r.entries[id]
	if !exists {
		r.mu.Unlock()
		return &IdentityError{Op: "remove", Identity: id, Err: ErrNotFound}
	}
	delete(r.entries, id)
	r.mu.Unlock()

	e.mu.Lock()
	e.dead = true
	e.mu.Unlock()
	return nil
}

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed reports whether the request was admitted.
	Allowed bool

	// At is the time the limiter evaluated the request at.
	At time.Time

	// Stats is the limiter's state right after the decision.
	Stats ratelimit.Stats
}

// Allow decides a request for id arriving at now.
func (r *Registry[K]) Allow(id K, now time.Time) (bool, error) {
	d, err := r.Decide(id, func() time.Time { return now })
	return d.Allowed, err
}

// Decide decides a request for id, reading the time from now while the
// identity's lock is held so the timestamps one limiter sees stay
// non-decreasing under concurrent callers. The stats are taken under the
// same lock as the decision.
func (r *Registry[K]) Decide(id K, now func() time.Time) (Decision, error) {
	e, err := r.lookup("allow", id)
	if err != nil {
		return Decision{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dead {
		return Decision{}, &IdentityError{Op: "allow", Identity: id, Err: ErrNotFound}
	}

	at := now()
	allowed := e.limiter.Allow(at)
	return Decision{Allowed: allowed, At: at, Stats: e.limiter.Stats()}, nil
}

// Stats returns a snapshot of id's limiter.
func (r *Registry[K]) Stats(id K) (ratelimit.Stats, error) {
	e, err := r.lookup("stats", id)
	if err != nil {
		return ratelimit.Stats{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dead {
		return ratelimit.Stats{}, &IdentityError{Op: "stats", Identity: id, Err: ErrNotFound}
	}
	return e.limiter.Stats(), nil
}

// Config returns the configuration id was registered with.
func (r *Registry[K]) Config(id K) (ratelimit.Config, error) {
	e, err := r.lookup("config", id)
	if err != nil {
		return ratelimit.Config{}, err
	}
	// config is immutable after Add.
	return e.config, nil
}

// Len returns the number of registered identities.
func (r *Registry[K]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Keys returns the registered identities in no particular order.
func (r *Registry[K]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]K, 0, len(r.entries))
	for id := range r.entries {
		keys = append(keys, id)
	}
	return keys
}

// Range calls fn with every identity and its configuration until fn returns
// false. It iterates over a snapshot, so fn may call back into the registry.
func (r *Registry[K]) Range(fn func(id K, cfg ratelimit.Config) bool) {
	type item struct {
		id  K
		cfg ratelimit.Config
	}

	r.mu.RLock()
	items := make([]item, 0, len(r.entries))
	for id, e := range r.entries {
		items = append(items, item{id: id, cfg: e.config})
	}
	r.mu.RUnlock()

	for _, it := range items {
		if !fn(it.id, it.cfg) {
			return
		}
	}
}

// CountByKind returns the number of registered identities per strategy.
func (r *Registry[K]) CountByKind() map[ratelimit.Kind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[ratelimit.Kind]int, len(ratelimit.Kinds))
	for _, e := range r.entries {
		counts[e.config.Kind]++
	}
	return counts
}

func (r *Registry[K]) lookup(op string, id K) (*entry, error) {
	r.mu.RLock()
	e, exists := r.entries[id]
	r.mu.RUnlock()

	if !exists {
		return nil, &IdentityError{Op: op, Identity: id, Err: ErrNotFound}
	}
	return e, nil
}
