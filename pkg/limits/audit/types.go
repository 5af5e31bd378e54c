package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

// Record is one admission decision.
type Record struct {
	// ID is a UUID assigned by the Recorder.
	ID string `json:"id"`

	// Identity is the caller identity the decision was made for.
	Identity string `json:"identity"`

	// Kind is the strategy of the identity's limiter.
	Kind ratelimit.Kind `json:"kind"`

	// Allowed is the decision.
	Allowed bool `json:"allowed"`

	// Used and Limit are the limiter's stats right after the decision.
	Used  int `json:"used"`
	Limit int `json:"limit"`

	// DecidedAt is the limiter clock reading the decision was made at.
	DecidedAt time.Time `json:"decided_at"`

	// RecordedAt is when the record was enqueued.
	RecordedAt time.Time `json:"recorded_at"`
}

// Query selects records. Zero fields match everything.
type Query struct {
	// Identity filters by exact identity.
	Identity string `json:"identity,omitempty"`

	// Kind filters by strategy.
	Kind ratelimit.Kind `json:"kind,omitempty"`

	// Allowed filters by outcome when non-nil.
	Allowed *bool `json:"allowed,omitempty"`

	// Start and End bound DecidedAt, both inclusive.
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`

	// Limit caps the number of records returned (0 = no cap).
	// Offset skips records. Both are ignored by Count and Delete.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Ascending orders by DecidedAt oldest first; the default is newest first.
	Ascending bool `json:"ascending,omitempty"`
}

// Matches reports whether r satisfies the filters of q.
func (q *Query) Matches(r *Record) bool {
	if q == nil {
		return true
	}
	if q.Identity != "" && r.Identity != q.Identity {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.Allowed != nil && r.Allowed != *q.Allowed {
		return false
	}
	if q.Start != nil && r.DecidedAt.Before(*q.Start) {
		return false
	}
	if q.End != nil && r.DecidedAt.After(*q.End) {
		return false
	}
	return true
}

// Validate checks the query's pagination and time range.
func (q *Query) Validate() error {
	if q.Limit < 0 {
		return &QueryError{Field: "limit", Reason: "must not be negative"}
	}
	if q.Offset < 0 {
		return &QueryError{Field: "offset", Reason: "must not be negative"}
	}
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return &QueryError{Field: "end", Reason: "must not be before start"}
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return &QueryError{Field: "kind", Reason: fmt.Sprintf("unknown strategy %q", q.Kind)}
	}
	return nil
}

// Storage persists audit records. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query returns the records matching q, ordered by DecidedAt.
	Query(ctx context.Context, q *Query) ([]*Record, error)

	// Count returns the number of records matching q's filters.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes the records matching q's filters and returns how many
	// were removed.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Close releases the backend's resources.
	Close() error
}

// ErrClosed is returned when storing into a closed backend or recorder.
var ErrClosed = errors.New("audit: closed")

var errNilRecord = errors.New("record cannot be nil")

// StorageError wraps a backend failure.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func newStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

// QueryError reports an invalid query field.
type QueryError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid audit query: %s %s", e.Field, e.Reason)
}
