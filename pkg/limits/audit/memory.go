package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage keeps records in process memory. Everything is lost when
// the process exits.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*Record
	closed  bool
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store appends a copy of record.
func (m *MemoryStorage) Store(ctx context.Context, record *Record) error {
	if record == nil {
		return newStorageError("memory", "store", errNilRecord)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return newStorageError("memory", "store", ErrClosed)
	}

	r := *record
	m.records = append(m.records, &r)
	return nil
}

// Query returns copies of the matching records.
func (m *MemoryStorage) Query(ctx context.Context, q *Query) ([]*Record, error) {
	if q == nil {
		q = &Query{}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := make([]*Record, 0)
	for _, r := range m.records {
		if q.Matches(r) {
			c := *r
			matched = append(matched, &c)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if q.Ascending {
			return matched[i].DecidedAt.Before(matched[j].DecidedAt)
		}
		return matched[i].DecidedAt.After(matched[j].DecidedAt)
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []*Record{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Count returns the number of matching records.
func (m *MemoryStorage) Count(ctx context.Context, q *Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, r := range m.records {
		if q.Matches(r) {
			n++
		}
	}
	return n, nil
}

// Delete removes the matching records.
func (m *MemoryStorage) Delete(ctx context.Context, q *Query) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if q.Matches(r) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	clear(m.records[len(kept):])
	m.records = kept
	return deleted, nil
}

// Close marks the backend closed; further Store calls fail.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
