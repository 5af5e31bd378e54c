package audit

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func rec(id, identity string, allowed bool, offset time.Duration) *Record {
	return &Record{
		ID:         id,
		Identity:   identity,
		Kind:       ratelimit.KindFixedWindow,
		Allowed:    allowed,
		Used:       1,
		Limit:      5,
		DecidedAt:  base.Add(offset),
		RecordedAt: base.Add(offset),
	}
}

// backends returns every Storage implementation, so each behavioral test
// runs against all of them.
func backends(t *testing.T) map[string]Storage {
	t.Helper()

	out := map[string]Storage{
		"memory": NewMemoryStorage(),
	}

	for _, driver := range []string{DriverModernc, DriverMattn} {
		s, err := NewSQLiteStorage(SQLiteConfig{
			Path:    filepath.Join(t.TempDir(), "audit-"+driver+".db"),
			Driver:  driver,
			WALMode: true,
		})
		if err != nil {
			if driver == DriverMattn && strings.Contains(err.Error(), "cgo") {
				t.Logf("skipping %s backend: %v", driver, err)
				continue
			}
			t.Fatalf("NewSQLiteStorage(%s) failed: %v", driver, err)
		}
		out["sqlite/"+driver] = s
	}

	t.Cleanup(func() {
		for _, s := range out {
			s.Close()
		}
	})
	return out
}

func seed(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()
	records := []*Record{
		rec("1", "alice", true, 0),
		rec("2", "alice", false, time.Second),
		rec("3", "bob", false, 2*time.Second),
		rec("4", "alice", false, 3*time.Second),
		rec("5", "bob", true, 4*time.Second),
	}
	for _, r := range records {
		require.NoError(t, s.Store(ctx, r))
	}
}

func ids(records []*Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestStorage_Query(t *testing.T) {
	denied := false
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name  string
		query *Query
		want  []string
	}{
		{"all newest first", &Query{}, []string{"5", "4", "3", "2", "1"}},
		{"all oldest first", &Query{Ascending: true}, []string{"1", "2", "3", "4", "5"}},
		{"by identity", &Query{Identity: "alice"}, []string{"4", "2", "1"}},
		{"denied only", &Query{Allowed: &denied}, []string{"4", "3", "2"}},
		{"time range inclusive", &Query{Start: &start, End: &end, Ascending: true}, []string{"2", "3", "4"}},
		{"limit", &Query{Limit: 2}, []string{"5", "4"}},
		{"offset", &Query{Offset: 3}, []string{"2", "1"}},
		{"limit and offset", &Query{Limit: 1, Offset: 1, Ascending: true}, []string{"2"}},
		{"offset past end", &Query{Offset: 10}, []string{}},
		{"no match", &Query{Identity: "carol"}, []string{}},
	}

	for name, s := range backends(t) {
		seed(t, s)
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				got, err := s.Query(context.Background(), tt.query)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(got))
			})
		}
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			in := &Record{
				ID:         "round-trip",
				Identity:   "user:42",
				Kind:       ratelimit.KindLeakyBucket,
				Allowed:    false,
				Used:       5,
				Limit:      5,
				DecidedAt:  base.Add(1234567 * time.Nanosecond),
				RecordedAt: base.Add(time.Minute),
			}
			require.NoError(t, s.Store(context.Background(), in))

			out, err := s.Query(context.Background(), &Query{Identity: "user:42"})
			require.NoError(t, err)
			require.Len(t, out, 1)

			assert.Equal(t, in.ID, out[0].ID)
			assert.Equal(t, in.Kind, out[0].Kind)
			assert.Equal(t, in.Allowed, out[0].Allowed)
			assert.Equal(t, in.Used, out[0].Used)
			assert.True(t, in.DecidedAt.Equal(out[0].DecidedAt), "DecidedAt %v != %v", in.DecidedAt, out[0].DecidedAt)
			assert.True(t, in.RecordedAt.Equal(out[0].RecordedAt))
		})
	}
}

func TestStorage_CountAndDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s)

			n, err := s.Count(ctx, &Query{})
			require.NoError(t, err)
			assert.Equal(t, int64(5), n)

			n, err = s.Count(ctx, &Query{Identity: "bob"})
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			cutoff := base.Add(time.Second)
			deleted, err := s.Delete(ctx, &Query{End: &cutoff})
			require.NoError(t, err)
			assert.Equal(t, int64(2), deleted)

			remaining, err := s.Query(ctx, &Query{Ascending: true})
			require.NoError(t, err)
			assert.Equal(t, []string{"3", "4", "5"}, ids(remaining))
		})
	}
}

func TestStorage_InvalidQuery(t *testing.T) {
	later := base.Add(time.Hour)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Query(context.Background(), &Query{Limit: -1})
			var qErr *QueryError
			require.True(t, errors.As(err, &qErr))
			assert.Equal(t, "limit", qErr.Field)

			_, err = s.Query(context.Background(), &Query{Start: &later, End: &base})
			require.True(t, errors.As(err, &qErr))
			assert.Equal(t, "end", qErr.Field)
		})
	}
}

func TestStorage_NilRecord(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Store(context.Background(), nil)
			var sErr *StorageError
			require.True(t, errors.As(err, &sErr))
			assert.Equal(t, "store", sErr.Operation)
		})
	}
}

func TestMemoryStorage_StoreAfterClose(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.Close())

	err := s.Store(context.Background(), rec("1", "alice", false, 0))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewSQLiteStorage_Errors(t *testing.T) {
	_, err := NewSQLiteStorage(SQLiteConfig{})
	assert.Error(t, err, "empty path")

	_, err = NewSQLiteStorage(SQLiteConfig{Path: ":memory:", Driver: "postgres"})
	assert.ErrorContains(t, err, "unknown driver")
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	s, err := NewSQLiteStorage(SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Store(context.Background(), rec("1", "alice", false, 0)))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(context.Background(), &Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
