package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"

	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

// SQLite driver names.
const (
	// DriverModernc is the pure-Go driver from modernc.org/sqlite.
	DriverModernc = "sqlite"

	// DriverMattn is the cgo driver from github.com/mattn/go-sqlite3.
	DriverMattn = "sqlite3"
)

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path. ":memory:" keeps the database in memory.
	Path string

	// Driver selects the database/sql driver: DriverModernc (default) or DriverMattn.
	Driver string

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long a writer waits for the database lock.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:        "data/audit.db",
		Driver:      DriverModernc,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStorage implements Storage on SQLite.
//
// Timestamps are stored as Unix nanoseconds so that both drivers read back
// exactly what was written.
type SQLiteStorage struct {
	db        *sql.DB
	config    SQLiteConfig
	insert    *sql.Stmt
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewSQLiteStorage opens (creating if needed) the database at cfg.Path.
func NewSQLiteStorage(cfg SQLiteConfig) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		return nil, newStorageError("sqlite", "open", fmt.Errorf("path cannot be empty"))
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverMattn {
		return nil, newStorageError("sqlite", "open", fmt.Errorf("unknown driver %q", cfg.Driver))
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, newStorageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer; one long-lived connection also
	// keeps the PRAGMAs and any :memory: database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{
		db:     db,
		config: cfg,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit storage initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return newStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return newStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(schema); err != nil {
		return newStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(insertSchemaVersion, schemaVersion); err != nil {
		return newStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return newStorageError("sqlite", "get_schema_version", err)
	}
	if version != schemaVersion {
		return newStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", schemaVersion, version))
	}

	stmt, err := s.db.Prepare(`
		INSERT INTO decisions (id, identity, kind, allowed, used, lim, decided_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return newStorageError("sqlite", "prepare", err)
	}
	s.insert = stmt

	return nil
}

// Store inserts record.
func (s *SQLiteStorage) Store(ctx context.Context, record *Record) error {
	if record == nil {
		return newStorageError("sqlite", "store", errNilRecord)
	}

	_, err := s.insert.ExecContext(ctx,
		record.ID,
		record.Identity,
		string(record.Kind),
		boolToInt(record.Allowed),
		record.Used,
		record.Limit,
		record.DecidedAt.UnixNano(),
		record.RecordedAt.UnixNano(),
	)
	if err != nil {
		return newStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns the matching records.
func (s *SQLiteStorage) Query(ctx context.Context, q *Query) ([]*Record, error) {
	if q == nil {
		q = &Query{}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := buildWhereClause(q)

	var b strings.Builder
	b.WriteString("SELECT id, identity, kind, allowed, used, lim, decided_at, recorded_at FROM decisions")
	b.WriteString(where)
	if q.Ascending {
		b.WriteString(" ORDER BY decided_at ASC, rowid ASC")
	} else {
		b.WriteString(" ORDER BY decided_at DESC, rowid DESC")
	}
	switch {
	case q.Limit > 0:
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	case q.Offset > 0:
		// OFFSET requires a LIMIT clause.
		b.WriteString(" LIMIT -1")
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, newStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		var (
			r                     Record
			kind                  string
			allowed               int
			decidedAt, recordedAt int64
		)
		if err := rows.Scan(&r.ID, &r.Identity, &kind, &allowed, &r.Used, &r.Limit, &decidedAt, &recordedAt); err != nil {
			return nil, newStorageError("sqlite", "scan", err)
		}
		r.Kind = ratelimit.Kind(kind)
		r.Allowed = allowed != 0
		r.DecidedAt = time.Unix(0, decidedAt).UTC()
		r.RecordedAt = time.Unix(0, recordedAt).UTC()
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, q *Query) (int64, error) {
	where, args := buildWhereClause(q)

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions"+where, args...).Scan(&n); err != nil {
		return 0, newStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Delete removes the matching records.
func (s *SQLiteStorage) Delete(ctx context.Context, q *Query) (int64, error) {
	where, args := buildWhereClause(q)

	res, err := s.db.ExecContext(ctx, "DELETE FROM decisions"+where, args...)
	if err != nil {
		return 0, newStorageError("sqlite", "delete", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, newStorageError("sqlite", "delete", err)
	}

	s.logger.Debug("deleted audit records", "count", n)
	return n, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.insert != nil {
			s.insert.Close()
		}
		err = s.db.Close()
	})
	return err
}

func buildWhereClause(q *Query) (string, []any) {
	if q == nil {
		return "", nil
	}

	var (
		conds []string
		args  []any
	)
	if q.Identity != "" {
		conds = append(conds, "identity = ?")
		args = append(args, q.Identity)
	}
	if q.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if q.Allowed != nil {
		conds = append(conds, "allowed = ?")
		args = append(args, boolToInt(*q.Allowed))
	}
	if q.Start != nil {
		conds = append(conds, "decided_at >= ?")
		args = append(args, q.Start.UnixNano())
	}
	if q.End != nil {
		conds = append(conds, "decided_at <= ?")
		args = append(args, q.End.UnixNano())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
