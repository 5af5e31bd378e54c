package config

import (
	"fmt"
	"os"
	"path/filepath"

	"turnstile-hq/turnstile/pkg/limits/audit"
)

// RecorderConfig converts the audit section into recorder settings.
func (c AuditConfig) RecorderConfig() audit.RecorderConfig {
	return audit.RecorderConfig{
		Buffer:        c.Buffer,
		WriteTimeout:  c.WriteTimeout,
		RecordAllowed: c.RecordAllowed,
	}
}

// RetentionConfig converts the audit section into pruner settings.
func (c AuditConfig) RetentionConfig() audit.RetentionConfig {
	return audit.RetentionConfig{
		MaxAge:     c.Retention.MaxAge,
		MaxRecords: c.Retention.MaxRecords,
		Schedule:   c.Retention.Schedule,
	}
}

// SQLiteConfig converts the audit section into SQLite storage settings.
func (c AuditConfig) SQLiteConfig() audit.SQLiteConfig {
	return audit.SQLiteConfig{
		Path:        c.SQLite.Path,
		Driver:      c.SQLite.Driver,
		WALMode:     !c.SQLite.DisableWAL,
		BusyTimeout: c.SQLite.BusyTimeout,
	}
}

// OpenStorage opens the configured audit backend. For SQLite the parent
// directory of the database file is created if missing.
func (c AuditConfig) OpenStorage() (audit.Storage, error) {
	switch c.Backend {
	case "memory":
		return audit.NewMemoryStorage(), nil
	case "sqlite":
		if dir := filepath.Dir(c.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create audit directory %q: %w", dir, err)
			}
		}
		return audit.NewSQLiteStorage(c.SQLiteConfig())
	default:
		return nil, fmt.Errorf("unknown audit backend %q", c.Backend)
	}
}
