// Package config provides configuration management for Turnstile.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides, and watching the file for
// changes so the identity set can be reconciled at runtime.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("turnstile.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("turnstile.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TURNSTILE_SECTION_FIELD.
// For example:
//
//   - TURNSTILE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - TURNSTILE_AUDIT_SQLITE_PATH overrides audit.sqlite.path
//   - TURNSTILE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Identities cannot be overridden from the environment.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// An identity without a kind is a sliding window log; a sliding window log
// without window or max_requests gets 100 requests per minute.
//
// # Validation
//
// Validation errors include field paths:
//
//	configuration validation failed with 2 errors:
//	  - limits.identities.api-key-123.leak_rate: must be a positive finite number, got 0
//	  - audit.retention.schedule: invalid cron expression "daily": ...
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:9090"
//
//	limits:
//	  watch: true
//	  identities:
//	    api-key-123:
//	      kind: leaky_bucket
//	      capacity: 10
//	      leak_rate: 2
//	    partner-a:
//	      kind: fixed_window
//	      window: 1m
//	      max_requests: 600
//	    batch-user: {}
//
//	audit:
//	  enabled: true
//	  backend: sqlite
//	  sqlite:
//	    path: data/audit.db
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//
// # Hot Reload
//
// Watcher watches the configuration file's directory and calls back after
// a burst of changes settles. The caller reloads and reconciles:
//
//	w, _ := config.NewWatcher(path, cfg.Limits.WatchDebounce, logger)
//	go w.Watch(ctx, func() error {
//	    next, err := config.Reload()
//	    if err != nil {
//	        return err
//	    }
//	    rl.Reconcile(next.Limits.Identities)
//	    return nil
//	})
package config
