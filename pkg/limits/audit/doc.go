// Package audit keeps a trail of admission decisions.
//
// The facade hands every decision to a Recorder, which filters it (denials
// only unless RecordAllowed is set), stamps it with a UUID and queues it for
// a background worker. Enqueueing never blocks the decision path: when the
// buffer is full the record is dropped and counted.
//
// Two Storage backends are provided:
//
//   - MemoryStorage: process-local, for tests and the simulate command
//   - SQLiteStorage: durable, using either the pure-Go modernc.org/sqlite
//     driver ("sqlite") or the cgo github.com/mattn/go-sqlite3 driver ("sqlite3")
//
// Pruner enforces age and count retention, and Scheduler runs it on a cron
// schedule:
//
//	pruner := audit.NewPruner(store, audit.RetentionConfig{
//	    MaxAge:   7 * 24 * time.Hour,
//	    Schedule: "0 3 * * *",
//	})
//	scheduler := audit.NewScheduler(pruner)
//	if err := scheduler.Start(ctx); err != nil {
//	    return err
//	}
//	defer scheduler.Stop()
package audit
