package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"turnstile-hq/turnstile/pkg/clock"
)

// RetentionConfig configures the Pruner.
type RetentionConfig struct {
	// MaxAge deletes records decided longer ago than this. 0 keeps records forever.
	MaxAge time.Duration

	// MaxRecords keeps at most this many records, deleting the oldest. 0 is unlimited.
	MaxRecords int64

	// Schedule is a standard five-field cron expression for the Scheduler.
	// Empty disables scheduled pruning.
	Schedule string
}

// Pruner enforces retention on a Storage.
type Pruner struct {
	storage Storage
	config  RetentionConfig
	clock   clock.Clock
	logger  *slog.Logger
}

// NewPruner creates a pruner for storage.
func NewPruner(storage Storage, config RetentionConfig) *Pruner {
	return &Pruner{
		storage: storage,
		config:  config,
		clock:   clock.System{},
		logger:  slog.Default().With("component", "audit.retention"),
	}
}

// WithClock replaces the clock used to compute the age cutoff.
func (p *Pruner) WithClock(c clock.Clock) *Pruner {
	p.clock = c
	return p
}

// Prune deletes records older than MaxAge, then the oldest records beyond
// MaxRecords. It returns the total deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.MaxAge > 0 {
		cutoff := p.clock.Now().Add(-p.config.MaxAge)
		deleted, err := p.storage.Delete(ctx, &Query{End: &cutoff})
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
		p.logger.Debug("pruned records by age", "deleted_count", deleted, "cutoff", cutoff)
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("audit pruning completed",
			"total_deleted", total,
			"max_age", p.config.MaxAge,
			"max_records", p.config.MaxRecords,
		)
	}

	return total, nil
}

func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}

	excess := count - p.config.MaxRecords
	if excess <= 0 {
		return 0, nil
	}

	oldest, err := p.storage.Query(ctx, &Query{Ascending: true, Limit: int(excess)})
	if err != nil {
		return 0, fmt.Errorf("failed to query records: %w", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	// Records sharing the cutoff timestamp are deleted together.
	cutoff := oldest[len(oldest)-1].DecidedAt
	return p.storage.Delete(ctx, &Query{End: &cutoff})
}

// Scheduler runs a Pruner on a cron schedule.
type Scheduler struct {
	pruner  *Pruner
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler for pruner.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		cron:   cron.New(),
		logger: slog.Default().With("component", "audit.scheduler"),
	}
}

// Start schedules pruning per the pruner's Schedule. An empty schedule is
// a no-op. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.pruner.config.Schedule
	if schedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", schedule,
		"max_age", s.pruner.config.MaxAge,
		"max_records", s.pruner.config.MaxRecords,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	deleted, err := s.pruner.Prune(ctx)
	if err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
		return
	}
	s.logger.Debug("scheduled pruning completed", "deleted_count", deleted)
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled prune, or nil if none is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
