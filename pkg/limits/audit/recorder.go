package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"turnstile-hq/turnstile/pkg/clock"
)

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Buffer is the size of the async write channel.
	// Default: 1000
	Buffer int

	// WriteTimeout bounds each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// RecordAllowed records admitted requests as well as denials.
	RecordAllowed bool
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Buffer:       1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes decisions to a Storage from a background worker.
type Recorder struct {
	storage Storage
	config  RecorderConfig
	clock   clock.Clock
	logger  *slog.Logger

	records chan *Record
	done    chan struct{}
	wg      sync.WaitGroup

	// mu orders sends on records before close(done), so the worker's final
	// drain sees every accepted record.
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	dropped   atomic.Uint64
	written   atomic.Uint64
	failed    atomic.Uint64
}

// NewRecorder starts a recorder writing to storage.
func NewRecorder(storage Storage, config RecorderConfig) *Recorder {
	if config.Buffer <= 0 {
		config.Buffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		storage: storage,
		config:  config,
		clock:   clock.System{},
		logger:  slog.Default().With("component", "audit.recorder"),
		records: make(chan *Record, config.Buffer),
		done:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"buffer", config.Buffer,
		"write_timeout", config.WriteTimeout,
		"record_allowed", config.RecordAllowed,
	)

	return r
}

// Record enqueues a decision. It never blocks: a full buffer or a closed
// recorder drops the record and counts it.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if rec.Allowed && !r.config.RecordAllowed {
		return
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = r.clock.Now()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return
	}

	select {
	case r.records <- &rec:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit buffer full, dropping record",
			"identity", rec.Identity,
			"buffer", r.config.Buffer,
		)
	}
}

// Dropped returns the number of records dropped so far.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Written returns the number of records stored so far.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

// Failed returns the number of records whose write failed.
func (r *Recorder) Failed() uint64 {
	return r.failed.Load()
}

// Close drains the buffer, waits for pending writes and stops the worker.
// The storage is left open.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.logger.Info("shutting down audit recorder")
		r.mu.Lock()
		r.closed = true
		close(r.done)
		r.mu.Unlock()
		r.wg.Wait()
		r.logger.Info("audit recorder shut down complete",
			"written", r.written.Load(),
			"dropped", r.dropped.Load(),
		)
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.records:
			r.write(rec)

		case <-r.done:
			for {
				select {
				case rec := <-r.records:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, rec); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to store audit record",
			"record_id", rec.ID,
			"identity", rec.Identity,
			"error", err,
		)
		return
	}

	r.written.Add(1)
}
