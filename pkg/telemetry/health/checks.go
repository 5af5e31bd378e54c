package health

import (
	"context"
	"fmt"

	"turnstile-hq/turnstile/pkg/limits/audit"
)

// StorageCheck verifies that the audit store answers a count query.
func StorageCheck(s audit.Storage) CheckFunc {
	return func(ctx context.Context) error {
		if _, err := s.Count(ctx, &audit.Query{}); err != nil {
			return fmt.Errorf("audit storage: %w", err)
		}
		return nil
	}
}

// FailureCounter is implemented by *audit.Recorder.
type FailureCounter interface {
	Failed() uint64
}

// RecorderCheck fails once the recorder has failed more than threshold
// writes in total.
func RecorderCheck(fc FailureCounter, threshold uint64) CheckFunc {
	return func(context.Context) error {
		if n := fc.Failed(); n > threshold {
			return fmt.Errorf("audit recorder: %d failed writes", n)
		}
		return nil
	}
}
