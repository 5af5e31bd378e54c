// Package logging builds the service's structured logger on log/slog.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	ctx = logging.WithIdentity(ctx, "api-key-123")
//	logging.FromContext(ctx, logger).Info("request denied")
//
// FromContext attaches the identity, request ID, and the active span's
// trace_id and span_id.
//
// # Identity Masking
//
// With MaskIdentities set, every attribute named "identity" is shortened
// to its first four characters: "api-key-123" is logged as "api-***".
package logging
