// Turnstile is an in-process admission-control service: it decides, per
// caller identity, whether a request is admitted under a fixed window,
// leaky bucket, or sliding window log limit.
//
// Usage:
//
//	# Start with the default configuration file (config.yaml)
//	turnstile run
//
//	# Start with a custom configuration file
//	turnstile run --config /etc/turnstile/config.yaml
//
//	# Check a configuration file
//	turnstile validate --config config.yaml
//
//	# Replay a decision trace deterministically
//	turnstile simulate --trace trace.yaml
//
//	# Inspect the decision audit trail
//	turnstile audit query --identity api-key-123 --denied
//
//	# Measure decision throughput
//	turnstile benchmark --requests 1000000 --concurrency 8
package main

import "os"

func main() {
	os.Exit(Execute())
}
