package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"turnstile-hq/turnstile/pkg/cli"
	"turnstile-hq/turnstile/pkg/limits"
	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

var benchmarkFlags struct {
	requests     int
	concurrency  int
	identities   int
	kind         string
	window       time.Duration
	maxRequests  int
	capacity     int
	leakRate     float64
	sampleEvery  int
	showProgress bool
}

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Measure in-process decision throughput",
	Long: `Drive a limiter with concurrent callers and report throughput, outcome
counts, and decision latency percentiles.

Every identity uses the strategy given by --kind. Callers spread requests
across identities round-robin, so contention grows as --identities shrinks.

Examples:
  # One million decisions over 8 callers and 100 identities
  turnstile benchmark --requests 1000000 --concurrency 8 --identities 100

  # Worst-case contention on a single leaky bucket
  turnstile benchmark --identities 1 --kind leaky_bucket --capacity 1000 --leak-rate 500`,
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	benchmarkCmd.Flags().IntVar(&benchmarkFlags.requests, "requests", 100000, "total decisions")
	benchmarkCmd.Flags().IntVar(&benchmarkFlags.concurrency, "concurrency", 4, "concurrent callers")
	benchmarkCmd.Flags().IntVar(&benchmarkFlags.identities, "identities", 100, "registered identities")
	benchmarkCmd.Flags().StringVar(&benchmarkFlags.kind, "kind", string(ratelimit.KindSlidingWindowLog), "strategy: fixed_window, leaky_bucket, sliding_window_log")
	benchmarkCmd.Flags().DurationVar(&benchmarkFlags.window, "window", time.Second, "window for window strategies")
	benchmarkCmd.Flags().IntVar(&benchmarkFlags.maxRequests, "max-requests", 100, "requests per window")
	benchmarkCmd.Flags().IntVar(&benchmarkFlags.capacity, "capacity", 100, "leaky bucket capacity")
	benchmarkCmd.Flags().Float64Var(&benchmarkFlags.leakRate, "leak-rate", 100, "leaky bucket drain per second")
	benchmarkCmd.Flags().IntVar(&benchmarkFlags.sampleEvery, "sample-every", 16, "time one decision in N")
	benchmarkCmd.Flags().BoolVar(&benchmarkFlags.showProgress, "progress", true, "show progress on stderr")
}

type benchmarkOptions struct {
	Requests    int
	Concurrency int
	Identities  int
	Config      ratelimit.Config
	SampleEvery int
	Progress    cli.ProgressReporter
}

type benchmarkResults struct {
	totalRequests int
	allowed       int64
	denied        int64
	errors        int64
	duration      time.Duration
	latencies     []time.Duration
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg := ratelimit.Config{
		Kind:        ratelimit.Kind(benchmarkFlags.kind),
		Window:      benchmarkFlags.window,
		MaxRequests: benchmarkFlags.maxRequests,
		Capacity:    benchmarkFlags.capacity,
		LeakRate:    benchmarkFlags.leakRate,
	}
	if err := cfg.Validate(); err != nil {
		return cli.NewConfigError("kind", err.Error())
	}
	if benchmarkFlags.requests <= 0 || benchmarkFlags.concurrency <= 0 || benchmarkFlags.identities <= 0 {
		return cli.NewConfigError("benchmark", "requests, concurrency, and identities must be positive")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Turnstile Benchmark")
	fmt.Fprintln(out, "===================")
	fmt.Fprintf(out, "Strategy:    %s (limit %d)\n", cfg.Kind, cfg.Limit())
	fmt.Fprintf(out, "Requests:    %d\n", benchmarkFlags.requests)
	fmt.Fprintf(out, "Concurrency: %d\n", benchmarkFlags.concurrency)
	fmt.Fprintf(out, "Identities:  %d\n", benchmarkFlags.identities)
	fmt.Fprintln(out)

	opts := benchmarkOptions{
		Requests:    benchmarkFlags.requests,
		Concurrency: benchmarkFlags.concurrency,
		Identities:  benchmarkFlags.identities,
		Config:      cfg,
		SampleEvery: benchmarkFlags.sampleEvery,
	}
	if benchmarkFlags.showProgress {
		opts.Progress = cli.NewProgressReporter(os.Stderr)
	}

	results, err := runLoadTest(cmd.Context(), opts)
	if err != nil {
		return cli.NewCommandError("benchmark", err)
	}

	displayResults(out, results)
	return nil
}

// runLoadTest registers opts.Identities identities and issues
// opts.Requests decisions from opts.Concurrency goroutines.
func runLoadTest(ctx context.Context, opts benchmarkOptions) (*benchmarkResults, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.SampleEvery <= 0 {
		opts.SampleEvery = 1
	}

	rl := limits.New[string](limits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ids := make([]string, opts.Identities)
	for i := range ids {
		ids[i] = "bench-" + strconv.Itoa(i)
		if err := rl.AddIdentity(ids[i], opts.Config); err != nil {
			return nil, err
		}
	}

	results := &benchmarkResults{
		totalRequests: opts.Requests,
		latencies:     make([]time.Duration, 0, opts.Requests/opts.SampleEvery+opts.Concurrency),
	}

	var (
		next      atomic.Int64
		completed atomic.Int64
		mu        sync.Mutex
		wg        sync.WaitGroup
	)

	if opts.Progress != nil {
		opts.Progress.Start(int64(opts.Requests))
	}
	progressEvery := int64(max(opts.Requests/100, 1))

	start := time.Now()
	for range opts.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local []time.Duration
			var allowed, denied, failed int64

			for {
				n := next.Add(1) - 1
				if n >= int64(opts.Requests) || ctx.Err() != nil {
					break
				}

				id := ids[n%int64(len(ids))]
				sample := n%int64(opts.SampleEvery) == 0

				var t0 time.Time
				if sample {
					t0 = time.Now()
				}
				ok, err := rl.Allow(ctx, id)
				if sample {
					local = append(local, time.Since(t0))
				}

				switch {
				case err != nil:
					failed++
				case ok:
					allowed++
				default:
					denied++
				}

				if done := completed.Add(1); opts.Progress != nil && done%progressEvery == 0 {
					opts.Progress.Update(done)
				}
			}

			mu.Lock()
			results.latencies = append(results.latencies, local...)
			results.allowed += allowed
			results.denied += denied
			results.errors += failed
			mu.Unlock()
		}()
	}
	wg.Wait()
	results.duration = time.Since(start)

	if opts.Progress != nil {
		opts.Progress.Finish()
	}

	return results, ctx.Err()
}

func displayResults(w io.Writer, results *benchmarkResults) {
	done := results.allowed + results.denied + results.errors

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Results:")
	fmt.Fprintln(w, "--------")
	fmt.Fprintf(w, "Decisions:   %d total, %d allowed, %d denied, %d errors\n",
		done, results.allowed, results.denied, results.errors)
	fmt.Fprintf(w, "Duration:    %.3fs\n", results.duration.Seconds())

	if done > 0 && results.duration > 0 {
		fmt.Fprintf(w, "Throughput:  %.0f decisions/s\n", float64(done)/results.duration.Seconds())
	}

	if len(results.latencies) > 0 {
		minLat, mean, median, p95, p99, maxLat := calculatePercentiles(results.latencies)

		fmt.Fprintln(w)
		fmt.Fprintf(w, "Latency (%d samples):\n", len(results.latencies))
		fmt.Fprintf(w, "  Min:     %s\n", minLat)
		fmt.Fprintf(w, "  Mean:    %s\n", mean)
		fmt.Fprintf(w, "  Median:  %s\n", median)
		fmt.Fprintf(w, "  p95:     %s\n", p95)
		fmt.Fprintf(w, "  p99:     %s\n", p99)
		fmt.Fprintf(w, "  Max:     %s\n", maxLat)
	}
}

func calculatePercentiles(latencies []time.Duration) (minLat, mean, median, p95, p99, maxLat time.Duration) {
	if len(latencies) == 0 {
		return
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	minLat = sorted[0]
	maxLat = sorted[len(sorted)-1]

	var sum time.Duration
	for _, lat := range sorted {
		sum += lat
	}
	mean = sum / time.Duration(len(sorted))

	median = sorted[len(sorted)/2]
	p95 = sorted[int(float64(len(sorted)-1)*0.95)]
	p99 = sorted[int(float64(len(sorted)-1)*0.99)]

	return
}
