package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"turnstile-hq/turnstile/pkg/cli"
	"turnstile-hq/turnstile/pkg/clock"
	"turnstile-hq/turnstile/pkg/config"
	"turnstile-hq/turnstile/pkg/limits"
	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

var simulateFlags struct {
	trace    string
	output   string
	progress bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a request trace through the limiters",
	Long: `Replay a trace of (identity, time) events through a manual clock and print
every decision. The same trace always produces the same decisions.

Trace format (YAML):

  identities:            # optional; defaults to limits.identities of --config
    alice:
      kind: fixed_window
      window: 60s
      max_requests: 3
  events:                # t is seconds since the start, non-decreasing
    - {identity: alice, t: 0}
    - {identity: alice, t: 10}

Examples:
  # Replay against the identities in the trace
  turnstile simulate --trace trace.yaml

  # Replay against the configured identities, CSV output
  turnstile simulate --trace events.yaml --config config.yaml --output csv`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simulateFlags.trace, "trace", "t", "", "trace file (required)")
	simulateCmd.Flags().StringVarP(&simulateFlags.output, "output", "o", "text", "output format: text, json, csv")
	simulateCmd.Flags().BoolVar(&simulateFlags.progress, "progress", false, "show progress on stderr")
	_ = simulateCmd.MarkFlagRequired("trace")
}

// traceFile is the simulate input.
type traceFile struct {
	Identities map[string]ratelimit.Config `yaml:"identities"`
	Events     []traceEvent                `yaml:"events"`
}

type traceEvent struct {
	Identity string  `yaml:"identity"`
	T        float64 `yaml:"t"`
}

// simDecision is one replayed event.
type simDecision struct {
	T        float64 `json:"t"`
	Identity string  `json:"identity"`
	Allowed  bool    `json:"allowed"`
	Used     int     `json:"used"`
	Limit    int     `json:"limit"`
}

// simSummary counts outcomes for one identity.
type simSummary struct {
	Identity string         `json:"identity"`
	Kind     ratelimit.Kind `json:"kind"`
	Allowed  int            `json:"allowed"`
	Denied   int            `json:"denied"`
}

type simulateResult struct {
	Decisions []simDecision `json:"decisions"`
	Summary   []simSummary  `json:"summary"`
}

func (r *simulateResult) Header() []string {
	return []string{"t", "identity", "allowed", "used", "limit"}
}

func (r *simulateResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		rows = append(rows, []string{
			strconv.FormatFloat(d.T, 'f', -1, 64),
			d.Identity,
			strconv.FormatBool(d.Allowed),
			strconv.Itoa(d.Used),
			strconv.Itoa(d.Limit),
		})
	}
	return rows
}

func runSimulate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(simulateFlags.output)
	if err != nil {
		return err
	}

	tf, err := loadTrace(simulateFlags.trace)
	if err != nil {
		return cli.NewConfigError("trace", err.Error())
	}

	if len(tf.Identities) == 0 {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return cli.NewConfigError(cfgFile, fmt.Sprintf("trace has no identities and config failed to load: %v", err))
		}
		tf.Identities = cfg.Limits.Identities
	}

	var progress cli.ProgressReporter
	if simulateFlags.progress {
		progress = cli.NewProgressReporter(os.Stderr)
	}

	result, err := simulate(cmd.Context(), tf, progress)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}

	out := cmd.OutOrStdout()
	if err := cli.NewFormatter(format).FormatTo(out, result); err != nil {
		return cli.NewCommandError("simulate", err)
	}
	if format == cli.FormatText {
		printSummary(out, result.Summary)
	}
	return nil
}

func loadTrace(path string) (*traceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	var tf traceFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse trace: %w", err)
	}
	return &tf, nil
}

// simulate replays tf's events in order on a manual clock starting at 0.
// Identities get the same defaults and validation as the config file.
func simulate(ctx context.Context, tf *traceFile, progress cli.ProgressReporter) (*simulateResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Default()
	cfg.Limits.Identities = tf.Identities
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	clk := clock.NewManualSeconds(0)
	rl := limits.New[string](
		limits.WithClock(clk),
		limits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if res := rl.Reconcile(cfg.Limits.Identities); len(res.Errors) > 0 {
		return nil, res.Errors[0]
	}

	if progress != nil {
		progress.Start(int64(len(tf.Events)))
		defer progress.Finish()
	}

	result := &simulateResult{Decisions: make([]simDecision, 0, len(tf.Events))}
	counts := make(map[string]*simSummary, len(cfg.Limits.Identities))
	last := 0.0

	for i, ev := range tf.Events {
		if ev.T < last {
			return nil, fmt.Errorf("event %d: t=%v is before the previous event at t=%v", i, ev.T, last)
		}
		last = ev.T
		clk.SetSeconds(ev.T)

		allowed, err := rl.Allow(ctx, ev.Identity)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		stats, err := rl.Stats(ev.Identity)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}

		result.Decisions = append(result.Decisions, simDecision{
			T:        ev.T,
			Identity: ev.Identity,
			Allowed:  allowed,
			Used:     stats.Used,
			Limit:    stats.Limit,
		})

		c, ok := counts[ev.Identity]
		if !ok {
			c = &simSummary{Identity: ev.Identity, Kind: stats.Kind}
			counts[ev.Identity] = c
		}
		if allowed {
			c.Allowed++
		} else {
			c.Denied++
		}

		if progress != nil {
			progress.Update(int64(i + 1))
		}
	}

	for _, c := range counts {
		result.Summary = append(result.Summary, *c)
	}
	sort.Slice(result.Summary, func(i, j int) bool {
		return result.Summary[i].Identity < result.Summary[j].Identity
	})

	return result, nil
}

func printSummary(w io.Writer, summary []simSummary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	for _, s := range summary {
		fmt.Fprintf(w, "  %s (%s): %d allowed, %d denied\n", s.Identity, s.Kind, s.Allowed, s.Denied)
	}
}
