package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"turnstile-hq/turnstile/pkg/cli"
	"turnstile-hq/turnstile/pkg/config"
	"turnstile-hq/turnstile/pkg/limits/audit"
	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

var auditFlags struct {
	backend    string
	identity   string
	kind       string
	allowed    bool
	denied     bool
	since      time.Duration
	timeRange  string
	limit      int
	offset     int
	output     string
	maxAge     time.Duration
	maxRecords int64
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and maintain the decision audit trail",
	Long: `Query, export, and prune the decision audit trail.

Subcommands:
  query   - List recorded decisions with filters
  prune   - Apply the retention policy now

Examples:
  # Denials for one identity in the last hour
  turnstile audit query --identity api-key-123 --denied --since 1h

  # Export a time range as CSV
  turnstile audit query --time-range "2026-01-01T00:00:00Z/2026-01-02T00:00:00Z" --output csv

  # Delete records older than a day
  turnstile audit prune --max-age 24h`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit records",
	Long: `Query audit records, newest first.

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2026-01-01T00:00:00Z/2026-01-02T00:00:00Z"`,
	RunE: queryAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records outside the retention policy",
	Long: `Delete records older than audit.retention.max_age and beyond
audit.retention.max_records. Flags override the configured values.`,
	RunE: pruneAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditPruneCmd)

	auditCmd.PersistentFlags().StringVar(&auditFlags.backend, "backend", "", "backend: memory, sqlite (uses config if not specified)")

	auditQueryCmd.Flags().StringVar(&auditFlags.identity, "identity", "", "filter by identity")
	auditQueryCmd.Flags().StringVar(&auditFlags.kind, "kind", "", "filter by strategy")
	auditQueryCmd.Flags().BoolVar(&auditFlags.allowed, "allowed", false, "only allowed decisions")
	auditQueryCmd.Flags().BoolVar(&auditFlags.denied, "denied", false, "only denied decisions")
	auditQueryCmd.Flags().DurationVar(&auditFlags.since, "since", 0, "only decisions within this duration of now")
	auditQueryCmd.Flags().StringVar(&auditFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", 100, "max results (0 for all)")
	auditQueryCmd.Flags().IntVar(&auditFlags.offset, "offset", 0, "pagination offset")
	auditQueryCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "text", "output format: text, json, csv")
	auditQueryCmd.MarkFlagsMutuallyExclusive("allowed", "denied")
	auditQueryCmd.MarkFlagsMutuallyExclusive("since", "time-range")

	auditPruneCmd.Flags().DurationVar(&auditFlags.maxAge, "max-age", 0, "override retention max age")
	auditPruneCmd.Flags().Int64Var(&auditFlags.maxRecords, "max-records", 0, "override retention max records")
}

// openAuditStorage opens the audit backend named by --backend or the
// configuration file.
func openAuditStorage() (audit.Storage, *config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError(cfgFile, fmt.Sprintf("failed to load config: %v", err))
	}
	if auditFlags.backend != "" {
		cfg.Audit.Backend = auditFlags.backend
	}

	store, err := cfg.Audit.OpenStorage()
	if err != nil {
		return nil, nil, cli.NewConfigError("audit.backend", err.Error())
	}
	return store, cfg, nil
}

// buildAuditQuery turns the query flags into an audit.Query relative to now.
func buildAuditQuery(now time.Time) (*audit.Query, error) {
	q := &audit.Query{
		Identity: auditFlags.identity,
		Kind:     ratelimit.Kind(auditFlags.kind),
		Limit:    auditFlags.limit,
		Offset:   auditFlags.offset,
	}

	switch {
	case auditFlags.allowed:
		v := true
		q.Allowed = &v
	case auditFlags.denied:
		v := false
		q.Allowed = &v
	}

	if auditFlags.since > 0 {
		start := now.Add(-auditFlags.since)
		q.Start = &start
	}

	if auditFlags.timeRange != "" {
		start, end, err := parseTimeRange(auditFlags.timeRange)
		if err != nil {
			return nil, err
		}
		q.Start, q.End = &start, &end
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func parseTimeRange(s string) (start, end time.Time, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return start, end, fmt.Errorf("invalid time range format (expected: start/end)")
	}
	if start, err = time.Parse(time.RFC3339, parts[0]); err != nil {
		return start, end, fmt.Errorf("invalid start time: %w", err)
	}
	if end, err = time.Parse(time.RFC3339, parts[1]); err != nil {
		return start, end, fmt.Errorf("invalid end time: %w", err)
	}
	return start, end, nil
}

// recordTable renders records as a text table.
type recordTable []*audit.Record

func (t recordTable) Header() []string {
	return []string{"decided_at", "identity", "kind", "allowed", "used", "limit"}
}

func (t recordTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.DecidedAt.UTC().Format(time.RFC3339Nano),
			r.Identity,
			string(r.Kind),
			strconv.FormatBool(r.Allowed),
			strconv.Itoa(r.Used),
			strconv.Itoa(r.Limit),
		})
	}
	return rows
}

func queryAudit(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(auditFlags.output)
	if err != nil {
		return err
	}

	q, err := buildAuditQuery(time.Now())
	if err != nil {
		return cli.NewConfigError("query", err.Error())
	}

	store, _, err := openAuditStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	records, err := store.Query(ctx, q)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case cli.FormatJSON:
		err = audit.Export(out, audit.FormatJSON, records)
	case cli.FormatCSV:
		err = audit.Export(out, audit.FormatCSV, records)
	default:
		if len(records) == 0 {
			fmt.Fprintln(out, "No audit records found.")
			return nil
		}
		if err = cli.NewFormatter(cli.FormatText).FormatTo(out, recordTable(records)); err != nil {
			break
		}
		total, cerr := store.Count(ctx, q)
		if cerr != nil {
			return cli.NewCommandError("audit query", cerr)
		}
		fmt.Fprintf(out, "\nShowing %d of %d matching records\n", len(records), total)
	}
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	return nil
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	store, cfg, err := openAuditStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	retention := cfg.Audit.RetentionConfig()
	if cmd.Flags().Changed("max-age") {
		retention.MaxAge = auditFlags.maxAge
	}
	if cmd.Flags().Changed("max-records") {
		retention.MaxRecords = auditFlags.maxRecords
	}
	if retention.MaxAge < 0 || retention.MaxRecords < 0 {
		return cli.NewConfigError("retention", "max-age and max-records must not be negative")
	}

	deleted, err := audit.NewPruner(store, retention).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d audit records\n", deleted)
	return nil
}
