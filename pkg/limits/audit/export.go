package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var csvHeader = []string{"id", "identity", "kind", "allowed", "used", "limit", "decided_at", "recorded_at"}

// Export writes records to w as a JSON array or as CSV with a header row.
func Export(w io.Writer, format string, records []*Record) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("export json: %w", err)
		}
		return nil

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		for _, r := range records {
			row := []string{
				r.ID,
				r.Identity,
				string(r.Kind),
				strconv.FormatBool(r.Allowed),
				strconv.Itoa(r.Used),
				strconv.Itoa(r.Limit),
				r.DecidedAt.Format(time.RFC3339Nano),
				r.RecordedAt.Format(time.RFC3339Nano),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("export csv: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
