package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
)

// RenderCSV renders the steps of a report as CSV, one row per step.
// Signatures are joined with spaces.
func RenderCSV(r *Report) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{"run_id", "step_index", "name", "status", "signatures", "slot", "fee", "duration_ms", "detail", "error"}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, s := range r.Steps {
		record := []string{
			r.RunID,
			strconv.Itoa(s.Index),
			s.Name,
			s.Status,
			strings.Join(s.Signatures, " "),
			strconv.FormatUint(s.Slot, 10),
			strconv.FormatUint(s.Fee, 10),
			strconv.FormatInt(s.DurationMs, 10),
			s.Detail,
			s.Error,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
