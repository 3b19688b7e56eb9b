package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Token Lifecycle Run\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Run\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", r.RunID))
	sb.WriteString(fmt.Sprintf("| Status | %s |\n", r.Status))
	sb.WriteString(fmt.Sprintf("| Mint | %s |\n", r.Mint))
	sb.WriteString(fmt.Sprintf("| Payer | %s |\n", r.Payer))
	sb.WriteString(fmt.Sprintf("| Authority | %s |\n", r.Authority))
	sb.WriteString(fmt.Sprintf("| Recipient | %s |\n", r.Recipient))
	sb.WriteString(fmt.Sprintf("| RPC Endpoint | %s |\n", r.RPCEndpoint))
	sb.WriteString(fmt.Sprintf("| Start Slot | %d |\n", r.StartSlot))
	sb.WriteString(fmt.Sprintf("| Started (ms) | %d |\n", r.StartedAt))
	if r.FinishedAt != 0 {
		sb.WriteString(fmt.Sprintf("| Finished (ms) | %d |\n", r.FinishedAt))
		sb.WriteString(fmt.Sprintf("| Duration (ms) | %d |\n", r.Totals.DurationMs))
	}
	sb.WriteString("\n")

	if r.Error != "" {
		sb.WriteString("**Run failed:** ")
		sb.WriteString(escapeCell(r.Error))
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Steps\n\n")
	if len(r.Steps) > 0 {
		sb.WriteString("| # | Step | Status | Slot | Fee | Duration (ms) | Detail |\n")
		sb.WriteString("|---|------|--------|------|-----|---------------|--------|\n")
		for _, s := range r.Steps {
			detail := s.Detail
			if s.Error != "" {
				detail = s.Error
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %d | %d | %s |\n",
				s.Index, s.Name, s.Status, s.Slot, s.Fee, s.DurationMs, escapeCell(detail)))
		}
	} else {
		sb.WriteString("No steps recorded.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Transactions\n\n")
	if r.Totals.Transactions > 0 {
		for _, s := range r.Steps {
			for i, sig := range s.Signatures {
				if i < len(s.ExplorerURLs) && s.ExplorerURLs[i] != "" {
					sb.WriteString(fmt.Sprintf("- %s: [%s](%s)\n", s.Name, sig, s.ExplorerURLs[i]))
				} else {
					sb.WriteString(fmt.Sprintf("- %s: %s\n", s.Name, sig))
				}
			}
		}
	} else {
		sb.WriteString("No transactions submitted.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Totals\n\n")
	sb.WriteString(fmt.Sprintf("Steps: %d (%d failed) | Transactions: %d | Fees: %d lamports\n",
		r.Totals.Steps, r.Totals.FailedSteps, r.Totals.Transactions, r.Totals.FeeLamports))

	return sb.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
