package reconcile

import (
	"fmt"
	"strings"

	"rcsync/internal/domain"
)

// FormatSummary returns the human-readable end-of-run line.
func FormatSummary(o Outcome) string {
	counts := make([]string, 0, len(domain.Statuses))
	for _, s := range domain.Statuses {
		counts = append(counts, fmt.Sprintf("%s=%d", s, o.Counts[s]))
	}
	tally := strings.Join(counts, ", ")

	if o.Checked == 0 {
		return fmt.Sprintf("Nothing to check for %s: %d records carried forward (%s).", o.Period, o.Carried, tally)
	}
	msg := fmt.Sprintf("Checked %d records for %s, carried forward %d (%s).", o.Checked, o.Period, o.Carried, tally)
	if o.Failed > 0 {
		msg += fmt.Sprintf(" %d fetches failed and will be retried next run.", o.Failed)
	}
	return msg
}

// FormatProgress renders one per-record progress line.
func FormatProgress(p Progress) string {
	line := fmt.Sprintf("Checked %d/%d: %s - %s", p.N, p.Total, p.Classification.ID, p.Classification.Status)
	if q := p.Classification.QuantityString(); q != "" {
		line += fmt.Sprintf(" (%s)", q)
	}
	return line
}
