package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/trailcraft-group/augment-cli/internal/model"
)

// FormatReport renders the run summary for the terminal. Always produced,
// even when every document failed.
func FormatReport(r *RunReport) string {
	var b strings.Builder

	b.WriteString("Augmentation run ")
	b.WriteString(r.RunID)
	if r.DryRun {
		b.WriteString(" (dry run)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  mode:      %s\n", r.Mode)
	fmt.Fprintf(&b, "  duration:  %s\n", r.Duration.Round(10*time.Millisecond))
	fmt.Fprintf(&b, "  processed: %d\n", r.Stats.Processed)
	fmt.Fprintf(&b, "  enhanced:  %d\n", r.Stats.Enhanced)
	fmt.Fprintf(&b, "  skipped:   %d\n", r.Stats.Skipped)
	fmt.Fprintf(&b, "  errors:    %d\n", r.Stats.Errors)
	fmt.Fprintf(&b, "  products:  %d", r.Stats.TotalProducts)
	if r.Stats.Enhanced > 0 {
		fmt.Fprintf(&b, " (%.1f per enhanced document)", r.Stats.AvgProductsPerEnhanced())
	}
	b.WriteString("\n")

	if cost := r.Usage.EstimateCost(r.Model); cost > 0 {
		fmt.Fprintf(&b, "  est. cost: $%.4f (%d in / %d out tokens)\n",
			cost, r.Usage.InputTokens, r.Usage.OutputTokens)
	}

	var errored []model.DocumentResult
	for _, res := range r.Results {
		if res.Status == model.DocErrored {
			errored = append(errored, res)
		}
	}
	if len(errored) > 0 {
		b.WriteString("\nErrors:\n")
		for _, res := range errored {
			fmt.Fprintf(&b, "  %s: %s\n", res.Path, res.Error)
		}
	}

	return b.String()
}
