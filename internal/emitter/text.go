package emitter

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// TextEmitter writes a human readable table of a summary, one row per
// report.
type TextEmitter struct {
	w       io.Writer
	verbose bool
}

// NewTextEmitter creates a text emitter. Verbose also lists every failed
// or skipped resource below its report row.
func NewTextEmitter(w io.Writer, verbose bool) *TextEmitter {
	return &TextEmitter{w: w, verbose: verbose}
}

// Emit writes the summary.
func (e *TextEmitter) Emit(_ context.Context, summary *Summary) error {
	tw := tabwriter.NewWriter(e.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "SCHEDULER\tREGION\tACTION\tSUCCEEDED\tFAILED\tSKIPPED\tDURATION\tERROR")
	for _, r := range summary.Reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.Scheduler, r.Region, r.Action,
			r.Succeeded(), r.Failed(), r.Skipped(),
			r.Duration.Round(time.Millisecond), r.Err)

		if !e.verbose {
			continue
		}
		for _, o := range r.Outcomes {
			switch {
			case o.Error != "":
				fmt.Fprintf(tw, "  %s %s\t%s\t\t\t\t\t\t%s\n", o.Kind, o.ID, o.Status, o.Error)
			case o.SkipReason != "":
				fmt.Fprintf(tw, "  %s %s\t%s\t\t\t\t\t\t%s\n", o.Kind, o.ID, o.Status, o.SkipReason)
			}
		}
	}

	fmt.Fprintf(tw, "\n%s: %d succeeded, %d failed, %d skipped, %d dry run\n",
		summary.Action, summary.Succeeded, summary.Failed, summary.Skipped, summary.DryRun)
	return tw.Flush()
}

// Close is a no-op.
func (e *TextEmitter) Close() error {
	return nil
}
