package cmd

import (
	"context"
	"fmt"
	"io"

	"resource-downloader/orchestrator"
	"resource-downloader/planner"

	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"
)

// applyPlain prints the plan, then a single progress bar over the downloads and one
// line per outcome.
func applyPlain(ctx context.Context, a *app, desired []planner.Desired, out io.Writer) (updateSummary, error) {
	plan, err := planUpdate(ctx, a, desired, nil)
	if err != nil {
		return updateSummary{}, err
	}
	fmt.Fprint(out, renderPlan(plan))

	total := 0
	for _, e := range plan.Entries {
		if e.Executable() {
			total++
		}
	}
	if total == 0 {
		summary := updateSummary{Plan: plan}
		fmt.Fprintln(out, summary)
		return summary, summary.err()
	}

	p := mpb.NewWithContext(ctx, mpb.WithOutput(out), mpb.WithWidth(40))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("Downloading "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	var lines []string
	summary := executePlan(ctx, a, plan, nil, func(oc orchestrator.Outcome) {
		lines = append(lines, outcomeLine(oc))
		bar.Increment()
	})
	if !bar.Completed() {
		bar.Abort(false)
	}
	p.Wait()

	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	fmt.Fprintln(out, summary)
	return summary, summary.err()
}

func outcomeLine(oc orchestrator.Outcome) string {
	switch oc.Status {
	case orchestrator.StatusInstalled:
		return fmt.Sprintf("  installed %s %s", oc.ProjectID, oc.VersionID)
	case orchestrator.StatusCancelled:
		return fmt.Sprintf("  cancelled %s", oc.ProjectID)
	default:
		return fmt.Sprintf("  failed    %s: %v", oc.ProjectID, oc.Err)
	}
}
