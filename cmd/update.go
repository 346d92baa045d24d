package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"resource-downloader/logger"
	"resource-downloader/orchestrator"
	"resource-downloader/planner"
	"resource-downloader/progress"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Checks for and downloads updates for installed projects",
	Long: `Plans updates for every installed project against the configured game version
and loader, then downloads and verifies them. Projects the plan marks as conflicting
are reported and left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Log.Info("Running update command...")
		ctx := commandContext(cmd)

		a, err := bootstrap(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		var desired []planner.Desired
		if followed, _ := cmd.Flags().GetBool("followed"); followed {
			if desired, err = followedProjects(ctx, a); err != nil {
				return err
			}
		}
		_, err = apply(ctx, a, desired, applyOptionsFrom(cmd), cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	addApplyFlags(updateCmd)
	updateCmd.Flags().Bool("followed", false, "also install projects followed by the MODRINTH_API_KEY user")
}

func addApplyFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "print the plan without downloading anything")
	cmd.Flags().Bool("plain", false, "plain progress output instead of the interactive view")
}

type applyOptions struct {
	dryRun bool
	plain  bool
}

func applyOptionsFrom(cmd *cobra.Command) applyOptions {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	plain, _ := cmd.Flags().GetBool("plain")
	return applyOptions{dryRun: dryRun, plain: plain}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// updateSummary counts what an apply did.
type updateSummary struct {
	Plan      planner.Plan
	Outcomes  []orchestrator.Outcome
	Installed int
	Updated   int
	Failed    int
	Cancelled int
}

func (s updateSummary) String() string {
	return fmt.Sprintf("Finished. Installed %d new, updated %d, failed %d, cancelled %d, conflicts %d.",
		s.Installed, s.Updated, s.Failed, s.Cancelled, s.Plan.Count(planner.Conflict))
}

func (s updateSummary) err() error {
	if n := s.Failed + s.Plan.Count(planner.Failed); n > 0 {
		return fmt.Errorf("%d project(s) failed, see %s", n, logger.FileName)
	}
	return nil
}

// planUpdate plans installed entries plus desired additions and stamps the check time
// on installed entries the catalog answered for.
func planUpdate(ctx context.Context, a *app, desired []planner.Desired, sink progress.Sink) (planner.Plan, error) {
	installed := a.cache.List()
	plan, err := a.planner(sink).Plan(ctx, a.cfg.Target(), installed, desired)
	if err != nil {
		return planner.Plan{}, err
	}

	now := time.Now()
	for _, e := range plan.Entries {
		if e.Installed == nil || e.Action == planner.Failed {
			continue
		}
		if err := a.cache.MarkChecked(ctx, e.ProjectID, now); err != nil {
			a.log.Warnw("Failed to record check time", zap.String("project_id", e.ProjectID), zap.Error(err))
		}
	}
	return plan, nil
}

// executePlan runs plan and reports each outcome to onOutcome as it arrives.
func executePlan(ctx context.Context, a *app, plan planner.Plan, sink progress.Sink, onOutcome func(orchestrator.Outcome)) updateSummary {
	summary := updateSummary{Plan: plan}
	o := a.orchestrator(sink)
	defer o.Close()

	for oc := range o.Execute(ctx, plan) {
		summary.Outcomes = append(summary.Outcomes, oc)
		switch oc.Status {
		case orchestrator.StatusInstalled:
			if e, ok := plan.Entry(oc.ProjectID); ok && e.Action == planner.Update {
				summary.Updated++
			} else {
				summary.Installed++
			}
		case orchestrator.StatusCancelled:
			summary.Cancelled++
		default:
			summary.Failed++
			a.log.Errorw("Failed to install", zap.String("project_id", oc.ProjectID), zap.Error(oc.Err))
		}
		if onOutcome != nil {
			onOutcome(oc)
		}
	}
	return summary
}

// apply plans and executes, choosing the reporter from opts.
func apply(ctx context.Context, a *app, desired []planner.Desired, opts applyOptions, out io.Writer) (updateSummary, error) {
	switch {
	case opts.dryRun:
		plan, err := planUpdate(ctx, a, desired, nil)
		if err != nil {
			return updateSummary{}, err
		}
		fmt.Fprint(out, renderPlan(plan))
		return updateSummary{Plan: plan}, nil
	case opts.plain || out != os.Stdout:
		return applyPlain(ctx, a, desired, out)
	default:
		return applyTUI(ctx, a, desired)
	}
}

func followedProjects(ctx context.Context, a *app) ([]planner.Desired, error) {
	if a.modrinth == nil {
		return nil, fmt.Errorf("followed projects need the Modrinth catalog")
	}
	logger.Log.Info("Fetching followed projects...")
	projects, err := a.modrinth.GetFollowedProjects(ctx)
	if err != nil {
		return nil, err
	}

	var desired []planner.Desired
	for _, p := range projects {
		if _, ok := a.cache.Get(p.ID); ok {
			continue
		}
		if shouldProcessProject(p, &a.cfg, a.log) {
			desired = append(desired, planner.Desired{ProjectID: p.ID})
		}
	}
	logger.Log.Infof("Found %d followed projects, %d not installed yet", len(projects), len(desired))
	return desired, nil
}
