package cmd

import (
	"fmt"
	"strings"

	"resource-downloader/planner"
	"resource-downloader/ui"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [project...]",
	Short: "Shows what update (or install of the given projects) would do",
	Long: `Computes the plan for the installed projects plus any projects given as
arguments, without downloading anything. The digest identifies the plan: two runs
against an unchanged catalog print the same digest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := bootstrap(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := canonicalIDs(ctx, a, args)
		if err != nil {
			return err
		}
		desired, err := desiredFrom(ids, constraintFrom(cmd))
		if err != nil {
			return err
		}
		plan, err := planUpdate(ctx, a, desired, nil)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderPlan(plan))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	addConstraintFlags(planCmd, "version ID to plan for the given projects")
}

// renderPlan formats plan as a table followed by its digest.
func renderPlan(plan planner.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", ui.Bold.Render("Plan for"), plan.Target)
	if len(plan.Entries) == 0 {
		b.WriteString("  nothing installed or requested\n")
	}
	for _, e := range plan.Entries {
		name := e.Title
		if name == "" {
			name = e.ProjectID
		}
		if e.Dependency {
			name += ui.Faint.Render(" (dependency)")
		}

		change := ""
		switch {
		case e.Version != nil && e.Installed != nil && e.Action == planner.Update:
			change = versionLabel(e.Installed.VersionNumber, e.Installed.ID) + " -> " + versionLabel(e.Version.VersionNumber, e.Version.ID)
		case e.Version != nil:
			change = versionLabel(e.Version.VersionNumber, e.Version.ID)
		case e.Installed != nil:
			change = versionLabel(e.Installed.VersionNumber, e.Installed.ID)
		}

		fmt.Fprintf(&b, "  %s %-32s %-28s %s\n", ui.Action(e.Action, 8), name, change, ui.Faint.Render(e.Reason))
	}

	fmt.Fprintf(&b, "\n%d to install, %d to update, %d conflicts, %d failed\n",
		plan.Count(planner.Install), plan.Count(planner.Update), plan.Count(planner.Conflict), plan.Count(planner.Failed))
	if digest, err := plan.Digest(); err == nil {
		fmt.Fprintf(&b, "digest %s\n", ui.Faint.Render(digest))
	}
	return b.String()
}

func versionLabel(number, id string) string {
	if number != "" {
		return number
	}
	return id
}
