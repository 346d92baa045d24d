package cmd

import (
	"context"
	"io"

	"resource-downloader/resource"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <project...>",
	Short: "Installs projects and their required dependencies",
	Long: `Adds the given Modrinth projects (IDs or slugs) to the installed set, resolving
the best compatible version for each and pulling in required dependencies. Installed
projects are planned too, so anything the new projects conflict with is reported.

With --version the projects are installed at exactly that version ID and pinned.
With --range the newest version whose number falls in the range is installed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := bootstrap(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		_, err = installProjects(ctx, a, args, constraintFrom(cmd), applyOptionsFrom(cmd), cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
	addApplyFlags(installCmd)
	addConstraintFlags(installCmd, "version ID to install and pin")
}

// installProjects applies the installed set plus the projects in args, each
// constrained by c. A constraint with a version ID pins the projects.
func installProjects(ctx context.Context, a *app, args []string, c resource.Constraint, opts applyOptions, out io.Writer) (updateSummary, error) {
	projectIDs, err := canonicalIDs(ctx, a, args)
	if err != nil {
		return updateSummary{}, err
	}
	desired, err := desiredFrom(projectIDs, c)
	if err != nil {
		return updateSummary{}, err
	}
	summary, err := apply(ctx, a, desired, opts, out)
	if !opts.dryRun {
		pinUpToDate(ctx, a, summary.Plan)
	}
	return summary, err
}
