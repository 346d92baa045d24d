package cmd

import (
	"context"
	"fmt"
	"os"

	"resource-downloader/resource"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var removeCmd = &cobra.Command{
	Use:     "remove <project>",
	Aliases: []string{"rm"},
	Short:   "Deletes an installed project's file and forgets it",
	Long: `Deletes the project's file and removes it from the installed list. Projects that
depended on it are not touched; the next update reinstalls it if they still require it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := bootstrap(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := removeProject(ctx, a, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n", e.ProjectID, e.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func removeProject(ctx context.Context, a *app, arg string) (resource.InstalledEntry, error) {
	e, err := installedEntry(ctx, a, arg)
	if err != nil {
		return e, err
	}
	if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
		return e, fmt.Errorf("failed to remove %s: %w", e.Path, err)
	}
	if err := a.cache.Remove(ctx, e.ProjectID); err != nil {
		return e, err
	}
	a.log.Infow("Removed project", zap.String("project", e.ProjectID), zap.String("file", e.Path))
	return e, nil
}
