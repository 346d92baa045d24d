package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pinCmd = &cobra.Command{
	Use:   "pin <project>",
	Short: "Keeps a project at its installed version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPinned(cmd, args[0], true)
	},
}

var unpinCmd = &cobra.Command{
	Use:   "unpin <project>",
	Short: "Lets update move a pinned project to newer versions again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPinned(cmd, args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)
}

func setPinned(cmd *cobra.Command, arg string, pinned bool) error {
	ctx := commandContext(cmd)
	a, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	e, err := installedEntry(ctx, a, arg)
	if err != nil {
		return err
	}
	if err := a.cache.SetPinned(ctx, e.ProjectID, pinned); err != nil {
		return err
	}
	state := "Unpinned"
	if pinned {
		state = "Pinned"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s at %s\n", state, e.ProjectID, versionLabel(e.Version.VersionNumber, e.Version.ID))
	return nil
}
