package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"resource-downloader/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "resource-downloader",
	Short: "Keeps Modrinth mods, shaders, resource packs, datapacks and plugins up to date",
	Long: `Resolves compatible versions of your installed Modrinth projects for the configured
game version and loader, plans installs and updates with their dependencies, and
downloads them with hash verification.

Running without a subcommand is the same as running 'update'.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		updateCmd.SetContext(cmd.Context())
		return updateCmd.RunE(updateCmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing the .env file")
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Log.Errorw("Command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		logger.Sync()
		os.Exit(1)
	}
}
