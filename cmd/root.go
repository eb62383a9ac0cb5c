package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storyreel/config"
	"storyreel/logger"
)

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "storyreel",
	Short: "storyreel turns text stories into narrated vertical videos.",
	Long: `storyreel narrates a story with text-to-speech, lays word-timed captions
over a background gameplay clip and renders a 1080x1920 video ready for
short-form platforms.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
			// stdout carries command output everywhere except the server
			Stderr: cmd.Name() != "server",
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
