package main

import (
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ramsey-B/iris/config"
	"github.com/Ramsey-B/iris/internal/app"
)

// cliState holds what every subcommand needs once the root pre-run has loaded it
type cliState struct {
	configPath string
	cfg        *config.Config
	logger     ectologger.Logger
	zapLogger  *zap.Logger
}

func main() {
	rt := &cliState{}

	rootCmd := &cobra.Command{
		Use:           "iris",
		Short:         "Entity disambiguation service",
		Long:          "iris decides whether an incoming entity matches a known one, is new, or needs review.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rt.configPath)
			if err != nil {
				return err
			}
			logger, zapLogger, err := app.NewLogger(cfg)
			if err != nil {
				return err
			}
			rt.cfg, rt.logger, rt.zapLogger = cfg, logger, zapLogger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.zapLogger != nil {
				_ = rt.zapLogger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&rt.configPath, "config", "c", "", "Path to a config file (yaml, json or toml)")

	rootCmd.AddCommand(
		setupServeCommand(rt),
		setupMigrateCommand(rt),
		setupRebuildIndexCommand(rt),
		setupDecideCommand(rt),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
