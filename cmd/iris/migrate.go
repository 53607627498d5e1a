package main

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/iris/internal/app"
)

func setupMigrateCommand(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the audit database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, stop, err := startApp(cmd.Context(), rt, app.Options{MigrateOnly: true})
			if err != nil {
				return err
			}
			defer stop()

			rt.logger.Infof("Migrations applied to %s database", rt.cfg.DatabaseDriver)
			return nil
		},
	}
}
