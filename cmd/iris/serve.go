package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/iris/internal/app"
)

func setupServeCommand(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := app.New(rt.cfg, rt.logger, app.Options{WarmIndex: rt.cfg.IndexWarmupOnStart})
			return a.Serve(ctx)
		},
	}
}

func startApp(ctx context.Context, rt *cliState, opts app.Options) (*app.App, func(), error) {
	a := app.New(rt.cfg, rt.logger, opts)
	stop := func() {
		if err := a.Stop(context.Background()); err != nil {
			rt.logger.WithError(err).Warn("Failed to stop dependencies cleanly")
		}
	}
	if err := a.Start(ctx); err != nil {
		stop()
		return nil, nil, err
	}
	return a, stop, nil
}
