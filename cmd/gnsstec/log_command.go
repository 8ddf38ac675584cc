package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gnsstec/internal/daemon"
)

func newLogCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Capture receiver data to hourly files without converting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			logger, err := newDaemonLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := daemon.BuildCapture(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Start(ctx); err != nil {
				return err
			}
			err = d.Wait()
			d.Stop()
			return err
		},
	}
}
