package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"gnsstec/internal/archive"
	"gnsstec/internal/daemon"
	"gnsstec/internal/queue"
	"gnsstec/internal/worker"
)

func newConvertCommand(configFlag *string) *cobra.Command {
	var maxDaysBack int

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert and archive recent closed hours, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			if maxDaysBack > 0 {
				cfg.Conversion.MaxDaysBack = maxDaysBack
			}
			logger, err := newCLILogger(cfg)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			// The running daemon owns the data directory; refuse to race it.
			lock := flock.New(cfg.LockFilePath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock %s: %w", cfg.LockFilePath(), err)
			}
			if !ok {
				return fmt.Errorf("%w (lock file %s)", daemon.ErrLockHeld, cfg.LockFilePath())
			}
			defer lock.Unlock()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			primary, fallback, err := daemon.ResolveConverters(ctx, cfg, logger)
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg.QueueDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			archiver := archive.New(archive.Options{
				Root:             cfg.Paths.ArchiveDir,
				KeepRaw:          cfg.Conversion.KeepRaw,
				CompressRetained: cfg.Conversion.CompressRetained,
			}, logger)

			w := worker.New(store, primary, fallback, archiver, worker.Options{
				DataDir:       cfg.Paths.DataDir,
				WorkspaceRoot: cfg.WorkspaceRoot(),
				PollInterval:  time.Duration(cfg.Conversion.PollIntervalSecs) * time.Second,
				ShiftHours:    cfg.Conversion.ShiftHours,
				MaxDaysBack:   cfg.Conversion.MaxDaysBack,
				SkipNav:       cfg.Converter.SkipNav,
			}, logger)

			if _, err := store.ResetStuckRunning(ctx); err != nil {
				return err
			}
			if _, err := w.CatchUp(ctx); err != nil {
				return err
			}
			processed, err := w.Drain(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Conversion complete; processed %d hour(s)\n", processed)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDaysBack, "max-days-back", 0, "Override the catch-up window in days")
	return cmd
}
