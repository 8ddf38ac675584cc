package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"gnsstec/internal/queue"
)

func newQueueCommand(configFlag *string) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the conversion queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(configFlag))
	queueCmd.AddCommand(newQueueListCommand(configFlag))
	queueCmd.AddCommand(newQueueRetryCommand(configFlag))
	queueCmd.AddCommand(newQueueResetCommand(configFlag))
	queueCmd.AddCommand(newQueueClearCommand(configFlag))

	return queueCmd
}

func withQueueStore(configFlag *string, fn func(store *queue.Store) error) error {
	cfg, err := loadConfig(configFlag)
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg.QueueDBPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newQueueStatusCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show conversion queue summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueueStore(configFlag, func(store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				if health.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := [][]string{
					{string(queue.StatusPending), strconv.Itoa(health.Pending)},
					{string(queue.StatusRunning), strconv.Itoa(health.Running)},
					{string(queue.StatusSucceeded), strconv.Itoa(health.Succeeded)},
					{string(queue.StatusFailed), strconv.Itoa(health.Failed)},
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(configFlag *string) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueueStore(configFlag, func(store *queue.Store) error {
				statuses := make([]queue.Status, 0, len(listStatuses))
				for _, value := range listStatuses {
					status := queue.Status(value)
					if !status.Known() {
						return fmt.Errorf("unknown status %q", value)
					}
					statuses = append(statuses, status)
				}

				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.HourKey,
						string(job.Status),
						strconv.Itoa(job.Attempts),
						strconv.Itoa(job.SourceCount),
						job.UpdatedAt.Format(time.RFC3339),
						job.ErrorMessage,
					})
				}
				table := renderTable(
					[]string{"ID", "Hour", "Status", "Attempts", "Sources", "Updated", "Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newQueueRetryCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Return failed jobs to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueueStore(configFlag, func(store *queue.Store) error {
				updated, err := store.RetryFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed job(s)\n", updated)
				return nil
			})
		},
	}
}

func newQueueResetCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return in-flight jobs to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueueStore(configFlag, func(store *queue.Store) error {
				updated, err := store.ResetStuckRunning(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d job(s)\n", updated)
				return nil
			})
		},
	}
}

func newQueueClearCommand(configFlag *string) *cobra.Command {
	var clearSucceeded bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearSucceeded && clearFailed {
				return errors.New("specify only one of --succeeded or --failed")
			}
			return withQueueStore(configFlag, func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				var removed int64
				var err error
				switch {
				case clearSucceeded:
					removed, err = store.ClearSucceeded(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d succeeded job(s)\n", removed)
				case clearFailed:
					removed, err = store.ClearFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed job(s)\n", removed)
				default:
					removed, err = store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d job(s)\n", removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearSucceeded, "succeeded", false, "Remove only succeeded jobs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed jobs")
	return cmd
}
