package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "gnsstec",
		Short:         "GNSS telemetry capture and RINEX conversion daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(&configFlag))
	rootCmd.AddCommand(newLogCommand(&configFlag))
	rootCmd.AddCommand(newConvertCommand(&configFlag))
	rootCmd.AddCommand(newQueueCommand(&configFlag))
	rootCmd.AddCommand(newDepsCommand(&configFlag))
	rootCmd.AddCommand(newShowCommand(&configFlag))
	rootCmd.AddCommand(newConfigCommand(&configFlag))

	return rootCmd
}
