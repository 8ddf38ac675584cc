package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gnsstec/internal/preflight"
)

func newDepsCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external converter binaries and directory access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := preflight.CheckSystemDeps(cfg)
			rows := make([][]string, 0, len(statuses))
			missingRequired := false
			for _, status := range statuses {
				state := "ok"
				detail := status.Description
				if !status.Available {
					detail = status.Detail
					if status.Optional {
						state = "missing (optional)"
					} else {
						state = "missing"
						missingRequired = true
					}
				}
				rows = append(rows, []string{status.Name, status.Command, state, detail})
			}
			table := renderTable(
				[]string{"Binary", "Command", "State", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(out, table)

			checkRows := make([][]string, 0, 4)
			checksFailed := false
			for _, result := range preflight.RunAll(cfg) {
				state := "ok"
				if !result.Passed {
					state = "failed"
					checksFailed = true
				}
				checkRows = append(checkRows, []string{result.Name, state, result.Detail})
			}
			table = renderTable(
				[]string{"Check", "State", "Detail"},
				checkRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(out, table)

			if missingRequired {
				return fmt.Errorf("required converter missing; install ubx2rinex or set converter.primary_path")
			}
			if checksFailed {
				return fmt.Errorf("environment checks failed")
			}
			return nil
		},
	}
}
