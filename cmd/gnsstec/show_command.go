package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newShowCommand(configFlag *string) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			path := cfg.LogFilePath()
			out := cmd.OutOrStdout()

			file, err := os.Open(path)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintf(out, "No log file at %s\n", path)
					return nil
				}
				return err
			}
			defer file.Close()

			offset, err := printTail(out, file, lines)
			if err != nil {
				return err
			}
			if !follow {
				return nil
			}

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					info, err := file.Stat()
					if err != nil {
						return err
					}
					if info.Size() < offset {
						// Rotated or truncated; start over from the top.
						offset = 0
					}
					if info.Size() == offset {
						continue
					}
					if _, err := file.Seek(offset, io.SeekStart); err != nil {
						return err
					}
					n, err := io.Copy(out, file)
					if err != nil {
						return err
					}
					offset += n
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 40, "Number of lines to show (0 for all)")
	return cmd
}

// printTail writes the last n lines of file to out and returns the file
// size so a follower can resume where the tail ended.
func printTail(out io.Writer, file *os.File, n int) (int64, error) {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var tail []string
	for scanner.Scan() {
		if n > 0 {
			tail = append(tail, scanner.Text())
			if len(tail) > n {
				tail = tail[1:]
			}
		} else {
			fmt.Fprintln(out, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if len(tail) > 0 {
		fmt.Fprintln(out, strings.Join(tail, "\n"))
	}
	return file.Seek(0, io.SeekEnd)
}
