package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// Executor runs converter subprocesses. Tests substitute a recording fake.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) error
}

// SystemExecutor shells out and folds combined output into the error on
// failure.
type SystemExecutor struct{}

func (SystemExecutor) Run(ctx context.Context, name string, args ...string) error {
	cmd := commandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(output))
		if trimmed != "" {
			return fmt.Errorf("%s: %w\noutput:\n%s", name, err, trimmed)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// resolveProgram prefers the configured path when it exists and otherwise
// falls back to a bare name for PATH lookup. Covers distributions that do
// not install converters under the default location.
func resolveProgram(configuredPath, bareName string) (string, bool) {
	if configuredPath != "" {
		if _, err := os.Stat(configuredPath); err == nil {
			return configuredPath, false
		}
	}
	return bareName, true
}
