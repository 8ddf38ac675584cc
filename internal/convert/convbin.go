package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Convbin wraps RTKLIB's convbin as a navigation-only fallback. It cannot
// replace the observation pipeline; it exists so ephemeris data keeps
// flowing when ubx2rinex is absent.
type Convbin struct {
	binaryPath string
	exec       Executor
}

// NewConvbin constructs the fallback converter client.
func NewConvbin(binaryPath string, executor Executor) *Convbin {
	if executor == nil {
		executor = SystemExecutor{}
	}
	return &Convbin{binaryPath: binaryPath, exec: executor}
}

func (c *Convbin) Name() string { return "convbin" }

// Available checks the binary exists and is executable. convbin has no
// version flag, so no probe process is run.
func (c *Convbin) Available(_ context.Context) error {
	program, fallback := resolveProgram(c.binaryPath, "convbin")
	if fallback {
		if _, err := exec.LookPath(program); err != nil {
			return fmt.Errorf("%w: %s", ErrConverterUnavailable, err)
		}
		return nil
	}
	info, err := os.Stat(program)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConverterUnavailable, err)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s is not executable", ErrConverterUnavailable, program)
	}
	return nil
}

// Convert extracts navigation data from each raw file into the output
// directory. convbin takes a single input per invocation.
func (c *Convbin) Convert(ctx context.Context, req Request) error {
	if len(req.SourceFiles) == 0 {
		return errors.New("no source files")
	}
	if req.OutputDir == "" {
		return errors.New("output directory required")
	}

	program, _ := resolveProgram(c.binaryPath, "convbin")
	for _, src := range req.SourceFiles {
		args := []string{"-r", "ubx", "-n", "-d", req.OutputDir, src}
		if err := c.exec.Run(ctx, program, args...); err != nil {
			return fmt.Errorf("convbin conversion of %s: %w", src, err)
		}
	}
	return nil
}

var _ Converter = (*Convbin)(nil)
