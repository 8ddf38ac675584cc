package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Ubx2RinexOptions configures the primary converter client. Station fields
// end up in the RINEX headers.
type Ubx2RinexOptions struct {
	BinaryPath   string
	Station      string
	Country      string
	ReceiverType string
	AntennaType  string
	Observer     string
	Sampling     string
	Crinex       bool
	Gzip         bool
	SkipNav      bool
	Exec         Executor
}

// Ubx2Rinex wraps the ubx2rinex command-line converter.
type Ubx2Rinex struct {
	opts Ubx2RinexOptions
}

// NewUbx2Rinex constructs the primary converter client.
func NewUbx2Rinex(opts Ubx2RinexOptions) *Ubx2Rinex {
	if opts.Exec == nil {
		opts.Exec = SystemExecutor{}
	}
	if strings.TrimSpace(opts.Sampling) == "" {
		opts.Sampling = "1 s"
	}
	return &Ubx2Rinex{opts: opts}
}

func (c *Ubx2Rinex) Name() string { return "ubx2rinex" }

// Available probes the binary with --version.
func (c *Ubx2Rinex) Available(ctx context.Context) error {
	program, _ := resolveProgram(c.opts.BinaryPath, "ubx2rinex")
	if err := c.opts.Exec.Run(ctx, program, "--version"); err != nil {
		return fmt.Errorf("%w: %s", ErrConverterUnavailable, err)
	}
	return nil
}

// Convert runs ubx2rinex over the hour's raw files, emitting products under
// the request's output directory.
func (c *Ubx2Rinex) Convert(ctx context.Context, req Request) error {
	if len(req.SourceFiles) == 0 {
		return errors.New("no source files")
	}
	if req.OutputDir == "" {
		return errors.New("output directory required")
	}

	args := make([]string, 0, 2*len(req.SourceFiles)+24)
	for _, src := range req.SourceFiles {
		args = append(args, "--file", src)
	}
	args = append(args,
		"--name", c.opts.Station+"00",
		"-c", c.opts.Country,
		"--long",
		"--period", "1 h",
		"--sampling", c.opts.Sampling,
	)
	if c.opts.Crinex {
		args = append(args, "--crx")
	}
	if c.opts.Gzip {
		args = append(args, "--gzip")
	}
	args = append(args,
		"--prefix", req.OutputDir,
		"--model", c.opts.ReceiverType,
		"--antenna", c.opts.AntennaType,
		"--observer", c.opts.Observer,
	)
	if !c.opts.SkipNav {
		args = append(args, "--nav")
	}

	program, _ := resolveProgram(c.opts.BinaryPath, "ubx2rinex")
	if err := c.opts.Exec.Run(ctx, program, args...); err != nil {
		return fmt.Errorf("ubx2rinex conversion: %w", err)
	}
	return nil
}

var _ Converter = (*Ubx2Rinex)(nil)
