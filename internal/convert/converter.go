// Package convert wraps the external RINEX converter programs.
//
// The primary converter is ubx2rinex, which produces observation and
// navigation products from raw UBX capture files. RTKLIB's convbin serves
// as a navigation-only fallback when ubx2rinex is missing. Both are opaque
// subprocesses; this package owns their argument contracts, availability
// probes, and the classification of what they leave behind.
package convert

import (
	"context"
	"errors"
)

// ErrConverterUnavailable signals that a converter binary cannot be found
// or executed.
var ErrConverterUnavailable = errors.New("converter unavailable")

// Request describes one hour's conversion: the raw files to feed in and the
// workspace directory products must land in.
type Request struct {
	SourceFiles []string
	OutputDir   string
}

// Converter runs an external conversion program.
type Converter interface {
	Name() string
	Available(ctx context.Context) error
	Convert(ctx context.Context, req Request) error
}
