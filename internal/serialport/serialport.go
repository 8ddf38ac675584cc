// Package serialport owns the GNSS receiver device handle.
//
// It wraps go.bug.st/serial with the bounded read timeout the ingestion
// loop depends on: an expired timeout surfaces as a zero-length read with a
// nil error, letting the caller re-check cancellation and the hour clock.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// ErrDeviceUnavailable marks open failures for a missing or inaccessible
// device. This is fatal by contract: restart is a supervisory concern, not
// an in-process retry loop.
var ErrDeviceUnavailable = errors.New("serial device unavailable")

// Port is the device handle consumed by the ingestion loop.
type Port interface {
	io.ReadWriteCloser
}

// Open opens the serial device at the given baud rate with a bounded read
// timeout applied to every Read call.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: no port configured", ErrDeviceUnavailable)
	}
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s @ %d: %v", ErrDeviceUnavailable, name, baud, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w: set read timeout on %s: %v", ErrDeviceUnavailable, name, err)
	}
	return port, nil
}
