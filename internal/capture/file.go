// Package capture owns the raw byte path from the receiver to hour-aligned
// files in the data directory.
//
// An ingestor reads the serial stream, appends every byte to the active
// capture file, and rotates to a fresh file when the UTC hour changes. The
// file that just closed is handed to a callback so its conversion can be
// queued before any new-hour bytes land on disk.
package capture

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gnsstec/internal/bucket"
)

const writerBufferSize = 64 * 1024

// File is the active capture file for one UTC hour. Writes are buffered;
// Flush pushes them to the OS on the configured interval.
type File struct {
	hour    bucket.Hour
	path    string
	handle  *os.File
	writer  *bufio.Writer
	written int64
}

// OpenFile creates (or appends to) the capture file for the hour containing
// openedAt. The file name carries the full open timestamp, so a restart
// within the same hour produces a second file for that hour.
func OpenFile(dataDir string, openedAt time.Time) (*File, error) {
	path := filepath.Join(dataDir, bucket.CaptureFileName(openedAt))
	handle, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file %s: %w", path, err)
	}
	return &File{
		hour:   bucket.Of(openedAt),
		path:   path,
		handle: handle,
		writer: bufio.NewWriterSize(handle, writerBufferSize),
	}, nil
}

// Hour returns the UTC hour this file belongs to.
func (f *File) Hour() bucket.Hour { return f.hour }

// Path returns the absolute file path.
func (f *File) Path() string { return f.path }

// Written returns the byte count accepted so far.
func (f *File) Written() int64 { return f.written }

// Write appends raw bytes to the buffered stream.
func (f *File) Write(data []byte) error {
	n, err := f.writer.Write(data)
	f.written += int64(n)
	if err != nil {
		return fmt.Errorf("write capture file %s: %w", f.path, err)
	}
	return nil
}

// Flush pushes buffered bytes to the OS.
func (f *File) Flush() error {
	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("flush capture file %s: %w", f.path, err)
	}
	return nil
}

// Close flushes and closes the file. The file is complete once Close returns.
func (f *File) Close() error {
	flushErr := f.Flush()
	if err := f.handle.Close(); err != nil {
		return fmt.Errorf("close capture file %s: %w", f.path, err)
	}
	return flushErr
}
