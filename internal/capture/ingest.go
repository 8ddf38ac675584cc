package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gnsstec/internal/bucket"
	"gnsstec/internal/logging"
	"gnsstec/internal/nmea"
)

const (
	flushRetries = 3
	openRetries  = 3
	retryDelay   = 500 * time.Millisecond
)

// RotateFunc is invoked after an hour's capture file has been flushed and
// closed, and before any bytes of the following hour are written.
type RotateFunc func(hour bucket.Hour, path string)

// IngestorOptions configures a capture ingestor.
type IngestorOptions struct {
	DataDir         string
	ReadBufferBytes int
	FlushInterval   time.Duration
	StatsInterval   time.Duration
	Monitor         *nmea.Monitor
	OnRotate        RotateFunc
	Logger          *slog.Logger

	// Now overrides the wall clock. Nil means time.Now.
	Now func() time.Time
}

// Ingestor pumps receiver bytes into hour-aligned capture files. At most one
// capture file is open at any time.
type Ingestor struct {
	port      io.Reader
	opts      IngestorOptions
	logger    *slog.Logger
	now       func() time.Time
	lastFlush time.Time
	lastStats time.Time
	statBytes int64
}

// NewIngestor builds an ingestor reading from port. The port is expected to
// return zero-length reads with a nil error on timeout; any non-nil read
// error is treated as loss of the device.
func NewIngestor(port io.Reader, opts IngestorOptions) *Ingestor {
	if opts.ReadBufferBytes <= 0 {
		opts.ReadBufferBytes = 8192
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ingestor{
		port:   port,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "ingest"),
		now:    now,
	}
}

// Run captures until ctx is cancelled or the device read fails. On
// cancellation the active file is flushed and closed before returning, so
// every byte read before shutdown is on disk.
func (in *Ingestor) Run(ctx context.Context) error {
	file, err := in.openWithRetry(in.now())
	if err != nil {
		return err
	}
	in.lastFlush = in.now()
	in.lastStats = in.now()
	in.logger.Info("capture started", logging.String(logging.FieldPath, file.Path()), logging.String(logging.FieldHour, file.Hour().Key()))

	buf := make([]byte, in.opts.ReadBufferBytes)
	for {
		if ctx.Err() != nil {
			return in.shutdown(file)
		}

		n, readErr := in.port.Read(buf)
		if n > 0 {
			file, err = in.rotateIfNeeded(file)
			if err != nil {
				return err
			}
			if err := file.Write(buf[:n]); err != nil {
				file.Close()
				return err
			}
			in.statBytes += int64(n)
			in.opts.Monitor.Ingest(buf[:n])
		}
		if readErr != nil {
			// Device gone. Preserve what we have and let the supervisor restart us.
			closeErr := in.shutdown(file)
			if closeErr != nil {
				in.logger.Error("close after device loss", logging.Error(closeErr))
			}
			return fmt.Errorf("read receiver: %w", readErr)
		}
		if n == 0 {
			// Timeout tick. An idle stream still rotates on the hour boundary.
			file, err = in.rotateIfNeeded(file)
			if err != nil {
				return err
			}
		}

		if err := in.maybeFlush(file); err != nil {
			file.Close()
			return err
		}
		in.maybeLogStats(file)
		in.opts.Monitor.MaybeReport()
	}
}

func (in *Ingestor) shutdown(file *File) error {
	if err := file.Close(); err != nil {
		return err
	}
	in.logger.Info("capture stopped",
		logging.String(logging.FieldPath, file.Path()),
		logging.Int64(logging.FieldBytes, file.Written()))
	return nil
}

// rotateIfNeeded closes the active file and opens the next one when the UTC
// hour has advanced. The closed hour is reported through OnRotate after the
// close completes and before the new file exists.
func (in *Ingestor) rotateIfNeeded(file *File) (*File, error) {
	now := in.now()
	if bucket.Of(now).Equal(file.Hour()) {
		return file, nil
	}

	closedHour := file.Hour()
	closedPath := file.Path()
	if err := in.closeWithRetry(file); err != nil {
		return nil, err
	}
	in.logger.Info("hour closed",
		logging.String(logging.FieldHour, closedHour.Key()),
		logging.String(logging.FieldPath, closedPath),
		logging.Int64(logging.FieldBytes, file.Written()))

	if in.opts.OnRotate != nil {
		in.opts.OnRotate(closedHour, closedPath)
	}

	next, err := in.openWithRetry(now)
	if err != nil {
		return nil, err
	}
	in.logger.Info("capture rotated", logging.String(logging.FieldPath, next.Path()), logging.String(logging.FieldHour, next.Hour().Key()))
	return next, nil
}

// closeWithRetry completes a rotating file with the same bounded retry
// discipline as the interval flush. The handle close itself is not retried;
// a second close of the same descriptor cannot succeed.
func (in *Ingestor) closeWithRetry(file *File) error {
	var lastErr error
	for attempt := 1; attempt <= flushRetries; attempt++ {
		if lastErr = file.Flush(); lastErr == nil {
			return file.Close()
		}
		in.logger.Warn("flush before rotation failed", logging.Int(logging.FieldAttempt, attempt), logging.Error(lastErr))
		time.Sleep(retryDelay)
	}
	file.Close()
	return fmt.Errorf("flush before rotation after %d attempts: %w", flushRetries, lastErr)
}

func (in *Ingestor) openWithRetry(at time.Time) (*File, error) {
	var lastErr error
	for attempt := 1; attempt <= openRetries; attempt++ {
		file, err := OpenFile(in.opts.DataDir, at)
		if err == nil {
			return file, nil
		}
		lastErr = err
		in.logger.Warn("open capture file failed", logging.Int(logging.FieldAttempt, attempt), logging.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("open capture file after %d attempts: %w", openRetries, lastErr)
}

func (in *Ingestor) maybeFlush(file *File) error {
	if in.opts.FlushInterval <= 0 || in.now().Sub(in.lastFlush) < in.opts.FlushInterval {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= flushRetries; attempt++ {
		if lastErr = file.Flush(); lastErr == nil {
			in.lastFlush = in.now()
			return nil
		}
		in.logger.Warn("flush failed", logging.Int(logging.FieldAttempt, attempt), logging.Error(lastErr))
		time.Sleep(retryDelay)
	}
	return fmt.Errorf("flush after %d attempts: %w", flushRetries, lastErr)
}

func (in *Ingestor) maybeLogStats(file *File) {
	if in.opts.StatsInterval <= 0 || in.now().Sub(in.lastStats) < in.opts.StatsInterval {
		return
	}
	in.logger.Info("capture stats",
		logging.String(logging.FieldHour, file.Hour().Key()),
		logging.Int64(logging.FieldBytes, file.Written()),
		logging.Int64("interval_bytes", in.statBytes))
	in.statBytes = 0
	in.lastStats = in.now()
}
