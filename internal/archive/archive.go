// Package archive places finished RINEX products into the date-keyed
// archive tree.
//
// Placement for one hour is all-or-nothing: if any product fails to move or
// fails its post-move check, everything already placed for that hour is
// rolled back and the raw capture files stay where they are.
package archive

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"gnsstec/internal/bucket"
	"gnsstec/internal/fileutil"
	"gnsstec/internal/logging"
)

// Options controls raw file treatment after a successful placement.
type Options struct {
	Root             string
	KeepRaw          bool
	CompressRetained bool
}

// Archiver moves conversion products into <root>/<year>/<doy>/ and cleans
// up the hour's raw files.
type Archiver struct {
	opts   Options
	logger *slog.Logger
}

// New builds an archiver rooted at opts.Root.
func New(opts Options, logger *slog.Logger) *Archiver {
	return &Archiver{opts: opts, logger: logging.NewComponentLogger(logger, "archive")}
}

// Place moves every product of an hour into the archive. On any failure the
// products placed so far are removed again and rawFiles are left untouched.
// On success raw files are deleted, or retained (optionally gzipped) per the
// options.
func (a *Archiver) Place(hour bucket.Hour, products, rawFiles []string) error {
	if len(products) == 0 {
		return fmt.Errorf("no products to archive for hour %s", hour.Key())
	}

	destDir := hour.ArchiveDir(a.opts.Root)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create archive directory %s: %w", destDir, err)
	}

	placed := make([]string, 0, len(products))
	for _, product := range products {
		dst, err := fileutil.MoveFile(product, destDir)
		if err == nil && !fileutil.NonEmptyFile(dst) {
			err = fmt.Errorf("archived product %s failed verification", dst)
		}
		if err != nil {
			a.rollback(placed)
			return fmt.Errorf("archive hour %s: %w", hour.Key(), err)
		}
		placed = append(placed, dst)
	}

	a.logger.Info("hour archived",
		logging.String(logging.FieldHour, hour.Key()),
		logging.String(logging.FieldPath, destDir),
		logging.Int("products", len(placed)))

	return a.cleanupRaws(hour, rawFiles)
}

// rollback removes already placed products so a partial hour never remains
// in the archive.
func (a *Archiver) rollback(placed []string) {
	for _, path := range placed {
		if err := fileutil.RemoveIfExists(path); err != nil {
			a.logger.Error("rollback failed", logging.String(logging.FieldPath, path), logging.Error(err))
		}
	}
}

func (a *Archiver) cleanupRaws(hour bucket.Hour, rawFiles []string) error {
	if a.opts.KeepRaw {
		if !a.opts.CompressRetained {
			return nil
		}
		for _, raw := range rawFiles {
			if err := compressInPlace(raw); err != nil {
				return fmt.Errorf("compress retained raw for hour %s: %w", hour.Key(), err)
			}
		}
		return nil
	}

	for _, raw := range rawFiles {
		if err := fileutil.RemoveIfExists(raw); err != nil {
			return fmt.Errorf("remove raw for hour %s: %w", hour.Key(), err)
		}
	}
	return nil
}

// compressInPlace replaces path with path.gz. The original is removed only
// after the compressed copy is fully written.
func compressInPlace(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	gzPath := path + ".gz"
	out, err := os.Create(gzPath)
	if err != nil {
		return err
	}

	gz, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		_ = os.Remove(gzPath)
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		_ = os.Remove(gzPath)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(gzPath)
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s after compression: %w", filepath.Base(path), err)
	}
	return nil
}
