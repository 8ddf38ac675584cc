// Package worker drains the conversion queue in the background.
//
// One job at a time: list the hour's raw files, run the converter into a
// throwaway workspace, validate the products, archive them, and record the
// outcome. A catch-up scan at startup enqueues closed hours whose raw files
// are still sitting in the data directory.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"gnsstec/internal/archive"
	"gnsstec/internal/bucket"
	"gnsstec/internal/convert"
	"gnsstec/internal/logging"
	"gnsstec/internal/queue"
)

// Options configures the conversion worker.
type Options struct {
	DataDir        string
	WorkspaceRoot  string
	PollInterval   time.Duration
	ShiftHours     int
	MaxDaysBack    int
	ConvertOnStart bool
	SkipNav        bool
}

// Worker processes conversion jobs. Exactly one of primary/fallback drives
// each job: primary handles the full product set, fallback only extracts
// navigation data when the primary converter is missing.
type Worker struct {
	store    *queue.Store
	primary  convert.Converter
	fallback convert.Converter
	archiver *archive.Archiver
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// Resolve probes converter availability once at startup. A working primary
// wins outright. Without it, an available fallback yields a degraded worker
// that still archives navigation data; with neither, startup must abort.
func Resolve(ctx context.Context, primary, fallback convert.Converter, logger *slog.Logger) (convert.Converter, convert.Converter, error) {
	primaryErr := primary.Available(ctx)
	if primaryErr == nil {
		return primary, nil, nil
	}

	if fallback != nil {
		if fallbackErr := fallback.Available(ctx); fallbackErr == nil {
			logger.Warn("primary converter unavailable, running degraded",
				logging.String("primary", primary.Name()),
				logging.String("fallback", fallback.Name()),
				logging.Error(primaryErr))
			return nil, fallback, nil
		}
	}
	return nil, nil, fmt.Errorf("no converter available: %w", primaryErr)
}

// New builds a worker from resolved converters. primary may be nil for
// degraded operation as long as fallback is set.
func New(store *queue.Store, primary, fallback convert.Converter, archiver *archive.Archiver, opts Options, logger *slog.Logger) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	return &Worker{
		store:    store,
		primary:  primary,
		fallback: fallback,
		archiver: archiver,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "worker"),
		now:      time.Now,
	}
}

// Run drains the queue until ctx is cancelled. A job already underway is
// finished before returning; no new job starts after cancellation. Errors
// caused by the cancellation itself are not failures.
func (w *Worker) Run(ctx context.Context) error {
	if reset, err := w.store.ResetStuckRunning(ctx); err != nil {
		return ignoreCanceled(fmt.Errorf("reset stuck jobs: %w", err))
	} else if reset > 0 {
		w.logger.Info("reset interrupted jobs", logging.Int64("jobs", reset))
	}

	if w.opts.ConvertOnStart {
		if _, err := w.CatchUp(ctx); err != nil {
			return ignoreCanceled(err)
		}
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		for {
			processed, err := w.processNext(ctx)
			if err != nil {
				return ignoreCanceled(err)
			}
			if !processed || ctx.Err() != nil {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ignoreCanceled maps errors that only report our own shutdown to nil.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Drain processes pending jobs until the queue is empty, returning the
// number of jobs taken. One-shot conversion runs use this instead of Run.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	processed := 0
	for {
		if ctx.Err() != nil {
			return processed, ignoreCanceled(ctx.Err())
		}
		taken, err := w.processNext(ctx)
		if err != nil {
			return processed, ignoreCanceled(err)
		}
		if !taken {
			return processed, nil
		}
		processed++
	}
}

// CatchUp walks recent closed hours and enqueues any with raw files left in
// the data directory. Hours whose jobs already succeeded are skipped, so
// retained raws are not converted twice.
func (w *Worker) CatchUp(ctx context.Context) (int, error) {
	if w.opts.MaxDaysBack <= 0 {
		return 0, fmt.Errorf("max_days_back must be greater than zero")
	}

	now := w.now()
	current := bucket.Of(now)
	anchor := bucket.Of(now.Add(-time.Duration(w.opts.ShiftHours) * time.Hour))
	totalHours := w.opts.MaxDaysBack * 24

	enqueued := 0
	for offset := 0; offset < totalHours; offset++ {
		hour := bucket.Of(anchor.Start().Add(-time.Duration(offset) * time.Hour))
		if !hour.Before(current) {
			continue
		}

		sources, err := w.listHourRawFiles(hour)
		if err != nil {
			return enqueued, err
		}
		if len(sources) == 0 {
			continue
		}

		job, err := w.store.GetByHour(ctx, hour.Key())
		if err != nil {
			return enqueued, err
		}
		if job != nil && job.Status == queue.StatusSucceeded {
			continue
		}

		if _, changed, err := w.store.Enqueue(ctx, hour.Key(), len(sources)); err != nil {
			return enqueued, err
		} else if changed {
			enqueued++
			w.logger.Info("catch-up enqueued hour",
				logging.String(logging.FieldHour, hour.Key()),
				logging.Int("sources", len(sources)))
		}
	}
	return enqueued, nil
}

// Enqueue records a rotation-closed hour for conversion.
func (w *Worker) Enqueue(ctx context.Context, hour bucket.Hour) error {
	sources, err := w.listHourRawFiles(hour)
	if err != nil {
		return err
	}
	_, _, err = w.store.Enqueue(ctx, hour.Key(), len(sources))
	return err
}

// processNext converts the oldest pending job. The first return value
// reports whether a job was taken.
func (w *Worker) processNext(ctx context.Context) (bool, error) {
	job, err := w.store.NextPending(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	if err := w.store.MarkRunning(ctx, job.ID); err != nil {
		return false, err
	}

	// A job in flight runs to completion even during shutdown.
	jobCtx := context.WithoutCancel(ctx)
	if convErr := w.runJob(jobCtx, job); convErr != nil {
		w.logger.Error("conversion failed",
			logging.String(logging.FieldHour, job.HourKey),
			logging.Int(logging.FieldAttempt, job.Attempts+1),
			logging.Error(convErr))
		if err := w.store.MarkFailed(jobCtx, job.ID, convErr.Error()); err != nil {
			return true, err
		}
		return true, nil
	}

	if err := w.store.MarkSucceeded(jobCtx, job.ID); err != nil {
		return true, err
	}
	w.logger.Info("hour converted", logging.String(logging.FieldHour, job.HourKey))
	return true, nil
}

func (w *Worker) runJob(ctx context.Context, job *queue.Job) error {
	hour, err := bucket.FromKey(job.HourKey)
	if err != nil {
		return err
	}

	sources, err := w.listHourRawFiles(hour)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no raw files remain for hour %s", hour.Key())
	}

	workspace, err := w.createWorkspace(hour)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			w.logger.Warn("workspace cleanup failed", logging.String(logging.FieldPath, workspace), logging.Error(err))
		}
	}()

	req := convert.Request{SourceFiles: sources, OutputDir: workspace}

	if w.primary != nil {
		if err := w.primary.Convert(ctx, req); err != nil {
			return err
		}
		products, err := convert.CollectProducts(workspace)
		if err != nil {
			return err
		}
		if err := convert.ValidateProducts(products, w.opts.SkipNav); err != nil {
			return err
		}
		return w.archiver.Place(hour, products, sources)
	}

	// Degraded: navigation only. Raw files stay for a later full conversion,
	// and the job is recorded as failed because observations are missing.
	if err := w.fallback.Convert(ctx, req); err != nil {
		return err
	}
	products, err := convert.CollectProducts(workspace)
	if err != nil {
		return err
	}
	if err := convert.ValidateNavProducts(products); err != nil {
		return err
	}
	if err := w.archiver.Place(hour, products, nil); err != nil {
		return err
	}
	return fmt.Errorf("observation converter unavailable; navigation archived via %s", w.fallback.Name())
}

func (w *Worker) createWorkspace(hour bucket.Hour) (string, error) {
	path := filepath.Join(w.opts.WorkspaceRoot, hour.Key()+"-"+uuid.NewString())
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create conversion workspace %s: %w", path, err)
	}
	return path, nil
}

// listHourRawFiles returns the hour's capture files in the data directory,
// sorted by name (chronological, given the timestamped naming).
func (w *Worker) listHourRawFiles(hour bucket.Hour) ([]string, error) {
	entries, err := os.ReadDir(w.opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("read data directory %s: %w", w.opts.DataDir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if hour.MatchesCapture(entry.Name()) {
			files = append(files, filepath.Join(w.opts.DataDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
