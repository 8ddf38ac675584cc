// Package daemon coordinates capture and conversion and enforces
// single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"gnsstec/internal/config"
	"gnsstec/internal/logging"
	"gnsstec/internal/queue"
)

// ErrLockHeld signals that another gnsstec instance owns the data directory.
var ErrLockHeld = errors.New("another gnsstec instance is already running")

// Runner is a long-lived component driven by the daemon lifecycle.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Daemon owns the instance lock and supervises the capture and conversion
// runners.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store

	lockPath string
	lock     *flock.Flock

	ingest Runner
	worker Runner

	running     atomic.Bool
	runnerCount int
	cancel      context.CancelFunc
	done        chan error
	wg          sync.WaitGroup
}

// New constructs a daemon supervising the given runners. A nil worker yields
// a capture-only daemon: raw hours are still written and enqueued, conversion
// waits for a later run.
func New(cfg *config.Config, store *queue.Store, ingest, worker Runner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || ingest == nil {
		return nil, errors.New("daemon requires config, store, and a capture runner")
	}
	lockPath := cfg.LockFilePath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		ingest:   ingest,
		worker:   worker,
	}, nil
}

// Start acquires the instance lock and launches both runners. The first
// runner error is reported through Wait.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", d.lockPath, err)
	}
	if !ok {
		return fmt.Errorf("%w (lock file %s)", ErrLockHeld, d.lockPath)
	}

	d.runnerCount = 1
	if d.worker != nil {
		d.runnerCount = 2
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan error, d.runnerCount)

	d.wg.Add(d.runnerCount)
	go d.supervise(runCtx, "capture", d.ingest)
	if d.worker != nil {
		go d.supervise(runCtx, "conversion", d.worker)
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) supervise(ctx context.Context, name string, runner Runner) {
	defer d.wg.Done()
	if err := runner.Run(ctx); err != nil {
		d.logger.Error(name+" stopped", logging.Error(err))
		d.done <- fmt.Errorf("%s: %w", name, err)
		// A fatal component brings the whole daemon down.
		d.cancel()
		return
	}
	d.done <- nil
}

// Wait blocks until every runner has returned and reports the first error.
func (d *Daemon) Wait() error {
	if !d.running.Load() {
		return nil
	}
	var firstErr error
	for i := 0; i < d.runnerCount; i++ {
		if err := <-d.done; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.wg.Wait()
	return firstErr
}

// Stop cancels the runners and releases the lock once they exit.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the job store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// LockFilePath returns the instance lock path.
func (d *Daemon) LockFilePath() string { return d.lockPath }
