package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gnsstec/internal/archive"
	"gnsstec/internal/bucket"
	"gnsstec/internal/convert"
	"gnsstec/internal/logging"
	"gnsstec/internal/queue"
)

type fakeConverter struct {
	name         string
	availableErr error
	convertErr   error
	products     map[string]string
	calls        int
}

func (f *fakeConverter) Name() string { return f.name }

func (f *fakeConverter) Available(context.Context) error { return f.availableErr }

func (f *fakeConverter) Convert(_ context.Context, req convert.Request) error {
	f.calls++
	if f.convertErr != nil {
		return f.convertErr
	}
	for name, content := range f.products {
		if err := os.WriteFile(filepath.Join(req.OutputDir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fixture struct {
	worker     *Worker
	store      *queue.Store
	dataDir    string
	archiveDir string
}

func newFixture(t *testing.T, primary, fallback convert.Converter) *fixture {
	t.Helper()
	dataDir := t.TempDir()
	archiveDir := t.TempDir()

	store, err := queue.Open(filepath.Join(dataDir, "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	archiver := archive.New(archive.Options{Root: archiveDir}, logging.NewNop())
	w := New(store, primary, fallback, archiver, Options{
		DataDir:       dataDir,
		WorkspaceRoot: filepath.Join(dataDir, ".convert-work"),
		ShiftHours:    1,
		MaxDaysBack:   3,
	}, logging.NewNop())

	return &fixture{worker: w, store: store, dataDir: dataDir, archiveDir: archiveDir}
}

func (f *fixture) writeRaw(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.dataDir, name)
	if err := os.WriteFile(path, []byte("ubx"), 0o644); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	return path
}

var hour13 = bucket.Of(time.Date(2026, 3, 9, 13, 0, 0, 0, time.UTC))

func TestProcessNextConvertsAndArchives(t *testing.T) {
	primary := &fakeConverter{
		name: "ubx2rinex",
		products: map[string]string{
			"NJIT00USA_R_20260680000_01H_01S_MO.crx.gz": "obs",
			"NJIT00USA_R_20260680000_01H_MN.rnx.gz":     "nav",
		},
	}
	f := newFixture(t, primary, nil)
	ctx := context.Background()
	raw := f.writeRaw(t, "20260309_130000.ubx")

	if _, _, err := f.store.Enqueue(ctx, hour13.Key(), 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	processed, err := f.worker.processNext(ctx)
	if err != nil {
		t.Fatalf("processNext: %v", err)
	}
	if !processed {
		t.Fatal("no job processed")
	}

	job, err := f.store.GetByHour(ctx, hour13.Key())
	if err != nil {
		t.Fatalf("GetByHour: %v", err)
	}
	if job.Status != queue.StatusSucceeded {
		t.Fatalf("job = %+v", job)
	}

	destDir := filepath.Join(f.archiveDir, "2026", "068")
	entries, err := os.ReadDir(destDir)
	if err != nil || len(entries) != 2 {
		t.Fatalf("archive dir entries = %v, err = %v", entries, err)
	}
	if _, err := os.Stat(raw); !os.IsNotExist(err) {
		t.Fatal("raw file not cleaned up")
	}
	// Workspace is removed on every path.
	workEntries, err := os.ReadDir(filepath.Join(f.dataDir, ".convert-work"))
	if err == nil && len(workEntries) != 0 {
		t.Fatalf("workspace left behind: %v", workEntries)
	}
}

func TestProcessNextMarksFailureAndKeepsRaws(t *testing.T) {
	primary := &fakeConverter{name: "ubx2rinex", convertErr: errors.New("exit status 2")}
	f := newFixture(t, primary, nil)
	ctx := context.Background()
	raw := f.writeRaw(t, "20260309_130000.ubx")

	if _, _, err := f.store.Enqueue(ctx, hour13.Key(), 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := f.worker.processNext(ctx); err != nil {
		t.Fatalf("processNext: %v", err)
	}

	job, err := f.store.GetByHour(ctx, hour13.Key())
	if err != nil {
		t.Fatalf("GetByHour: %v", err)
	}
	if job.Status != queue.StatusFailed || !strings.Contains(job.ErrorMessage, "exit status 2") {
		t.Fatalf("job = %+v", job)
	}
	if job.Attempts != 1 {
		t.Fatalf("attempts = %d", job.Attempts)
	}
	if _, err := os.Stat(raw); err != nil {
		t.Fatalf("raw file lost on failure: %v", err)
	}
}

func TestProcessNextMissingProductFailsJob(t *testing.T) {
	// Converter "succeeds" but emits no navigation product.
	primary := &fakeConverter{
		name:     "ubx2rinex",
		products: map[string]string{"a_MO.crx.gz": "obs"},
	}
	f := newFixture(t, primary, nil)
	ctx := context.Background()
	f.writeRaw(t, "20260309_130000.ubx")

	if _, _, err := f.store.Enqueue(ctx, hour13.Key(), 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := f.worker.processNext(ctx); err != nil {
		t.Fatalf("processNext: %v", err)
	}

	job, _ := f.store.GetByHour(ctx, hour13.Key())
	if job.Status != queue.StatusFailed || !strings.Contains(job.ErrorMessage, "navigation") {
		t.Fatalf("job = %+v", job)
	}
}

func TestDegradedWorkerArchivesNavAndFailsJob(t *testing.T) {
	// convbin names its outputs <input>.nav, <input>.gnav and so on.
	fallback := &fakeConverter{
		name:     "convbin",
		products: map[string]string{"20260309_130000.nav": "gps nav"},
	}
	f := newFixture(t, nil, fallback)
	ctx := context.Background()
	raw := f.writeRaw(t, "20260309_130000.ubx")

	if _, _, err := f.store.Enqueue(ctx, hour13.Key(), 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := f.worker.processNext(ctx); err != nil {
		t.Fatalf("processNext: %v", err)
	}

	job, _ := f.store.GetByHour(ctx, hour13.Key())
	if job.Status != queue.StatusFailed || !strings.Contains(job.ErrorMessage, "observation converter unavailable") {
		t.Fatalf("job = %+v", job)
	}
	// Navigation product reached the archive; raws stay for a full retry.
	entries, err := os.ReadDir(filepath.Join(f.archiveDir, "2026", "068"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("archive entries = %v, err = %v", entries, err)
	}
	if _, err := os.Stat(raw); err != nil {
		t.Fatalf("raw file lost in degraded mode: %v", err)
	}
}

func TestCatchUpSkipsOpenCurrentAndSucceededHours(t *testing.T) {
	f := newFixture(t, &fakeConverter{name: "ubx2rinex"}, nil)
	ctx := context.Background()

	now := time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)
	f.worker.now = func() time.Time { return now }

	f.writeRaw(t, "20260309_141000.ubx") // current hour, must not be enqueued
	f.writeRaw(t, "20260309_130000.ubx") // closed, unconverted
	f.writeRaw(t, "20260309_120000.ubx") // closed, already succeeded

	done, _, err := f.store.Enqueue(ctx, "20260309_12", 1)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	f.store.MarkRunning(ctx, done.ID)
	f.store.MarkSucceeded(ctx, done.ID)

	enqueued, err := f.worker.CatchUp(ctx)
	if err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if enqueued != 1 {
		t.Fatalf("enqueued = %d, want 1", enqueued)
	}

	pending, err := f.store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 || pending[0].HourKey != "20260309_13" {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestCatchUpRespectsWindow(t *testing.T) {
	f := newFixture(t, &fakeConverter{name: "ubx2rinex"}, nil)
	ctx := context.Background()

	now := time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)
	f.worker.now = func() time.Time { return now }

	f.writeRaw(t, "20260309_130000.ubx") // inside window
	f.writeRaw(t, "20260301_100000.ubx") // older than max_days_back

	enqueued, err := f.worker.CatchUp(ctx)
	if err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if enqueued != 1 {
		t.Fatalf("enqueued = %d, want 1", enqueued)
	}
	if job, _ := f.store.GetByHour(ctx, "20260301_10"); job != nil {
		t.Fatalf("out-of-window hour enqueued: %+v", job)
	}
}

func TestRunReturnsCleanlyWhenCancelled(t *testing.T) {
	f := newFixture(t, &fakeConverter{name: "ubx2rinex"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.worker.Run(ctx); err != nil {
		t.Fatalf("Run after cancellation = %v, want nil", err)
	}
	processed, err := f.worker.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain after cancellation = %v, want nil", err)
	}
	if processed != 0 {
		t.Fatalf("processed = %d, want 0", processed)
	}
}

func TestResolvePrefersPrimary(t *testing.T) {
	primary := &fakeConverter{name: "ubx2rinex"}
	fallback := &fakeConverter{name: "convbin"}

	p, fb, err := Resolve(context.Background(), primary, fallback, logging.NewNop())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p != primary || fb != nil {
		t.Fatalf("resolved = %v %v", p, fb)
	}
}

func TestResolveDegradesToFallback(t *testing.T) {
	primary := &fakeConverter{name: "ubx2rinex", availableErr: convert.ErrConverterUnavailable}
	fallback := &fakeConverter{name: "convbin"}

	p, fb, err := Resolve(context.Background(), primary, fallback, logging.NewNop())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p != nil || fb != fallback {
		t.Fatalf("resolved = %v %v", p, fb)
	}
}

func TestResolveFailsWithoutAnyConverter(t *testing.T) {
	primary := &fakeConverter{name: "ubx2rinex", availableErr: convert.ErrConverterUnavailable}
	fallback := &fakeConverter{name: "convbin", availableErr: convert.ErrConverterUnavailable}

	if _, _, err := Resolve(context.Background(), primary, fallback, logging.NewNop()); !errors.Is(err, convert.ErrConverterUnavailable) {
		t.Fatalf("err = %v, want ErrConverterUnavailable", err)
	}
}
