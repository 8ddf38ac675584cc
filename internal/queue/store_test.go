package queue

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnqueueCreatesPendingJob(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, changed, err := store.Enqueue(ctx, "20260309_13", 1)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !changed {
		t.Fatal("first enqueue should change the queue")
	}
	if job.Status != StatusPending || job.HourKey != "20260309_13" || job.Attempts != 0 {
		t.Fatalf("job = %+v", job)
	}
}

func TestEnqueueIdempotentWhilePendingOrRunning(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, _, err := store.Enqueue(ctx, "20260309_13", 1)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	second, changed, err := store.Enqueue(ctx, "20260309_13", 1)
	if err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if changed || second.ID != first.ID {
		t.Fatalf("pending re-enqueue changed the queue: changed=%v id=%d", changed, second.ID)
	}

	if err := store.MarkRunning(ctx, first.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	third, changed, err := store.Enqueue(ctx, "20260309_13", 1)
	if err != nil {
		t.Fatalf("third Enqueue: %v", err)
	}
	if changed || third.Status != StatusRunning {
		t.Fatalf("running re-enqueue changed the queue: changed=%v status=%s", changed, third.Status)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want a single row per hour", len(jobs))
	}
}

func TestEnqueueRequeuesFinishedJob(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "20260309_13", 1)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.MarkRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "converter exit status 2"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	requeued, changed, err := store.Enqueue(ctx, "20260309_13", 1)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if !changed {
		t.Fatal("requeue of a failed job should change the queue")
	}
	if requeued.Status != StatusPending || requeued.ErrorMessage != "" {
		t.Fatalf("requeued = %+v", requeued)
	}
	if requeued.Attempts != 1 {
		t.Fatalf("attempts = %d, prior attempts must be preserved", requeued.Attempts)
	}
}

func TestNextPendingIsOldestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, hour := range []string{"20260309_11", "20260309_12", "20260309_13"} {
		if _, _, err := store.Enqueue(ctx, hour, 1); err != nil {
			t.Fatalf("Enqueue %s: %v", hour, err)
		}
	}

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if next == nil || next.HourKey != "20260309_11" {
		t.Fatalf("next = %+v, want oldest hour", next)
	}

	if err := store.MarkRunning(ctx, next.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	next, err = store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if next == nil || next.HourKey != "20260309_12" {
		t.Fatalf("next = %+v, want second-oldest hour", next)
	}
}

func TestLifecycleTimestampsAndAttempts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "20260309_13", 1)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.MarkRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	running, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if running.Status != StatusRunning || running.Attempts != 1 || running.StartedAt == nil {
		t.Fatalf("running = %+v", running)
	}

	if err := store.MarkSucceeded(ctx, job.ID); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}
	done, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if done.Status != StatusSucceeded || done.FinishedAt == nil {
		t.Fatalf("done = %+v", done)
	}
}

func TestResetStuckRunning(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "20260309_13", 1)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.MarkRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	reset, err := store.ResetStuckRunning(ctx)
	if err != nil {
		t.Fatalf("ResetStuckRunning: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset = %d, want 1", reset)
	}
	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusPending || got.StartedAt != nil {
		t.Fatalf("job after reset = %+v", got)
	}
}

func TestRetryFailed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "20260309_13", 1)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.MarkRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	retried, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d, want 1", retried)
	}
	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusPending || got.ErrorMessage != "" {
		t.Fatalf("job after retry = %+v", got)
	}
}

func TestHealthCounts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a, _, _ := store.Enqueue(ctx, "20260309_11", 1)
	b, _, _ := store.Enqueue(ctx, "20260309_12", 1)
	if _, _, err := store.Enqueue(ctx, "20260309_13", 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	store.MarkRunning(ctx, a.ID)
	store.MarkSucceeded(ctx, a.ID)
	store.MarkRunning(ctx, b.ID)
	store.MarkFailed(ctx, b.ID, "boom")

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	want := HealthSummary{Total: 3, Pending: 1, Succeeded: 1, Failed: 1}
	if health != want {
		t.Fatalf("health = %+v, want %+v", health, want)
	}
}

func TestJobsSurviveReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := store.Enqueue(ctx, "20260309_13", 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	job, err := reopened.GetByHour(ctx, "20260309_13")
	if err != nil {
		t.Fatalf("GetByHour: %v", err)
	}
	if job == nil || job.Status != StatusPending {
		t.Fatalf("job = %+v", job)
	}
}
