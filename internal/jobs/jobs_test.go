package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/garnizeh/clinicmatch/internal/jobs"
	"github.com/garnizeh/clinicmatch/internal/models"
	"github.com/garnizeh/clinicmatch/internal/testutil"
	"github.com/garnizeh/clinicmatch/pkg/repository/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastOptions() jobs.Options {
	return jobs.Options{
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
		Backoff:      func(int) time.Duration { return 0 },
	}
}

func TestEnqueueAndProcess(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewStore(t)

	handled := make(chan string, 1)
	handlers := map[string]jobs.Handler{
		"test": func(ctx context.Context, j *models.BackgroundJob) error {
			handled <- string(j.Payload)
			return nil
		},
	}
	pool := jobs.NewWorkerPool(repo, handlers, nil, fastOptions())
	pool.Start(ctx)
	defer pool.Stop()

	id, err := pool.Enqueue(ctx, "test", map[string]string{"foo": "bar"}, 10, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case payload := <-handled:
		if payload != `{"foo":"bar"}` {
			t.Fatalf("unexpected payload: %s", payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, err := repo.GetJob(ctx, id)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if j != nil && j.Status == models.JobDone {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job was not marked done")
}

func TestShutdownMidJobRecordsRetry(t *testing.T) {
	repo := testutil.NewStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	handlers := map[string]jobs.Handler{
		"slow": func(ctx context.Context, j *models.BackgroundJob) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	pool := jobs.NewWorkerPool(repo, handlers, nil, fastOptions())
	pool.Start(ctx)

	id, err := pool.Enqueue(context.Background(), "slow", nil, 1, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}
	cancel()
	pool.Stop()

	j, err := repo.GetJob(context.Background(), id)
	if err != nil || j == nil {
		t.Fatalf("GetJob: %#v %v", j, err)
	}
	if j.Status != models.JobRetry || j.Attempts != 1 {
		t.Fatalf("interrupted job left as %s after %d attempts", j.Status, j.Attempts)
	}
}

func TestRetryThenDeadLetter(t *testing.T) {
	ctx := context.Background()
	repo := mock.New()

	calls := make(chan struct{}, 10)
	handlers := map[string]jobs.Handler{
		"flaky": func(ctx context.Context, j *models.BackgroundJob) error {
			calls <- struct{}{}
			return errors.New("still failing")
		},
	}
	pool := jobs.NewWorkerPool(repo, handlers, nil, fastOptions())
	pool.Start(ctx)

	if _, err := pool.Enqueue(ctx, "flaky", nil, 1, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for len(repo.DeadLetters()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	pool.Stop()

	dead := repo.DeadLetters()
	if len(dead) != 1 {
		t.Fatalf("expected one dead-lettered job, got %d", len(dead))
	}
	if dead[0].Attempts != 3 || dead[0].LastError != "still failing" {
		t.Fatalf("unexpected dead letter: %#v", dead[0])
	}
	if len(calls) != 3 {
		t.Fatalf("expected 3 handler calls, got %d", len(calls))
	}
}

func TestUnknownTypeAndPanic(t *testing.T) {
	ctx := context.Background()
	repo := mock.New()
	handlers := map[string]jobs.Handler{
		"panics": func(ctx context.Context, j *models.BackgroundJob) error { panic("bad job") },
	}
	pool := jobs.NewWorkerPool(repo, handlers, nil, fastOptions())
	pool.Start(ctx)

	pool.Enqueue(ctx, "unknown", nil, 1, 1)
	pool.Enqueue(ctx, "panics", nil, 2, 1)

	deadline := time.Now().Add(3 * time.Second)
	for len(repo.DeadLetters()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	pool.Stop()
	pool.Stop()

	dead := repo.DeadLetters()
	if len(dead) != 2 {
		t.Fatalf("expected both jobs dead-lettered, got %#v", dead)
	}
	for _, d := range dead {
		switch d.Type {
		case "unknown":
			if d.LastError != "no handler" {
				t.Fatalf("unexpected error for unknown type: %q", d.LastError)
			}
		case "panics":
			if d.LastError != "handler panic: bad job" {
				t.Fatalf("unexpected error for panic: %q", d.LastError)
			}
		}
	}
}

func TestBackoffDuration(t *testing.T) {
	cases := map[int]time.Duration{0: time.Second, 1: 2 * time.Second, 3: 8 * time.Second, 20: 5 * time.Minute}
	for attempt, want := range cases {
		if got := jobs.BackoffDuration(attempt); got != want {
			t.Fatalf("BackoffDuration(%d) = %v, want %v", attempt, got, want)
		}
	}
}
