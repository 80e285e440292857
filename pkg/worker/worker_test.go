package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
	"github.com/elev8tion/agm-platform-sub001/pkg/handler"
	"github.com/elev8tion/agm-platform-sub001/pkg/notify"
	"github.com/elev8tion/agm-platform-sub001/pkg/progress"
	"github.com/elev8tion/agm-platform-sub001/pkg/sched"
	"github.com/elev8tion/agm-platform-sub001/pkg/schedule"
	"github.com/elev8tion/agm-platform-sub001/pkg/storage"
)

type testEnv struct {
	store    core.Store
	sched    *sched.Scheduler
	hub      *notify.Hub
	registry *handler.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s/worker_test_%d_%d.db?_busy_timeout=5000",
		t.TempDir(), os.Getpid(), time.Now().UnixNano())
	store, err := storage.Open("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	hub := notify.NewHub()
	cfg := sched.DefaultConfig()
	cfg.RetryBaseDelay = 10 * time.Millisecond

	return &testEnv{
		store:    store,
		sched:    sched.New(store, hub, cfg),
		hub:      hub,
		registry: handler.NewRegistry(),
	}
}

// startWorker runs a pool with short intervals and stops it at test end.
func (e *testEnv) startWorker(t *testing.T, opts ...Option) *Worker {
	t.Helper()

	base := []Option{
		Concurrency(2),
		PollInterval(10 * time.Millisecond),
		HeartbeatInterval(20 * time.Millisecond),
		MaintenanceInterval(20 * time.Millisecond),
	}
	w := New(e.sched, e.registry, e.hub, append(base, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("worker did not stop")
		}
	})
	return w
}

func (e *testEnv) waitForStatus(t *testing.T, jobID string, want core.JobStatus) *core.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := e.store.Get(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := e.store.Get(context.Background(), jobID)
	t.Fatalf("job %s never reached %s, last status %s", jobID, want, job.Status)
	return nil
}

func TestWorker_ProcessesJob(t *testing.T) {
	env := newTestEnv(t)
	env.registry.MustRegister("echo", handler.Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		return map[string]any{"echo": params["msg"]}, nil
	}))
	env.startWorker(t)

	id, err := env.sched.Enqueue(context.Background(), "echo", map[string]any{"msg": "hi"})
	require.NoError(t, err)

	job := env.waitForStatus(t, id, core.StatusCompleted)
	assert.Equal(t, float64(100), job.Progress)
	assert.Contains(t, string(job.Result), "hi")
	assert.NotNil(t, job.CompletedAt)
	assert.Greater(t, job.ExecutionSeconds, float64(0))
}

func TestWorker_RetriesUntilDead(t *testing.T) {
	env := newTestEnv(t)
	var attempts atomic.Int32
	env.registry.MustRegister("flaky", handler.Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		attempts.Add(1)
		return nil, errors.New("transient failure")
	}))
	env.startWorker(t)

	id, err := env.sched.Enqueue(context.Background(), "flaky", nil, sched.MaxRetries(2))
	require.NoError(t, err)

	job := env.waitForStatus(t, id, core.StatusDead)
	assert.Equal(t, 2, job.RetryCount)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Contains(t, job.LastError, "transient failure")
}

func TestWorker_RecoversAfterRetry(t *testing.T) {
	env := newTestEnv(t)
	var attempts atomic.Int32
	env.registry.MustRegister("flaky", handler.Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		if attempts.Add(1) < 2 {
			return nil, errors.New("not yet")
		}
		return map[string]any{"ok": true}, nil
	}))
	env.startWorker(t)

	id, err := env.sched.Enqueue(context.Background(), "flaky", nil, sched.MaxRetries(3))
	require.NoError(t, err)

	job := env.waitForStatus(t, id, core.StatusCompleted)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestWorker_NoRetryGoesStraightToDead(t *testing.T) {
	env := newTestEnv(t)
	var attempts atomic.Int32
	env.registry.MustRegister("fatal", handler.Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		attempts.Add(1)
		return nil, core.NoRetry(errors.New("bad input"))
	}))
	env.startWorker(t)

	id, err := env.sched.Enqueue(context.Background(), "fatal", nil, sched.MaxRetries(5))
	require.NoError(t, err)

	job := env.waitForStatus(t, id, core.StatusDead)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Contains(t, job.LastError, "bad input")
}

func TestWorker_UnknownKindGoesDead(t *testing.T) {
	env := newTestEnv(t)
	env.startWorker(t)

	id, err := env.sched.Enqueue(context.Background(), "nobody.home", nil)
	require.NoError(t, err)

	job := env.waitForStatus(t, id, core.StatusDead)
	assert.Contains(t, job.LastError, "nobody.home")
}

func TestWorker_PanicIsContained(t *testing.T) {
	env := newTestEnv(t)
	env.registry.MustRegister("boom", handler.Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		panic("kaboom")
	}))
	env.registry.MustRegister("echo", handler.Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		return nil, nil
	}))
	env.startWorker(t)

	boomID, err := env.sched.Enqueue(context.Background(), "boom", nil, sched.MaxRetries(1))
	require.NoError(t, err)
	job := env.waitForStatus(t, boomID, core.StatusDead)
	assert.Contains(t, job.LastError, "panic")

	// Pool must still be alive after the panic.
	echoID, err := env.sched.Enqueue(context.Background(), "echo", nil)
	require.NoError(t, err)
	env.waitForStatus(t, echoID, core.StatusCompleted)
}

func TestWorker_DependencyChain(t *testing.T) {
	env := newTestEnv(t)
	order := make(chan string, 2)
	env.registry.MustRegister("step", handler.Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		order <- params["name"].(string)
		return nil, nil
	}))
	env.startWorker(t)

	first, err := env.sched.Enqueue(context.Background(), "step", map[string]any{"name": "first"})
	require.NoError(t, err)
	second, err := env.sched.Enqueue(context.Background(), "step", map[string]any{"name": "second"},
		sched.DependsOn(first), sched.Priority(core.MaxPriority))
	require.NoError(t, err)

	env.waitForStatus(t, second, core.StatusCompleted)
	assert.Equal(t, "first", <-order)
	assert.Equal(t, "second", <-order)
}

func TestWorker_ProgressEventsInOrder(t *testing.T) {
	env := newTestEnv(t)
	env.registry.MustRegister("staged", handler.Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		tracker.Set(ctx, 25, "research")
		tracker.Set(ctx, 75, "drafting")
		return map[string]any{"done": true}, nil
	}))

	id, err := env.sched.Enqueue(context.Background(), "staged", nil)
	require.NoError(t, err)
	events := env.hub.Subscribe(id)
	defer env.hub.Unsubscribe(id, events)

	env.startWorker(t)
	env.waitForStatus(t, id, core.StatusCompleted)

	var progressSeen []float64
	deadline := time.After(2 * time.Second)
collect:
	for {
		select {
		case ev := <-events:
			progressSeen = append(progressSeen, ev.Progress)
			if ev.Status == core.StatusCompleted {
				break collect
			}
		case <-deadline:
			t.Fatal("did not observe completion event")
		}
	}
	assert.IsNonDecreasing(t, progressSeen)
	assert.Equal(t, float64(100), progressSeen[len(progressSeen)-1])
}

func TestWorker_PendingPromotedWhenDue(t *testing.T) {
	env := newTestEnv(t)
	env.registry.MustRegister("later", handler.Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		return nil, nil
	}))
	env.startWorker(t)

	id, err := env.sched.Enqueue(context.Background(), "later", nil,
		sched.Delay(50*time.Millisecond))
	require.NoError(t, err)

	job, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, job.Status)

	env.waitForStatus(t, id, core.StatusCompleted)
}

func TestWorker_ReclaimsStaleJobs(t *testing.T) {
	env := newTestEnv(t)

	// Simulate a crashed worker by claiming directly, without a pool to
	// heartbeat for it.
	id, err := env.sched.Enqueue(context.Background(), "stale.kind", nil)
	require.NoError(t, err)
	claimed, err := env.store.Claim(context.Background(), "dead-worker")
	require.NoError(t, err)
	require.Equal(t, id, claimed.ID)

	env.registry.MustRegister("stale.kind", handler.Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		return nil, nil
	}))
	env.startWorker(t, HeartbeatTimeout(50*time.Millisecond))

	job := env.waitForStatus(t, id, core.StatusCompleted)
	assert.Equal(t, 0, job.RetryCount)
}

func TestWorker_RecurringEnqueues(t *testing.T) {
	env := newTestEnv(t)
	env.registry.MustRegister("tick", handler.Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		return nil, nil
	}))
	env.sched.RegisterRecurring("ticker", "tick", schedule.Every(200*time.Millisecond), nil)
	env.startWorker(t, EnableRecurring())

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		jobs, _, err := env.sched.List(context.Background(), core.JobFilter{Kind: "tick"})
		require.NoError(t, err)
		if len(jobs) >= 1 {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("recurring job never enqueued")
}
