package progress

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
	"github.com/elev8tion/agm-platform-sub001/pkg/notify"
	"github.com/elev8tion/agm-platform-sub001/pkg/storage"
)

// claimTestJob creates and claims one running job so the tracker has a
// valid owner to write against.
func claimTestJob(t *testing.T) (core.Store, *core.Job) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s/progress_test_%d_%d.db?_busy_timeout=5000",
		t.TempDir(), os.Getpid(), time.Now().UnixNano())
	store, err := storage.Open("sqlite", dsn)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	job := &core.Job{Kind: "tracked", Status: core.StatusQueued, Priority: core.DefaultPriority}
	require.NoError(t, store.Create(ctx, job))
	claimed, err := store.Claim(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)
	return store, claimed
}

func TestTracker_SetPersistsAndPublishes(t *testing.T) {
	store, job := claimTestJob(t)
	hub := notify.NewHub()
	events := hub.Subscribe(job.ID)
	defer hub.Unsubscribe(job.ID, events)

	tr := NewTracker(store, hub, job.ID, "w1")
	tr.Set(context.Background(), 40, "halfway to halfway")

	assert.Equal(t, float64(40), tr.Current())

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(40), got.Progress)

	select {
	case ev := <-events:
		assert.Equal(t, core.StatusRunning, ev.Status)
		assert.Equal(t, float64(40), ev.Progress)
		assert.Equal(t, "halfway to halfway", ev.Message)
	case <-time.After(time.Second):
		t.Fatal("no progress event")
	}
}

func TestTracker_OutOfRangeIgnored(t *testing.T) {
	store, job := claimTestJob(t)
	tr := NewTracker(store, nil, job.ID, "w1")
	ctx := context.Background()

	tr.Set(ctx, 30, "")
	tr.Set(ctx, -5, "")
	tr.Set(ctx, 150, "")

	assert.Equal(t, float64(30), tr.Current())
	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(30), got.Progress)
}

func TestTracker_WrongOwnerTolerated(t *testing.T) {
	store, job := claimTestJob(t)
	tr := NewTracker(store, nil, job.ID, "imposter")

	// The write is refused by the store but the handler keeps running.
	tr.Set(context.Background(), 50, "")

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(0), got.Progress)
}

func TestTracker_IncrementCapsAtHundred(t *testing.T) {
	store, job := claimTestJob(t)
	tr := NewTracker(store, nil, job.ID, "w1")
	ctx := context.Background()

	tr.Increment(ctx, 60, "")
	tr.Increment(ctx, 60, "")

	assert.Equal(t, float64(100), tr.Current())
}

func TestTracker_StageFormatsMessage(t *testing.T) {
	store, job := claimTestJob(t)
	hub := notify.NewHub()
	events := hub.Subscribe(job.ID)
	defer hub.Unsubscribe(job.ID, events)

	tr := NewTracker(store, hub, job.ID, "w1")
	tr.Stage(context.Background(), "Drafting", 60)

	select {
	case ev := <-events:
		assert.Equal(t, "Stage: Drafting", ev.Message)
		assert.Equal(t, float64(60), ev.Progress)
	case <-time.After(time.Second):
		t.Fatal("no stage event")
	}
}
