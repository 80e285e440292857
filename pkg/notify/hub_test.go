package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
)

func TestHub_PublishToSubscriber(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("job-1")

	hub.Publish("job-1", Event{Status: core.StatusRunning, Progress: 25})

	select {
	case ev := <-ch:
		assert.Equal(t, "job-1", ev.JobID)
		assert.Equal(t, core.StatusRunning, ev.Status)
		assert.Equal(t, float64(25), ev.Progress)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestHub_PublishWithoutSubscribersIsNoop(t *testing.T) {
	hub := NewHub()
	// Must not panic or block.
	hub.Publish("nobody-listening", Event{Status: core.StatusCompleted})
}

func TestHub_EventsDeliveredInOrder(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("job-1")

	statuses := []core.JobStatus{core.StatusQueued, core.StatusRunning, core.StatusCompleted}
	for _, st := range statuses {
		hub.Publish("job-1", Event{Status: st})
	}

	for _, want := range statuses {
		select {
		case ev := <-ch:
			assert.Equal(t, want, ev.Status)
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
}

func TestHub_RoomsAreIndependent(t *testing.T) {
	hub := NewHub()
	ch1 := hub.Subscribe("job-1")
	ch2 := hub.Subscribe("job-2")

	hub.Publish("job-1", Event{Status: core.StatusRunning})

	select {
	case ev := <-ch1:
		assert.Equal(t, "job-1", ev.JobID)
	case <-time.After(time.Second):
		t.Fatal("job-1 subscriber got nothing")
	}

	select {
	case <-ch2:
		t.Fatal("job-2 subscriber received job-1 event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("job-1")
	require.Equal(t, 1, hub.Subscribers("job-1"))

	hub.Unsubscribe("job-1", ch)
	assert.Equal(t, 0, hub.Subscribers("job-1"))

	hub.Publish("job-1", Event{Status: core.StatusCompleted})

	select {
	case <-ch:
		t.Fatal("event delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SlowSubscriberDoesNotStallPublisher(t *testing.T) {
	hub := NewHub(WithBuffer(1), WithSendTimeout(10*time.Millisecond))
	slow := hub.Subscribe("job-1")
	_ = slow // never read

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			hub.Publish("job-1", Event{Status: core.StatusRunning, Progress: float64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher stalled on slow subscriber")
	}
}

func TestHub_MultipleSubscribersOneRoom(t *testing.T) {
	hub := NewHub()
	ch1 := hub.Subscribe("job-1")
	ch2 := hub.Subscribe("job-1")

	hub.Publish("job-1", Event{Status: core.StatusRunning})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, core.StatusRunning, ev.Status)
		case <-time.After(time.Second):
			t.Fatal("subscriber missed event")
		}
	}
}
