// Package notify provides per-job publish/subscribe fan-out of job
// state changes.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
)

// Event is the payload delivered to subscribers on every job state
// change or progress update.
type Event struct {
	JobID     string          `json:"job_id"`
	Status    core.JobStatus  `json:"status"`
	Progress  float64         `json:"progress"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// room holds the subscribers interested in one job. Subscriber-set
// mutation locks only this room, never the whole hub.
type room struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// Hub fans job events out to per-job subscriber rooms. Delivery is
// best-effort: with no subscribers a publish is a no-op, and a slow
// subscriber is skipped after a bounded wait rather than stalling the
// publisher. There is no buffering or replay; late subscribers fetch
// current state separately.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room

	buffer      int
	sendTimeout time.Duration
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber channel buffer.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithSendTimeout bounds how long a publish waits on one slow
// subscriber before dropping the event for that subscriber.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.sendTimeout = d
	}
}

// NewHub creates a Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms:       make(map[string]*room),
		buffer:      16,
		sendTimeout: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers interest in one job's events and returns the
// delivery channel. Callers must Unsubscribe when done.
func (h *Hub) Subscribe(jobID string) <-chan Event {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	r, ok := h.rooms[jobID]
	if !ok {
		r = &room{subs: make(map[chan Event]struct{})}
		h.rooms[jobID] = r
	}
	h.mu.Unlock()

	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber channel created by Subscribe. The
// channel is not closed; callers stop reading before unsubscribing.
// A publish already in flight may still deliver one buffered event
// after Unsubscribe returns, so callers must not assume the channel
// goes quiet instantly.
func (h *Hub) Unsubscribe(jobID string, ch <-chan Event) {
	h.mu.Lock()
	r, ok := h.rooms[jobID]
	h.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	for sub := range r.subs {
		if sub == ch {
			delete(r.subs, sub)
			break
		}
	}
	empty := len(r.subs) == 0
	r.mu.Unlock()

	if empty {
		h.mu.Lock()
		// Re-check under the hub lock; a new Subscribe may have landed.
		r.mu.Lock()
		if len(r.subs) == 0 {
			delete(h.rooms, jobID)
		}
		r.mu.Unlock()
		h.mu.Unlock()
	}
}

// Publish delivers an event to every current subscriber of the job's
// room. Events for one job are delivered in publish order as long as
// the caller publishes them in transition order.
func (h *Hub) Publish(jobID string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.JobID = jobID

	h.mu.RLock()
	r, ok := h.rooms[jobID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	subs := make([]chan Event, 0, len(r.subs))
	for sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- ev:
		default:
			if h.sendTimeout <= 0 {
				continue
			}
			t := time.NewTimer(h.sendTimeout)
			select {
			case sub <- ev:
			case <-t.C:
			}
			t.Stop()
		}
	}
}

// Subscribers returns the number of current subscribers for a job.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	r, ok := h.rooms[jobID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
