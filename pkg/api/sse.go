package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/elev8tion/agm-platform-sub001/pkg/notify"
)

// StreamJobEvents handles GET /v1/jobs/{id}/events as a Server-Sent
// Events stream. The first event is a snapshot of the job's current
// state; afterwards every hub event for the job is forwarded until the
// client disconnects or the job reaches a terminal status. There is no
// replay: events published before the subscription are gone.
func (h *JobHandler) StreamJobEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		writeSchedulerError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// The server-wide write timeout would sever a long-lived stream
	// mid-job; lift it for this connection only.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Warn("could not clear write deadline for event stream",
			"job_id", id, "error", err)
	}

	// Subscribe before the snapshot so no transition between the two is
	// lost.
	events := h.hub.Subscribe(id)
	defer h.hub.Unsubscribe(id, events)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snapshot := notify.Event{
		JobID:     job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Error:     job.LastError,
		Timestamp: time.Now(),
	}
	if err := writeSSE(w, snapshot); err != nil {
		return
	}
	flusher.Flush()

	if job.Status.Terminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
			if ev.Status.Terminal() {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
