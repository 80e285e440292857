// Package api exposes the scheduler over HTTP: job submission, status,
// listing, cancellation, requeue, queue stats, and a per-job SSE event
// stream fed by the notification hub.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
	"github.com/elev8tion/agm-platform-sub001/pkg/notify"
	"github.com/elev8tion/agm-platform-sub001/pkg/sched"
)

// JobHandler handles job-related HTTP requests.
type JobHandler struct {
	scheduler *sched.Scheduler
	hub       *notify.Hub
	logger    *slog.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(s *sched.Scheduler, hub *notify.Hub) *JobHandler {
	return &JobHandler{
		scheduler: s,
		hub:       hub,
		logger:    slog.Default(),
	}
}

// SetupRoutes configures all API routes.
func SetupRoutes(r *mux.Router, s *sched.Scheduler, hub *notify.Hub) {
	h := NewJobHandler(s, hub)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/jobs", h.SubmitJob).Methods("POST")
	api.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/cancel", h.CancelJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/requeue", h.RequeueJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/events", h.StreamJobEvents).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
}

// SubmitJobRequest represents the request to submit a job.
type SubmitJobRequest struct {
	Kind       string         `json:"kind"`
	Params     map[string]any `json:"params,omitempty"`
	Priority   int            `json:"priority,omitempty"`
	NotBefore  *time.Time     `json:"not_before,omitempty"`
	Deadline   *time.Time     `json:"deadline,omitempty"`
	DependsOn  string         `json:"depends_on,omitempty"`
	MaxRetries *int           `json:"max_retries,omitempty"`
}

// SubmitJobResponse represents the response after submitting a job.
type SubmitJobResponse struct {
	ID     string         `json:"id"`
	Status core.JobStatus `json:"status"`
}

// JobView is the wire representation of a job.
type JobView struct {
	ID               string          `json:"id"`
	Kind             string          `json:"kind"`
	Params           json.RawMessage `json:"params,omitempty"`
	Priority         int             `json:"priority"`
	Status           core.JobStatus  `json:"status"`
	Progress         float64         `json:"progress"`
	RetryCount       int             `json:"retry_count"`
	MaxRetries       int             `json:"max_retries"`
	LastError        string          `json:"last_error,omitempty"`
	DependsOn        *string         `json:"depends_on,omitempty"`
	NotBefore        *time.Time      `json:"not_before,omitempty"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	QueueSeconds     float64         `json:"queue_seconds"`
	ExecutionSeconds float64         `json:"execution_seconds"`
	Result           json.RawMessage `json:"result,omitempty"`
}

func toJobView(job *core.Job) *JobView {
	return &JobView{
		ID:               job.ID,
		Kind:             job.Kind,
		Params:           json.RawMessage(job.Params),
		Priority:         job.Priority,
		Status:           job.Status,
		Progress:         job.Progress,
		RetryCount:       job.RetryCount,
		MaxRetries:       job.MaxRetries,
		LastError:        job.LastError,
		DependsOn:        job.DependsOn,
		NotBefore:        job.NotBefore,
		Deadline:         job.Deadline,
		CreatedAt:        job.CreatedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
		QueueSeconds:     job.QueueSeconds,
		ExecutionSeconds: job.ExecutionSeconds,
		Result:           json.RawMessage(job.Result),
	}
}

// SubmitJob handles POST /v1/jobs.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var opts []sched.Option
	if req.Priority != 0 {
		opts = append(opts, sched.Priority(req.Priority))
	}
	if req.NotBefore != nil {
		opts = append(opts, sched.NotBefore(*req.NotBefore))
	}
	if req.Deadline != nil {
		opts = append(opts, sched.Deadline(*req.Deadline))
	}
	if req.DependsOn != "" {
		opts = append(opts, sched.DependsOn(req.DependsOn))
	}
	if req.MaxRetries != nil {
		opts = append(opts, sched.MaxRetries(*req.MaxRetries))
	}

	id, err := h.scheduler.Enqueue(r.Context(), req.Kind, req.Params, opts...)
	if err != nil {
		writeSchedulerError(w, err)
		return
	}

	job, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, SubmitJobResponse{ID: id, Status: job.Status})
}

// GetJob handles GET /v1/jobs/{id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		writeSchedulerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

// ListJobsResponse wraps a page of jobs with the unpaged total.
type ListJobsResponse struct {
	Jobs  []*JobView `json:"jobs"`
	Total int64      `json:"total"`
}

// ListJobs handles GET /v1/jobs with status/kind/limit/offset filters.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.JobFilter{
		Status: core.JobStatus(q.Get("status")),
		Kind:   q.Get("kind"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	jobs, total, err := h.scheduler.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]*JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, toJobView(job))
	}
	writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: views, Total: total})
}

// CancelJob handles POST /v1/jobs/{id}/cancel.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.scheduler.Cancel(r.Context(), id); err != nil {
		writeSchedulerError(w, err)
		return
	}
	job, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		writeSchedulerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

// RequeueJob handles POST /v1/jobs/{id}/requeue.
func (h *JobHandler) RequeueJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.scheduler.Requeue(r.Context(), id); err != nil {
		writeSchedulerError(w, err)
		return
	}
	job, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		writeSchedulerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

// GetStats handles GET /v1/stats.
func (h *JobHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.scheduler.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeSchedulerError maps domain sentinels onto HTTP status codes.
func writeSchedulerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrInvalidPriority),
		errors.Is(err, core.ErrInvalidKindName),
		errors.Is(err, core.ErrKindNameTooLong),
		errors.Is(err, core.ErrParamsTooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNotCancellable),
		errors.Is(err, core.ErrNotRequeueable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
