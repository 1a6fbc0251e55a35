// Package api exposes the admin HTTP surface: manual triggers for the
// scheduled jobs and read-only schedule introspection.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/events"
	"github.com/storyloom/storyloom-api/internal/queue"
)

// SchedulerService is the slice of the scheduler the admin API exposes.
type SchedulerService interface {
	TriggerManualCleanup(ctx context.Context, jobType string, opts queue.EnqueueOptions) (*queue.JobHandle, error)
	TriggerManualTopicDispatch(ctx context.Context) (*queue.JobHandle, error)
	TriggerManualSuggestionsForAll(ctx context.Context) (*queue.JobHandle, error)
	ScheduledJobs(ctx context.Context) ([]queue.ScheduledJob, error)
}

// TriggerResponse reports the job created by a manual trigger.
type TriggerResponse struct {
	JobID   string `json:"job_id"`
	JobType string `json:"job_type,omitempty"`
}

// ScheduleResponse is one registered repeatable job.
type ScheduleResponse struct {
	Name        string `json:"name"`
	Queue       string `json:"queue"`
	CronPattern string `json:"cron_pattern"`
	NextRun     string `json:"next_run_time"`
	Key         string `json:"key"`
}

// AdminHandler handles administrative HTTP requests.
type AdminHandler struct {
	scheduler SchedulerService
	emitter   events.EventEmitter
	logger    *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(scheduler SchedulerService, emitter events.EventEmitter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		scheduler: scheduler,
		emitter:   emitter,
		logger:    logger.With("component", "admin_handler"),
	}
}

// TriggerCleanup handles POST /admin/cleanup/{jobType} requests.
func (h *AdminHandler) TriggerCleanup(w http.ResponseWriter, r *http.Request) {
	jobType := chi.URLParam(r, "jobType")

	handle, err := h.scheduler.TriggerManualCleanup(r.Context(), jobType, queue.EnqueueOptions{})
	if err != nil {
		h.logger.Warn("manual cleanup rejected", "job_type", jobType, "error", err)
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusAccepted, TriggerResponse{JobID: handle.ID, JobType: jobType})
}

// TriggerTopicDispatch handles POST /admin/topics/dispatch requests.
func (h *AdminHandler) TriggerTopicDispatch(w http.ResponseWriter, r *http.Request) {
	handle, err := h.scheduler.TriggerManualTopicDispatch(r.Context())
	if err != nil {
		h.logger.Error("manual topic dispatch failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to trigger topic dispatch")
		return
	}

	respondWithJSON(w, http.StatusAccepted, TriggerResponse{JobID: handle.ID})
}

// TriggerSuggestions handles POST /admin/suggestions requests.
func (h *AdminHandler) TriggerSuggestions(w http.ResponseWriter, r *http.Request) {
	handle, err := h.scheduler.TriggerManualSuggestionsForAll(r.Context())
	if err != nil {
		h.logger.Error("manual suggestion pass failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to trigger suggestion pass")
		return
	}

	respondWithJSON(w, http.StatusAccepted, TriggerResponse{JobID: handle.ID})
}

// ListSchedules handles GET /admin/schedules requests.
func (h *AdminHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.scheduler.ScheduledJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list schedules", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}

	schedules := make([]ScheduleResponse, 0, len(jobs))
	for _, job := range jobs {
		schedules = append(schedules, ScheduleResponse{
			Name:        job.Name,
			Queue:       job.Queue,
			CronPattern: job.CronPattern,
			NextRun:     job.NextRun.Format(time.RFC3339),
			Key:         job.Key,
		})
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

// InjectEventRequest asks the backend to process a generation request as
// if a service had emitted it. Used by ops tooling to re-drive stuck
// pipelines.
type InjectEventRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// InjectEventResponse reports the emitted event.
type InjectEventResponse struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

// InjectEvent handles POST /admin/events requests.
func (h *AdminHandler) InjectEvent(w http.ResponseWriter, r *http.Request) {
	var req InjectEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		respondWithError(w, http.StatusBadRequest, "event type is required")
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage("{}")
	}

	event := &events.GenerationRequestEvent{
		ID:        uuid.New(),
		Type:      req.Type,
		Payload:   req.Payload,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		h.logger.Error("injected event failed", "event_type", req.Type, "error", err)
		respondWithError(w, http.StatusInternalServerError, "event processing failed")
		return
	}

	respondWithJSON(w, http.StatusAccepted, InjectEventResponse{
		EventID: event.ID.String(),
		Type:    event.Type,
	})
}
