package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gamevisor/internal/config"
	"gamevisor/internal/service"
)

type TaskHandler struct {
	responder
	scheduler *service.TaskScheduler
}

func NewTaskHandler(scheduler *service.TaskScheduler, logger *zap.SugaredLogger) *TaskHandler {
	return &TaskHandler{responder: responder{logger: logger}, scheduler: scheduler}
}

// TaskRequest is the body of POST /api/tasks. Exactly one of Every, Cron and
// At must be set; Every is a Go duration string.
type TaskRequest struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Command string    `json:"command"`
	Every   string    `json:"every,omitempty"`
	Cron    string    `json:"cron,omitempty"`
	At      time.Time `json:"at,omitempty"`
	Enabled *bool     `json:"enabled,omitempty"`
}

func (req TaskRequest) toConfig() (config.TaskConfig, error) {
	tc := config.TaskConfig{
		ID:      req.ID,
		Name:    req.Name,
		Command: req.Command,
		Cron:    req.Cron,
		At:      req.At,
		Enabled: req.Enabled,
	}

	if req.Command == "" {
		return tc, errors.Wrap(service.ErrInvalidSchedule, "command is required")
	}

	set := 0
	if req.Every != "" {
		d, err := time.ParseDuration(req.Every)
		if err != nil {
			return tc, errors.Wrapf(service.ErrInvalidSchedule, "every: %v", err)
		}
		tc.Every = d
		set++
	}
	if req.Cron != "" {
		set++
	}
	if !req.At.IsZero() {
		set++
	}
	if set != 1 {
		return tc, errors.Wrap(service.ErrInvalidSchedule, "exactly one of every, cron and at is required")
	}
	return tc, nil
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.scheduler.Tasks())
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	tc, err := req.toConfig()
	if err != nil {
		h.writeError(w, statusFor(err), err, "Invalid task")
		return
	}

	task, err := h.scheduler.AddTask(service.TaskFromConfig(tc))
	if err != nil {
		h.writeError(w, statusFor(err), err, "Failed to add task")
		return
	}

	h.writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	task, ok := h.scheduler.GetTask(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, service.ErrTaskNotFound, "Task not found: "+id)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !h.scheduler.RemoveTask(id) {
		h.writeError(w, http.StatusNotFound, service.ErrTaskNotFound, "Task not found: "+id)
		return
	}
	h.writeJSON(w, http.StatusOK, SuccessResponse{
		Status:  "removed",
		Message: "Task " + id + " removed",
	})
}
