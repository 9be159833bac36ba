package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gamevisor/internal/models"
	"gamevisor/internal/service"
)

const (
	defaultLogLimit = 100
	// lifecycleMargin is added to the stop budget when lifting the write
	// deadline of stop and restart requests.
	lifecycleMargin = 5 * time.Second
)

type ServerHandler struct {
	responder
	sv *service.Supervisor
}

func NewServerHandler(sv *service.Supervisor, logger *zap.SugaredLogger) *ServerHandler {
	return &ServerHandler{responder: responder{logger: logger}, sv: sv}
}

type CommandRequest struct {
	Command string `json:"command"`
}

func (h *ServerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sv.Status())
}

func (h *ServerHandler) Start(w http.ResponseWriter, r *http.Request) {
	name := h.sv.Config().Name

	if err := h.sv.Start(r.Context()); err != nil {
		h.writeError(w, statusFor(err), err, "Failed to start server "+name)
		return
	}

	h.writeJSON(w, http.StatusOK, SuccessResponse{
		Status:  "started",
		Message: "Server " + name + " started successfully",
	})
}

// extendWriteDeadline lets a slow stop outlive the server's WriteTimeout.
func (h *ServerHandler) extendWriteDeadline(w http.ResponseWriter) {
	deadline := time.Now().Add(h.sv.StopBudget() + lifecycleMargin)
	err := http.NewResponseController(w).SetWriteDeadline(deadline)
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Debugw("could not extend write deadline", "error", err)
	}
}

func (h *ServerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	name := h.sv.Config().Name
	h.extendWriteDeadline(w)

	if err := h.sv.Stop(r.Context()); err != nil {
		h.writeError(w, statusFor(err), err, "Failed to stop server "+name)
		return
	}

	h.writeJSON(w, http.StatusOK, SuccessResponse{
		Status:  "stopped",
		Message: "Server " + name + " stopped successfully",
	})
}

func (h *ServerHandler) Restart(w http.ResponseWriter, r *http.Request) {
	name := h.sv.Config().Name
	h.extendWriteDeadline(w)

	if err := h.sv.Restart(r.Context()); err != nil {
		h.writeError(w, statusFor(err), err, "Failed to restart server "+name)
		return
	}

	h.writeJSON(w, http.StatusOK, SuccessResponse{
		Status:  "restarted",
		Message: "Server " + name + " restarted successfully",
	})
}

func (h *ServerHandler) SendCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("empty command"), "Command must not be empty")
		return
	}

	if err := h.sv.SendCommand(r.Context(), req.Command); err != nil {
		h.writeError(w, statusFor(err), err, "Failed to send command")
		return
	}

	h.writeJSON(w, http.StatusOK, SuccessResponse{
		Status:  "sent",
		Message: req.Command,
	})
}

// GetLogs returns the newest console records. Query parameters: limit
// (default 100, 0 for all) and level.
func (h *ServerHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, errors.Errorf("invalid limit %q", v), "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	if level := r.URL.Query().Get("level"); level != "" {
		h.writeJSON(w, http.StatusOK, h.sv.Logs().ByLevel(models.LogLevel(level), limit))
		return
	}
	h.writeJSON(w, http.StatusOK, h.sv.Logs().Last(limit))
}

func (h *ServerHandler) GetRuntimes(w http.ResponseWriter, r *http.Request) {
	runtimes := h.sv.Runtimes().Find(r.Context())
	if runtimes == nil {
		runtimes = []models.RuntimeInfo{}
	}
	h.writeJSON(w, http.StatusOK, runtimes)
}
