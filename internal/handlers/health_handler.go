package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"gamevisor/internal/service"
)

type HealthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	ServerRunning *bool  `json:"server_running,omitempty"`
}

type HealthHandler struct {
	responder
	sv *service.Supervisor
}

func NewHealthHandler(sv *service.Supervisor, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{responder: responder{logger: logger}, sv: sv}
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// ReadyCheck reports the supervisor as ready whether or not the game server
// is running; the running state is included for load balancers that care.
func (h *HealthHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	running := h.sv.IsRunning()
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ready",
		Timestamp:     time.Now().Format(time.RFC3339),
		ServerRunning: &running,
	})
}
