package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gamevisor/internal/models"
	"gamevisor/internal/service"
)

type NotificationHandler struct {
	responder
	bus      *service.NotificationBus
	security *service.SecurityLog
}

func NewNotificationHandler(bus *service.NotificationBus, security *service.SecurityLog, logger *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{responder: responder{logger: logger}, bus: bus, security: security}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("unread") == "true" {
		h.writeJSON(w, http.StatusOK, h.bus.Unread())
		return
	}
	h.writeJSON(w, http.StatusOK, h.bus.All())
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.bus.MarkRead(id)
	h.writeJSON(w, http.StatusOK, SuccessResponse{Status: "read", Message: id})
}

func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.bus.Clear()
	h.writeJSON(w, http.StatusOK, SuccessResponse{Status: "cleared"})
}

// SecurityEvents lists retained audit events, optionally filtered by type or
// severity.
func (h *NotificationHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case q.Get("type") != "":
		h.writeJSON(w, http.StatusOK, h.security.ByType(models.SecurityEventType(q.Get("type"))))
	case q.Get("severity") != "":
		h.writeJSON(w, http.StatusOK, h.security.BySeverity(models.Severity(q.Get("severity"))))
	default:
		h.writeJSON(w, http.StatusOK, h.security.Events())
	}
}
