package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gamevisor/internal/models"
	"gamevisor/internal/service"
)

const defaultMetricsWindow = 5 * time.Minute

var errNoSamples = errors.New("no metric samples")

type MetricsHandler struct {
	responder
	sampler *service.MetricsSampler
}

func NewMetricsHandler(sampler *service.MetricsSampler, logger *zap.SugaredLogger) *MetricsHandler {
	return &MetricsHandler{responder: responder{logger: logger}, sampler: sampler}
}

func (h *MetricsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sampler.Latest()
	h.writeSample(w, s, ok)
}

func (h *MetricsHandler) History(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sampler.History())
}

func (h *MetricsHandler) Average(w http.ResponseWriter, r *http.Request) {
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	s, ok := h.sampler.Average(window)
	h.writeSample(w, s, ok)
}

func (h *MetricsHandler) Peak(w http.ResponseWriter, r *http.Request) {
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	s, ok := h.sampler.Peak(window)
	h.writeSample(w, s, ok)
}

// TickReport is the body of POST /api/metrics/tick, sent by a plugin inside
// the game server.
type TickReport struct {
	TickMS   float64 `json:"tick_ms"`
	Entities int     `json:"entities"`
	Chunks   int     `json:"chunks"`
}

func (h *MetricsHandler) ReportTick(w http.ResponseWriter, r *http.Request) {
	var req TickReport
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.TickMS < 0 || req.Entities < 0 || req.Chunks < 0 {
		h.writeError(w, http.StatusBadRequest, errors.New("negative value"), "tick_ms, entities and chunks must not be negative")
		return
	}

	h.sampler.SetTickTime(req.TickMS)
	h.sampler.SetWorldCounts(req.Entities, req.Chunks)
	w.WriteHeader(http.StatusNoContent)
}

func (h *MetricsHandler) window(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	v := r.URL.Query().Get("window")
	if v == "" {
		return defaultMetricsWindow, true
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		h.writeError(w, http.StatusBadRequest, errors.Errorf("invalid window %q", v), "window must be a positive duration such as 5m")
		return 0, false
	}
	return d, true
}

func (h *MetricsHandler) writeSample(w http.ResponseWriter, s models.MetricSample, ok bool) {
	if !ok {
		h.writeError(w, http.StatusNotFound, errNoSamples, "No samples in the requested window")
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}
