package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gamevisor/internal/service"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type responder struct {
	logger *zap.SugaredLogger
}

func (rs responder) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rs.logger.Warnw("error encoding JSON response", "error", err)
	}
}

func (rs responder) writeError(w http.ResponseWriter, status int, err error, message string) {
	rs.writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Message: message,
	})
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrAlreadyRunning),
		errors.Is(err, service.ErrNotRunning),
		errors.Is(err, service.ErrTaskExists),
		errors.Is(err, service.ErrStdinUnavailable):
		return http.StatusConflict
	case errors.Is(err, service.ErrRuntimeNotFound):
		return http.StatusFailedDependency
	case errors.Is(err, service.ErrUnsupportedSchedule),
		errors.Is(err, service.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrCommandTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
