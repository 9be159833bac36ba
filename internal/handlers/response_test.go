package handlers

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"gamevisor/internal/service"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrAlreadyRunning, http.StatusConflict},
		{service.ErrNotRunning, http.StatusConflict},
		{errors.Wrap(service.ErrTaskExists, "save"), http.StatusConflict},
		{service.ErrStdinUnavailable, http.StatusConflict},
		{errors.Wrapf(service.ErrRuntimeNotFound, "java_path %s", "/x"), http.StatusFailedDependency},
		{&service.SpawnError{Path: "java", Cause: errors.New("denied")}, http.StatusInternalServerError},
		{service.ErrUnsupportedSchedule, http.StatusBadRequest},
		{service.ErrInvalidSchedule, http.StatusBadRequest},
		{service.ErrTaskNotFound, http.StatusNotFound},
		{service.ErrCommandTimeout, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestTaskRequestToConfig(t *testing.T) {
	tc, err := TaskRequest{ID: "save", Command: "save-all", Every: "5m"}.toConfig()
	assert.NoError(t, err)
	assert.Equal(t, "save", tc.ID)
	assert.True(t, tc.IsEnabled())

	_, err = TaskRequest{Command: "x", Every: "soon"}.toConfig()
	assert.ErrorIs(t, err, service.ErrInvalidSchedule)

	_, err = TaskRequest{Command: "x"}.toConfig()
	assert.ErrorIs(t, err, service.ErrInvalidSchedule)

	_, err = TaskRequest{Every: "1m"}.toConfig()
	assert.ErrorIs(t, err, service.ErrInvalidSchedule)

	tc, err = TaskRequest{Command: "x", Cron: "0 4 * * *"}.toConfig()
	assert.NoError(t, err)
	assert.Equal(t, "0 4 * * *", tc.Cron)
}
