package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamevisor/internal/models"
)

func TestSecurityLogRetention(t *testing.T) {
	clock := &fakeClock{t: t0}
	l := NewSecurityLog(time.Hour)
	l.now = clock.Now

	l.Log(models.SecurityEvent{Type: models.EventLoginAttempt, Source: "10.0.0.1", Severity: models.SeverityWarning})

	clock.Set(t0.Add(30 * time.Minute))
	l.Log(models.SecurityEvent{Type: models.EventCommandExecution, Source: "console", Details: "op Steve"})
	assert.Len(t, l.Events(), 2)

	clock.Set(t0.Add(61 * time.Minute))
	l.Log(models.SecurityEvent{Type: models.EventConfigurationChange, Source: "config"})

	events := l.Events()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventCommandExecution, events[0].Type)
	assert.Equal(t, models.SeverityInfo, events[0].Severity)
	assert.Equal(t, t0.Add(30*time.Minute), events[0].Timestamp)
}

func TestSecurityLogFilters(t *testing.T) {
	l := NewSecurityLog(time.Hour)
	l.Log(models.SecurityEvent{Type: models.EventLoginAttempt, Severity: models.SeverityWarning})
	l.Log(models.SecurityEvent{Type: models.EventLoginAttempt, Severity: models.SeverityCritical})
	l.Log(models.SecurityEvent{Type: models.EventFileAccess})

	assert.Len(t, l.ByType(models.EventLoginAttempt), 2)
	assert.Len(t, l.BySeverity(models.SeverityCritical), 1)
	assert.Empty(t, l.ByType(models.EventPluginInstallation))
}

func TestSecurityLogExport(t *testing.T) {
	l := NewSecurityLog(0)
	l.Log(models.SecurityEvent{Type: models.EventBackupOperation, Source: "cli", Details: "world.zip"})

	path := filepath.Join(t.TempDir(), "audit", "events.json")
	require.NoError(t, l.Export(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []models.SecurityEvent
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "world.zip", got[0].Details)
	assert.Equal(t, models.EventBackupOperation, got[0].Type)
}
