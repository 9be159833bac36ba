package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"gamevisor/internal/models"
)

// SecurityLog retains audit events for a fixed retention period. Expired
// events are dropped on every append.
type SecurityLog struct {
	retention time.Duration
	now       func() time.Time

	mu     sync.RWMutex
	events []models.SecurityEvent
}

func NewSecurityLog(retention time.Duration) *SecurityLog {
	return &SecurityLog{retention: retention, now: time.Now}
}

func (l *SecurityLog) Log(ev models.SecurityEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now()
	}
	if ev.Severity == "" {
		ev.Severity = models.SeverityInfo
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, ev)
	l.pruneLocked()
}

func (l *SecurityLog) pruneLocked() {
	if l.retention <= 0 {
		return
	}
	cutoff := l.now().Add(-l.retention)

	kept := l.events[:0]
	for _, ev := range l.events {
		if !ev.Timestamp.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	for i := len(kept); i < len(l.events); i++ {
		l.events[i] = models.SecurityEvent{}
	}
	l.events = kept
}

func (l *SecurityLog) Events() []models.SecurityEvent {
	return l.filter(func(models.SecurityEvent) bool { return true })
}

func (l *SecurityLog) ByType(t models.SecurityEventType) []models.SecurityEvent {
	return l.filter(func(ev models.SecurityEvent) bool { return ev.Type == t })
}

func (l *SecurityLog) BySeverity(s models.Severity) []models.SecurityEvent {
	return l.filter(func(ev models.SecurityEvent) bool { return ev.Severity == s })
}

func (l *SecurityLog) filter(keep func(models.SecurityEvent) bool) []models.SecurityEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []models.SecurityEvent{}
	for _, ev := range l.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Export writes every retained event to path as indented JSON.
func (l *SecurityLog) Export(path string) error {
	data, err := json.MarshalIndent(l.Events(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal security events")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return errors.Wrap(err, "failed to create export directory")
	}

	if err := os.WriteFile(path, data, 0640); err != nil {
		return errors.Wrap(err, "failed to write security events")
	}
	return nil
}
