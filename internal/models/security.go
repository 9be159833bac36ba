package models

import "time"

type SecurityEventType string

const (
	EventLoginAttempt        SecurityEventType = "login_attempt"
	EventCommandExecution    SecurityEventType = "command_execution"
	EventFileAccess          SecurityEventType = "file_access"
	EventConfigurationChange SecurityEventType = "configuration_change"
	EventBackupOperation     SecurityEventType = "backup_operation"
	EventPluginInstallation  SecurityEventType = "plugin_installation"
	EventWorldModification   SecurityEventType = "world_modification"
	EventPlayerAction        SecurityEventType = "player_action"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      SecurityEventType `json:"type"`
	Source    string            `json:"source"`
	Details   string            `json:"details"`
	Severity  Severity          `json:"severity"`
}
