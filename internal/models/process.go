package models

import "time"

// DefaultTPS is reported while no metrics sample exists. It reads as
// "healthy" even though nothing has been measured yet.
const DefaultTPS = 20.0

// Status is a point-in-time snapshot of the supervised server.
type Status struct {
	Name          string  `json:"name"`
	IsRunning     bool    `json:"is_running"`
	Pid           int     `json:"pid"`
	PlayersOnline int     `json:"players_online"`
	TPS           float64 `json:"tps"`
	MemoryUsage   uint64  `json:"memory_usage"`
	CPUUsage      float64 `json:"cpu_usage"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	Uptime        string  `json:"uptime"`
}

// LogLevel is the severity attached to a captured log line.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
	LogDebug   LogLevel = "debug"
)

// Log sources.
const (
	SourceStdout     = "stdout"
	SourceStderr     = "stderr"
	SourceSupervisor = "supervisor"
)

// LogRecord represents a log entry
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
}

// RuntimeInfo describes a discovered Java runtime.
type RuntimeInfo struct {
	Version string `json:"version"`
	Path    string `json:"path"`
	Valid   bool   `json:"valid"`
}
