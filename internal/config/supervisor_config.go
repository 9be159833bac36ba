package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Stop modes understood by the supervisor.
const (
	StopModeKill     = "kill"
	StopModeGraceful = "graceful"
)

// Overflow policies for bounded queues.
const (
	OverflowDropOldest = "drop-oldest"
	OverflowBlock      = "block"
)

type MemoryConfig struct {
	MinMB int `yaml:"min_mb"`
	MaxMB int `yaml:"max_mb"`
}

type StopConfig struct {
	Mode    string        `yaml:"mode"`
	Command string        `yaml:"command,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

type GameServerConfig struct {
	Name           string            `yaml:"name"`
	Directory      string            `yaml:"directory"`
	Jar            string            `yaml:"jar"`
	JavaPath       string            `yaml:"java_path,omitempty"`
	Memory         MemoryConfig      `yaml:"memory"`
	ExtraArgs      []string          `yaml:"extra_args,omitempty"`
	Environment    map[string]string `yaml:"environment,omitempty"`
	AutoStart      bool              `yaml:"autostart"`
	Stop           StopConfig        `yaml:"stop"`
	CommandTimeout time.Duration     `yaml:"command_timeout,omitempty"`
}

type LogsConfig struct {
	MaxEntries int    `yaml:"max_entries,omitempty"`
	QueueSize  int    `yaml:"queue_size,omitempty"`
	Overflow   string `yaml:"overflow,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

type MetricsConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	History  int           `yaml:"history,omitempty"`
}

type SchedulerConfig struct {
	Tick time.Duration `yaml:"tick,omitempty"`
}

type NotificationsConfig struct {
	QueueSize int `yaml:"queue_size,omitempty"`
}

type SecurityConfig struct {
	Retention  time.Duration `yaml:"retention,omitempty"`
	ExportPath string        `yaml:"export_path,omitempty"`
}

// TaskConfig declares a scheduled task. Exactly one of Every, Cron or At
// selects the schedule kind.
type TaskConfig struct {
	ID      string        `yaml:"id"`
	Name    string        `yaml:"name"`
	Command string        `yaml:"command"`
	Every   time.Duration `yaml:"every,omitempty"`
	Cron    string        `yaml:"cron,omitempty"`
	At      time.Time     `yaml:"at,omitempty"`
	Enabled *bool         `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the task should be registered enabled. Tasks
// are enabled unless explicitly turned off.
func (t TaskConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

type SupervisorConfig struct {
	Server        GameServerConfig    `yaml:"server"`
	Logs          LogsConfig          `yaml:"logs"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Security      SecurityConfig      `yaml:"security"`
	Tasks         []TaskConfig        `yaml:"tasks"`
}

func LoadSupervisorConfig(path string) (*SupervisorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg SupervisorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	if cfg.Server.Directory != "" && !filepath.IsAbs(cfg.Server.Directory) {
		cfg.Server.Directory = filepath.Join(filepath.Dir(path), cfg.Server.Directory)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// DefaultSupervisorConfig returns a configuration with every default applied
// and no tasks.
func DefaultSupervisorConfig() *SupervisorConfig {
	cfg := &SupervisorConfig{}
	cfg.ApplyDefaults()
	return cfg
}

func (cfg *SupervisorConfig) ApplyDefaults() {
	s := &cfg.Server
	if s.Name == "" {
		s.Name = "minecraft"
	}
	if s.Directory == "" {
		s.Directory = "."
	}
	if s.Jar == "" {
		s.Jar = "server.jar"
	}
	if s.Memory.MinMB == 0 {
		s.Memory.MinMB = 1024
	}
	if s.Memory.MaxMB == 0 {
		s.Memory.MaxMB = 2048
	}
	if s.ExtraArgs == nil {
		s.ExtraArgs = []string{"nogui"}
	}
	if s.Stop.Mode == "" {
		s.Stop.Mode = StopModeKill
	}
	if s.Stop.Command == "" {
		s.Stop.Command = "stop"
	}
	if s.Stop.Timeout == 0 {
		s.Stop.Timeout = 10 * time.Second
	}
	if s.CommandTimeout == 0 {
		s.CommandTimeout = 5 * time.Second
	}

	if cfg.Logs.MaxEntries == 0 {
		cfg.Logs.MaxEntries = 5000
	}
	if cfg.Logs.QueueSize == 0 {
		cfg.Logs.QueueSize = 100
	}
	if cfg.Logs.Overflow == "" {
		cfg.Logs.Overflow = OverflowDropOldest
	}
	if cfg.Logs.MaxSizeMB == 0 {
		cfg.Logs.MaxSizeMB = 10
	}
	if cfg.Logs.MaxBackups == 0 {
		cfg.Logs.MaxBackups = 5
	}
	if cfg.Logs.MaxAgeDays == 0 {
		cfg.Logs.MaxAgeDays = 28
	}

	if cfg.Metrics.Interval == 0 {
		cfg.Metrics.Interval = time.Second
	}
	if cfg.Metrics.History == 0 {
		cfg.Metrics.History = 1000
	}

	if cfg.Scheduler.Tick == 0 {
		cfg.Scheduler.Tick = time.Second
	}

	if cfg.Notifications.QueueSize == 0 {
		cfg.Notifications.QueueSize = 100
	}

	if cfg.Security.Retention == 0 {
		cfg.Security.Retention = 7 * 24 * time.Hour
	}
}

// Validate reports the first structural problem in the configuration.
func (cfg *SupervisorConfig) Validate() error {
	s := cfg.Server
	if s.Memory.MinMB < 0 || s.Memory.MaxMB < 0 || s.Memory.MinMB > s.Memory.MaxMB {
		return errors.Errorf("server.memory: min_mb %d must not exceed max_mb %d", s.Memory.MinMB, s.Memory.MaxMB)
	}
	switch s.Stop.Mode {
	case StopModeKill, StopModeGraceful:
	default:
		return errors.Errorf("server.stop.mode: unknown mode %q", s.Stop.Mode)
	}
	switch cfg.Logs.Overflow {
	case OverflowDropOldest, OverflowBlock:
	default:
		return errors.Errorf("logs.overflow: unknown policy %q", cfg.Logs.Overflow)
	}

	seen := make(map[string]bool, len(cfg.Tasks))
	for i, t := range cfg.Tasks {
		if t.ID == "" {
			return errors.Errorf("tasks[%d]: missing id", i)
		}
		if seen[t.ID] {
			return errors.Errorf("tasks[%d]: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true

		kinds := 0
		if t.Every != 0 {
			kinds++
		}
		if t.Cron != "" {
			kinds++
		}
		if !t.At.IsZero() {
			kinds++
		}
		if kinds != 1 {
			return errors.Errorf("tasks[%d] (%s): exactly one of every, cron or at is required", i, t.ID)
		}
		if t.Every < 0 {
			return errors.Errorf("tasks[%d] (%s): negative interval", i, t.ID)
		}
	}

	return nil
}
