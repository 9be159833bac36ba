package models

import "time"

// ScheduleKind selects how a task is rescheduled after firing.
type ScheduleKind string

const (
	ScheduleInterval ScheduleKind = "interval"
	ScheduleCron     ScheduleKind = "cron"
	ScheduleOnce     ScheduleKind = "once"
)

// Schedule is a tagged union; only the field matching Kind is meaningful.
type Schedule struct {
	Kind  ScheduleKind  `json:"kind"`
	Every time.Duration `json:"every,omitempty"`
	Expr  string        `json:"expr,omitempty"`
	At    time.Time     `json:"at,omitempty"`
}

func Every(d time.Duration) Schedule { return Schedule{Kind: ScheduleInterval, Every: d} }
func Cron(expr string) Schedule      { return Schedule{Kind: ScheduleCron, Expr: expr} }
func Once(at time.Time) Schedule     { return Schedule{Kind: ScheduleOnce, At: at} }

type ScheduledTask struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Command  string     `json:"command"`
	Schedule Schedule   `json:"schedule"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  time.Time  `json:"next_run"`
	Enabled  bool       `json:"enabled"`
}
