package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gamevisor/internal/config"
	"gamevisor/internal/models"
)

// Executor runs the command of a due task.
type Executor interface {
	Execute(ctx context.Context, task models.ScheduledTask) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, task models.ScheduledTask) error

func (f ExecutorFunc) Execute(ctx context.Context, task models.ScheduledTask) error {
	return f(ctx, task)
}

// TaskScheduler owns the task registry and fires due tasks on every tick.
// The whole registry is guarded by one mutex; a tick's scan-and-reschedule
// pass happens entirely under it.
type TaskScheduler struct {
	exec   Executor
	bus    *NotificationBus
	tick   time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time

	mu    sync.Mutex
	tasks map[string]*models.ScheduledTask
	// configured holds the ids that came from the configuration file so a
	// reload only replaces those.
	configured map[string]bool
}

func NewTaskScheduler(exec Executor, bus *NotificationBus, tick time.Duration, logger *zap.SugaredLogger) *TaskScheduler {
	if tick <= 0 {
		tick = time.Second
	}
	return &TaskScheduler{
		exec:       exec,
		bus:        bus,
		tick:       tick,
		logger:     logger,
		now:        time.Now,
		tasks:      make(map[string]*models.ScheduledTask),
		configured: make(map[string]bool),
	}
}

func validateSchedule(s models.Schedule) error {
	switch s.Kind {
	case models.ScheduleInterval:
		if s.Every <= 0 {
			return errors.Wrapf(ErrInvalidSchedule, "interval must be positive, got %s", s.Every)
		}
	case models.ScheduleOnce:
		if s.At.IsZero() {
			return errors.Wrap(ErrInvalidSchedule, "one-time schedule needs a time")
		}
	case models.ScheduleCron:
		return errors.Wrapf(ErrUnsupportedSchedule, "cron expression %q", s.Expr)
	default:
		return errors.Wrapf(ErrInvalidSchedule, "unknown schedule kind %q", s.Kind)
	}
	return nil
}

// AddTask registers a task. An empty id is replaced by a generated one and a
// zero NextRun is derived from the schedule. The stored task is returned.
func (s *TaskScheduler) AddTask(task models.ScheduledTask) (models.ScheduledTask, error) {
	if err := validateSchedule(task.Schedule); err != nil {
		return models.ScheduledTask{}, err
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Name == "" {
		task.Name = task.ID
	}

	if task.NextRun.IsZero() {
		switch task.Schedule.Kind {
		case models.ScheduleInterval:
			task.NextRun = s.now().Add(task.Schedule.Every)
		case models.ScheduleOnce:
			task.NextRun = task.Schedule.At
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return models.ScheduledTask{}, errors.Wrap(ErrTaskExists, task.ID)
	}

	stored := task
	s.tasks[task.ID] = &stored
	return stored, nil
}

// RemoveTask deletes the task and reports whether it existed.
func (s *TaskScheduler) RemoveTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.tasks[id]
	delete(s.tasks, id)
	delete(s.configured, id)
	return ok
}

func (s *TaskScheduler) GetTask(id string) (models.ScheduledTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return models.ScheduledTask{}, false
	}
	return *t, true
}

// Tasks returns every task ordered by id.
func (s *TaskScheduler) Tasks() []models.ScheduledTask {
	s.mu.Lock()
	out := make([]models.ScheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TaskFromConfig converts a configured task into a registry entry.
func TaskFromConfig(tc config.TaskConfig) models.ScheduledTask {
	t := models.ScheduledTask{
		ID:      tc.ID,
		Name:    tc.Name,
		Command: tc.Command,
		Enabled: tc.IsEnabled(),
	}
	switch {
	case tc.Cron != "":
		t.Schedule = models.Cron(tc.Cron)
	case !tc.At.IsZero():
		t.Schedule = models.Once(tc.At)
	default:
		t.Schedule = models.Every(tc.Every)
	}
	return t
}

// SyncTasks replaces the tasks that came from configuration with tasks.
// Tasks added through the API are left alone, and a configured task whose
// definition did not change keeps its run state. Invalid entries are skipped
// and reported in the returned error.
func (s *TaskScheduler) SyncTasks(tasks []config.TaskConfig) error {
	now := s.now()
	var errs []string

	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, len(tasks))
	for _, tc := range tasks {
		t := TaskFromConfig(tc)
		if err := validateSchedule(t.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", tc.ID, err))
			continue
		}
		if t.Name == "" {
			t.Name = t.ID
		}

		if existing, ok := s.tasks[t.ID]; ok {
			if !s.configured[t.ID] {
				errs = append(errs, fmt.Sprintf("%s: id already used by another task", t.ID))
				continue
			}
			if sameDefinition(*existing, t) {
				keep[t.ID] = true
				continue
			}
		}

		switch t.Schedule.Kind {
		case models.ScheduleInterval:
			t.NextRun = now.Add(t.Schedule.Every)
		case models.ScheduleOnce:
			t.NextRun = t.Schedule.At
		}
		stored := t
		s.tasks[t.ID] = &stored
		s.configured[t.ID] = true
		keep[t.ID] = true
	}

	for id := range s.configured {
		if !keep[id] {
			delete(s.tasks, id)
			delete(s.configured, id)
		}
	}

	if len(errs) > 0 {
		return errors.Errorf("skipped %d task(s): %v", len(errs), errs)
	}
	return nil
}

// sameDefinition compares a registered task with its configured form. A
// one-time task that already fired is disabled by the scheduler, not by the
// configuration, so its enabled flag is not compared.
func sameDefinition(a, b models.ScheduledTask) bool {
	fired := a.Schedule.Kind == models.ScheduleOnce && a.LastRun != nil
	return a.Name == b.Name &&
		a.Command == b.Command &&
		(fired || a.Enabled == b.Enabled) &&
		a.Schedule.Kind == b.Schedule.Kind &&
		a.Schedule.Every == b.Schedule.Every &&
		a.Schedule.At.Equal(b.Schedule.At)
}

// Run fires due tasks every tick until ctx is canceled.
func (s *TaskScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick fires every enabled task due at now and returns how many fired.
// Rescheduling happens under the registry lock; execution and notification
// happen after it is released.
func (s *TaskScheduler) Tick(ctx context.Context, now time.Time) int {
	due := s.collectDue(now)

	for _, task := range due {
		n := models.Notification{
			Title:   "Task executed: " + task.Name,
			Message: "Command: " + task.Command,
			Level:   models.NotifyInfo,
		}

		if err := s.exec.Execute(ctx, task); err != nil {
			s.logger.Warnw("task execution failed", "task", task.ID, "error", err)
			n.Title = "Task failed: " + task.Name
			n.Message = fmt.Sprintf("Command: %s (%v)", task.Command, err)
			n.Level = models.NotifyError
		}

		if err := s.bus.Send(ctx, n); err != nil {
			s.logger.Warnw("task notification dropped", "task", task.ID, "error", err)
		}
	}

	return len(due)
}

func (s *TaskScheduler) collectDue(now time.Time) []models.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.ScheduledTask
	for _, t := range s.tasks {
		if !t.Enabled || t.NextRun.After(now) {
			continue
		}

		ran := now
		t.LastRun = &ran

		switch t.Schedule.Kind {
		case models.ScheduleInterval:
			t.NextRun = now.Add(t.Schedule.Every)
		case models.ScheduleOnce:
			t.Enabled = false
		}

		due = append(due, *t)
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due
}
