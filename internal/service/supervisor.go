package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gamevisor/internal/config"
	"gamevisor/internal/models"
)

const (
	// killWait bounds how long Stop waits for a killed process to be reaped.
	killWait = 5 * time.Second
	// notifyTimeout bounds how long lifecycle notifications may block on a
	// full notification queue.
	notifyTimeout = 2 * time.Second
)

// Options replaces the OS-facing collaborators of a Supervisor. Zero fields
// select the real implementations.
type Options struct {
	Spawner      Spawner
	Runtimes     RuntimeFinder
	ProcessTable ProcessTable
	Executor     Executor
	// ConsoleLog receives every captured log record as a text line.
	ConsoleLog io.Writer
}

type processHandle struct {
	proc      Process
	startedAt time.Time

	stdinMu sync.Mutex
	exited  chan struct{}
	exitErr error
}

// writeLine writes text and a newline to the process stdin, giving up after
// timeout. A timed out write keeps running in the background until the pipe
// accepts it or closes.
func (h *processHandle) writeLine(ctx context.Context, text string, timeout time.Duration) error {
	stdin := h.proc.Stdin()
	if stdin == nil {
		return ErrStdinUnavailable
	}

	errCh := make(chan error, 1)
	go func() {
		h.stdinMu.Lock()
		defer h.stdinMu.Unlock()

		_, err := io.WriteString(stdin, text+"\n")
		errCh <- err
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(ErrStdinUnavailable, err.Error())
		}
		return nil
	case <-timer.C:
		return ErrCommandTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Supervisor owns the game server process and every pipeline around it.
//
// opMu serialises the control operations (start, stop, restart and the exit
// monitor's cleanup) and may be held while waiting for the process. mu only
// guards the handle and is never held across I/O.
type Supervisor struct {
	cfg      config.GameServerConfig
	spawn    Spawner
	runtimes RuntimeFinder
	logger   *zap.SugaredLogger
	now      func() time.Time

	logs      *LogStreamer
	sampler   *MetricsSampler
	scheduler *TaskScheduler
	bus       *NotificationBus
	security  *SecurityLog
	players   *PlayerTracker

	opMu   sync.Mutex
	mu     sync.RWMutex
	handle *processHandle

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor wires every pipeline and starts the scheduler, the
// notification consumer and the log aggregator. The game server itself is not
// started. Close releases everything.
func NewSupervisor(cfg *config.SupervisorConfig, opts Options, logger *zap.SugaredLogger) *Supervisor {
	if opts.Spawner == nil {
		opts.Spawner = StartExec
	}
	if opts.Runtimes == nil {
		opts.Runtimes = NewJavaFinder()
	}
	if opts.ProcessTable == nil {
		opts.ProcessTable = NewProcessTable()
	}

	ctx, cancel := context.WithCancel(context.Background())
	players := NewPlayerTracker()

	s := &Supervisor{
		cfg:      cfg.Server,
		spawn:    opts.Spawner,
		runtimes: opts.Runtimes,
		logger:   logger,
		now:      time.Now,
		players:  players,
		ctx:      ctx,
		cancel:   cancel,
	}

	s.logs = NewLogStreamer(LogStreamerOptions{
		MaxEntries: cfg.Logs.MaxEntries,
		QueueSize:  cfg.Logs.QueueSize,
		Overflow:   ParseOverflowPolicy(cfg.Logs.Overflow),
		Sink:       opts.ConsoleLog,
		Hook:       players.Observe,
	}, logger.Named("logs"))

	s.sampler = NewMetricsSampler(opts.ProcessTable, players.Stats, cfg.Metrics.Interval, cfg.Metrics.History, logger.Named("metrics"))
	s.bus = NewNotificationBus(cfg.Notifications.QueueSize)
	s.security = NewSecurityLog(cfg.Security.Retention)

	exec := opts.Executor
	if exec == nil {
		exec = ExecutorFunc(func(ctx context.Context, task models.ScheduledTask) error {
			return s.SendCommand(ctx, task.Command)
		})
	}
	s.scheduler = NewTaskScheduler(exec, s.bus, cfg.Scheduler.Tick, logger.Named("scheduler"))
	if err := s.scheduler.SyncTasks(cfg.Tasks); err != nil {
		logger.Warnw("some configured tasks were not registered", "error", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.scheduler.Run(ctx)
	}()

	return s
}

func (s *Supervisor) Logs() *LogStreamer              { return s.logs }
func (s *Supervisor) Metrics() *MetricsSampler        { return s.sampler }
func (s *Supervisor) Scheduler() *TaskScheduler       { return s.scheduler }
func (s *Supervisor) Notifications() *NotificationBus { return s.bus }
func (s *Supervisor) Security() *SecurityLog          { return s.security }
func (s *Supervisor) Runtimes() RuntimeFinder         { return s.runtimes }
func (s *Supervisor) Config() config.GameServerConfig { return s.cfg }

// Start launches the game server. It fails with ErrAlreadyRunning if a
// process is already supervised, ErrRuntimeNotFound if no java binary can be
// resolved and a *SpawnError if the launch itself fails. State is unchanged
// on failure.
func (s *Supervisor) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.start(ctx)
}

func (s *Supervisor) start(ctx context.Context) error {
	if s.IsRunning() {
		return ErrAlreadyRunning
	}

	java, err := s.resolveJava(ctx)
	if err != nil {
		s.logs.Log(models.LogError, fmt.Sprintf("Cannot start %s: %v", s.cfg.Name, err))
		return err
	}

	lc := buildLaunchCommand(s.cfg, java)
	proc, err := s.spawn(lc)
	if err != nil {
		s.logs.Log(models.LogError, fmt.Sprintf("Failed to start %s: %v", s.cfg.Name, err))
		s.notify(models.NotifyError, "Server failed to start", err.Error())
		return &SpawnError{Path: java, Cause: err}
	}

	h := &processHandle{
		proc:      proc,
		startedAt: s.now(),
		exited:    make(chan struct{}),
	}

	s.players.Reset()

	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()

	drained := s.logs.Attach(proc.Stdout(), proc.Stderr())
	s.sampler.Start(proc.PID())
	go s.monitor(h, drained)

	s.logger.Infow("server started", "name", s.cfg.Name, "pid", proc.PID(), "command", lc.String())
	s.logs.Log(models.LogInfo, fmt.Sprintf("Server %s started with PID %d", s.cfg.Name, proc.PID()))
	s.notify(models.NotifySuccess, "Server started", fmt.Sprintf("%s is running with PID %d", s.cfg.Name, proc.PID()))
	s.security.Log(models.SecurityEvent{
		Type:     models.EventCommandExecution,
		Source:   "supervisor",
		Details:  "start: " + lc.String(),
		Severity: models.SeverityInfo,
	})

	return nil
}

func (s *Supervisor) resolveJava(ctx context.Context) (string, error) {
	if p := s.cfg.JavaPath; p != "" {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return "", errors.Wrapf(ErrRuntimeNotFound, "java_path %s", p)
		}
		return p, nil
	}

	for _, rt := range s.runtimes.Find(ctx) {
		if rt.Valid {
			return rt.Path, nil
		}
	}
	return "", ErrRuntimeNotFound
}

// monitor reaps the process once its output is drained. If the process went
// away without Stop, the handle is cleared here.
func (s *Supervisor) monitor(h *processHandle, drained <-chan struct{}) {
	<-drained
	h.exitErr = h.proc.Wait()
	close(h.exited)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	current := s.handle == h
	if current {
		s.handle = nil
	}
	s.mu.Unlock()

	if !current {
		return
	}

	s.sampler.Stop()

	reason := "exited normally"
	if h.exitErr != nil {
		reason = "exited with error: " + h.exitErr.Error()
	}
	s.logger.Warnw("server exited unexpectedly", "name", s.cfg.Name, "error", h.exitErr)
	s.logs.Log(models.LogWarning, fmt.Sprintf("Server %s %s", s.cfg.Name, reason))
	s.notify(models.NotifyWarning, "Server stopped unexpectedly", fmt.Sprintf("%s %s", s.cfg.Name, reason))
}

// Stop terminates the game server according to the configured stop policy.
// With the kill policy the process is killed immediately; with the graceful
// policy the stop command is sent first and the process is killed only if it
// is still alive after the stop timeout. A failed kill leaves the handle in
// place.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.stop(ctx)
}

func (s *Supervisor) stop(ctx context.Context) error {
	s.mu.RLock()
	h := s.handle
	s.mu.RUnlock()

	if h == nil {
		return ErrNotRunning
	}

	stopped := false
	if s.cfg.Stop.Mode == config.StopModeGraceful {
		s.logs.Log(models.LogInfo, fmt.Sprintf("Sending %q to %s", s.cfg.Stop.Command, s.cfg.Name))

		if err := h.writeLine(ctx, s.cfg.Stop.Command, s.cfg.CommandTimeout); err != nil {
			s.logger.Warnw("could not send stop command", "error", err)
		} else {
			timer := time.NewTimer(s.cfg.Stop.Timeout)
			select {
			case <-h.exited:
				stopped = true
			case <-timer.C:
				s.logs.Log(models.LogWarning, fmt.Sprintf("Server %s did not stop in time, killing", s.cfg.Name))
			case <-ctx.Done():
			}
			timer.Stop()
		}
	}

	if !stopped {
		if err := h.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logs.Log(models.LogError, fmt.Sprintf("Failed to kill %s: %v", s.cfg.Name, err))
			return errors.Wrap(err, "failed to kill server")
		}

		select {
		case <-h.exited:
		case <-time.After(killWait):
			s.logger.Warnw("killed server not reaped in time", "name", s.cfg.Name, "pid", h.proc.PID())
		}
	}

	s.mu.Lock()
	if s.handle == h {
		s.handle = nil
	}
	s.mu.Unlock()

	s.sampler.Stop()

	s.logger.Infow("server stopped", "name", s.cfg.Name, "graceful", stopped)
	s.logs.Log(models.LogInfo, fmt.Sprintf("Server %s stopped", s.cfg.Name))
	s.notify(models.NotifyInfo, "Server stopped", s.cfg.Name+" is no longer running")
	s.security.Log(models.SecurityEvent{
		Type:     models.EventCommandExecution,
		Source:   "supervisor",
		Details:  "stop",
		Severity: models.SeverityInfo,
	})

	return nil
}

// StopBudget is the longest Stop can take under the configured stop policy.
func (s *Supervisor) StopBudget() time.Duration {
	budget := killWait
	if s.cfg.Stop.Mode == config.StopModeGraceful {
		budget += s.cfg.CommandTimeout + s.cfg.Stop.Timeout
	}
	return budget
}

// Restart stops the server if it is running and starts it again. There is a
// window in which no process exists.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return s.start(ctx)
}

// SendCommand writes text as one console line to the server.
func (s *Supervisor) SendCommand(ctx context.Context, text string) error {
	s.mu.RLock()
	h := s.handle
	s.mu.RUnlock()

	if h == nil {
		return ErrStdinUnavailable
	}

	if err := h.writeLine(ctx, text, s.cfg.CommandTimeout); err != nil {
		return err
	}

	s.security.Log(models.SecurityEvent{
		Type:     models.EventCommandExecution,
		Source:   "console",
		Details:  text,
		Severity: models.SeverityInfo,
	})
	return nil
}

func (s *Supervisor) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.handle != nil
}

// Status returns a snapshot of the server. Players and TPS come from the
// newest metrics sample; without one they read 0 and models.DefaultTPS.
func (s *Supervisor) Status() models.Status {
	s.mu.RLock()
	h := s.handle
	s.mu.RUnlock()

	st := models.Status{
		Name:   s.cfg.Name,
		TPS:    models.DefaultTPS,
		Uptime: "N/A",
	}
	if h == nil {
		return st
	}

	st.IsRunning = true
	st.Pid = h.proc.PID()
	up := s.now().Sub(h.startedAt)
	if up > 0 {
		st.UptimeSeconds = uint64(up / time.Second)
	}
	st.Uptime = formatDuration(up)

	if sample, ok := s.sampler.Latest(); ok && !sample.SampledAt.Before(h.startedAt) {
		st.PlayersOnline = sample.PlayerCount
		st.TPS = sample.TPS
		st.MemoryUsage = sample.MemoryBytes
		st.CPUUsage = sample.CPUUsage
	}
	return st
}

// ApplyConfig takes the task list of a reloaded configuration. Process
// settings only take effect after a restart of gamevisor.
func (s *Supervisor) ApplyConfig(cfg *config.SupervisorConfig) {
	if err := s.scheduler.SyncTasks(cfg.Tasks); err != nil {
		s.logger.Warnw("some reloaded tasks were not registered", "error", err)
	}

	s.security.Log(models.SecurityEvent{
		Type:     models.EventConfigurationChange,
		Source:   "config",
		Details:  fmt.Sprintf("configuration reloaded, %d task(s)", len(cfg.Tasks)),
		Severity: models.SeverityInfo,
	})
	s.notify(models.NotifyInfo, "Configuration reloaded", fmt.Sprintf("%d scheduled task(s) configured", len(cfg.Tasks)))
}

func (s *Supervisor) notify(level models.NotificationLevel, title, message string) {
	ctx, cancel := context.WithTimeout(s.ctx, notifyTimeout)
	defer cancel()

	err := s.bus.Send(ctx, models.Notification{
		Title:   title,
		Message: message,
		Level:   level,
	})
	if err != nil {
		s.logger.Warnw("notification dropped", "title", title, "error", err)
	}
}

// Close stops the game server if it is running, then every background
// pipeline.
func (s *Supervisor) Close() {
	if err := s.Stop(context.Background()); err != nil && !errors.Is(err, ErrNotRunning) {
		s.logger.Errorw("failed to stop server on shutdown", "error", err)
	}

	s.cancel()
	s.wg.Wait()

	s.sampler.Stop()
	s.bus.Close()
	s.logs.Close()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour

	hours := d / time.Hour
	d -= hours * time.Hour

	minutes := d / time.Minute
	d -= minutes * time.Minute

	seconds := d / time.Second

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
