package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"gamevisor/internal/api"
	"gamevisor/internal/config"
	"gamevisor/internal/logging"
	"gamevisor/internal/service"
	"gamevisor/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func run(ctx context.Context) error {
	// Load server config
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	svCfg, err := config.LoadSupervisorConfig(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warnw("config file not found, using defaults", "path", configPath)
		svCfg = config.DefaultSupervisorConfig()
	case err != nil:
		return errors.Wrapf(err, "failed to load %s", configPath)
	}
	if err := svCfg.Validate(); err != nil {
		return errors.Wrapf(err, "invalid configuration %s", configPath)
	}

	lock, err := acquireLock(ctx, svCfg.Server.Directory)
	if err != nil {
		return errors.Wrapf(err, "cannot supervise %s", svCfg.Server.Directory)
	}
	defer lock.Unlock()

	var console io.WriteCloser
	if svCfg.Logs.File != "" {
		console = logging.RotatingFile(svCfg.Logs.File, svCfg.Logs.MaxSizeMB, svCfg.Logs.MaxBackups, svCfg.Logs.MaxAgeDays)
		defer console.Close()
	}

	opts := service.Options{}
	if console != nil {
		opts.ConsoleLog = console
	}
	sv := service.NewSupervisor(svCfg, opts, logger.Named("supervisor"))
	defer sv.Close()

	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	poller, err := telemetry.NewSnapshotPoller(reg, svCfg.Metrics.Interval)
	if err != nil {
		return errors.Wrap(err, "failed to register metrics")
	}
	poller.Add(svCfg.Server.Name, telemetry.FromSupervisor(sv))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller.Start(ctx)
	defer poller.Stop()

	watchConfig(ctx, sv, logger)

	router := api.NewRouter(sv, reg, logger)

	// Create server
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if svCfg.Server.AutoStart {
		if err := sv.Start(ctx); err != nil {
			logger.Errorw("auto start failed", "server", svCfg.Server.Name, "error", err)
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("starting gamevisor API", "address", cfg.Server.Address, "server", svCfg.Server.Name, "tasks", len(svCfg.Tasks))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "http server")
		}
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server forced to shutdown", "error", err)
	}

	if path := svCfg.Security.ExportPath; path != "" {
		if err := sv.Security().Export(path); err != nil {
			logger.Errorw("failed to export security events", "path", path, "error", err)
		}
	}

	logger.Info("gamevisor exited gracefully")
	return nil
}

func acquireLock(ctx context.Context, dir string) (*service.DirLock, error) {
	if lockTimeout <= 0 {
		return service.LockDir(dir)
	}

	waitCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	lock, err := service.LockDirWait(waitCtx, dir)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, service.ErrLockedElsewhere
	}
	return lock, err
}

// watchConfig applies task changes from the configuration file while ctx is
// live. A missing file simply disables reloading.
func watchConfig(ctx context.Context, sv *service.Supervisor, logger *zap.SugaredLogger) {
	if _, err := os.Stat(configPath); err != nil {
		return
	}

	w, err := config.NewWatcher(configPath, logger.Named("config"), sv.ApplyConfig)
	if err != nil {
		logger.Warnw("config hot reload disabled", "error", err)
		return
	}
	go w.Run(ctx)
}
