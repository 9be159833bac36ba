package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// reloadDebounce coalesces the burst of events editors produce on save.
const reloadDebounce = 250 * time.Millisecond

// Watcher reloads a supervisor configuration file whenever it changes on
// disk and hands the parsed result to OnChange.
type Watcher struct {
	OnChange func(*SupervisorConfig)

	w      *fsnotify.Watcher
	path   string
	logger *zap.SugaredLogger
}

// NewWatcher watches the directory containing path. The directory is watched
// instead of the file so that rename-on-save editors keep working.
func NewWatcher(path string, logger *zap.SugaredLogger, onChange func(*SupervisorConfig)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve config path")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create watcher")
	}

	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, errors.Wrap(err, "failed to watch config dir")
	}

	return &Watcher{
		OnChange: onChange,
		w:        w,
		path:     abs,
		logger:   logger,
	}, nil
}

// Run blocks until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.w.Close()

	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watcher error", "error", err)

		case evt, ok := <-w.w.Events:
			if !ok {
				return
			}
			if !w.relevant(evt) {
				continue
			}
			debounce = time.After(reloadDebounce)

		case <-debounce:
			debounce = nil
			w.reload()
		}
	}
}

func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if filepath.Clean(evt.Name) != w.path {
		return false
	}
	return evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) reload() {
	cfg, err := LoadSupervisorConfig(w.path)
	if err != nil {
		w.logger.Warnw("config reload failed", "path", w.path, "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warnw("reloaded config is invalid, keeping previous", "path", w.path, "error", err)
		return
	}

	w.logger.Infow("config reloaded", "path", w.path, "tasks", len(cfg.Tasks))
	if w.OnChange != nil {
		w.OnChange(cfg)
	}
}
