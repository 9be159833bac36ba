package service

import (
	"github.com/pkg/errors"
)

var (
	ErrAlreadyRunning      = errors.New("server already running")
	ErrNotRunning          = errors.New("server not running")
	ErrProcessSpawnFailed  = errors.New("process spawn failed")
	ErrStdinUnavailable    = errors.New("server stdin unavailable")
	ErrStdoutUnavailable   = errors.New("server stdout unavailable")
	ErrRuntimeNotFound     = errors.New("no java runtime found")
	ErrChannelClosed       = errors.New("channel closed")
	ErrCommandTimeout      = errors.New("timed out writing command")
	ErrUnsupportedSchedule = errors.New("unsupported schedule")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrTaskExists          = errors.New("task already exists")
	ErrTaskNotFound        = errors.New("task not found")
	ErrLockedElsewhere     = errors.New("server directory locked by another supervisor")
)

// SpawnError is returned by Start when the process could not be launched.
// It matches ErrProcessSpawnFailed under errors.Is.
type SpawnError struct {
	Path  string
	Cause error
}

func (e *SpawnError) Error() string {
	return "failed to spawn " + e.Path + ": " + e.Cause.Error()
}

func (e *SpawnError) Unwrap() error { return e.Cause }

func (e *SpawnError) Is(target error) bool { return target == ErrProcessSpawnFailed }
