package service

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"gamevisor/internal/config"
)

// Process is a running child with its three pipes. The exec-backed
// implementation is replaced by fakes in tests.
type Process interface {
	PID() int
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	Kill() error
	// Wait blocks until the process exits. It must only be called after
	// Stdout and Stderr have been drained.
	Wait() error
}

// LaunchCommand is the fully resolved command line of the game server.
type LaunchCommand struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

func (lc LaunchCommand) String() string {
	return fmt.Sprintf("%s %v (in %s)", lc.Path, lc.Args, lc.Dir)
}

// Spawner starts a process from a launch command.
type Spawner func(LaunchCommand) (Process, error)

// buildLaunchCommand turns the server config and the resolved java binary
// into the command line "java -Xms -Xmx -jar <jar> <extra...>".
func buildLaunchCommand(cfg config.GameServerConfig, javaPath string) LaunchCommand {
	args := []string{
		fmt.Sprintf("-Xms%dM", cfg.Memory.MinMB),
		fmt.Sprintf("-Xmx%dM", cfg.Memory.MaxMB),
		"-jar",
		cfg.Jar,
	}
	args = append(args, cfg.ExtraArgs...)

	var env []string
	if len(cfg.Environment) > 0 {
		env = os.Environ()
		for k, v := range cfg.Environment {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	dir := cfg.Directory
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	return LaunchCommand{Path: javaPath, Args: args, Dir: dir, Env: env}
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader

	waitOnce sync.Once
	waitErr  error
	waited   atomic.Bool
}

var _ Process = (*execProcess)(nil)

// StartExec is the default Spawner, backed by os/exec.
func StartExec(lc LaunchCommand) (Process, error) {
	cmd := exec.Command(lc.Path, lc.Args...)
	cmd.Dir = lc.Dir
	cmd.Env = lc.Env
	detach(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create stdin pipe")
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(ErrStdoutUnavailable, err.Error())
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &execProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

func (p *execProcess) PID() int              { return p.cmd.Process.Pid }
func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }
func (p *execProcess) Stderr() io.Reader     { return p.stderr }

// Kill kills the whole process group, so children of a wrapper script go
// down with it.
func (p *execProcess) Kill() error {
	if p.waited.Load() {
		return os.ErrProcessDone
	}
	return killGroup(p.cmd.Process)
}

func (p *execProcess) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		p.waited.Store(true)
	})
	return p.waitErr
}
