//go:build !windows

package service

import (
	"os"
	"os/exec"
	"syscall"
)

// detach puts the server in its own process group so terminal signals aimed
// at the supervisor do not reach it directly.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killGroup sends SIGKILL to the process group led by proc.
func killGroup(proc *os.Process) error {
	err := syscall.Kill(-proc.Pid, syscall.SIGKILL)
	if err == syscall.ESRCH {
		return proc.Kill()
	}
	return err
}
