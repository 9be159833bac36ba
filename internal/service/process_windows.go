package service

import (
	"os"
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// killGroup only reaches proc itself; Windows has no process group kill
// without job objects.
func killGroup(proc *os.Process) error {
	return proc.Kill()
}
