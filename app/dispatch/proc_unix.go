//go:build !windows

package dispatch

import (
	"os/exec"
	"syscall"
)

// killGroupOnCancel starts the command in its own process group and kills the group on cancel
func killGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
