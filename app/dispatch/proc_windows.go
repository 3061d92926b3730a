//go:build windows

package dispatch

import "os/exec"

// killGroupOnCancel keeps the default cancel, children are released by WaitDelay
func killGroupOnCancel(*exec.Cmd) {}
