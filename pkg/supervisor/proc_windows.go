// SPDX-License-Identifier: Apache-2.0

//go:build windows

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// ntStatusError is the lowest NTSTATUS severity code for errors; exit
// codes at or above it mean the process died from an unhandled exception.
const ntStatusError = 0xC0000000

func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

func interrupt(pid int) error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(pid))
}

func kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func crashReason(state *os.ProcessState) (string, bool) {
	code := uint32(state.ExitCode())
	if code >= ntStatusError {
		return fmt.Sprintf("unhandled exception 0x%08X", code), true
	}
	return "", false
}
