// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureCommand starts the child in its own process group so that
// signals reach every process it spawns.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// interrupt asks the process group to stop.
func interrupt(pid int) error {
	return unix.Kill(-pid, unix.SIGTERM)
}

// kill forcibly stops the process group.
func kill(pid int) error {
	return unix.Kill(-pid, unix.SIGKILL)
}

func crashReason(state *os.ProcessState) (string, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return "", false
	}
	reason := "killed by signal " + unix.SignalName(ws.Signal())
	if ws.CoreDump() {
		reason += " (core dumped)"
	}
	return reason, true
}
