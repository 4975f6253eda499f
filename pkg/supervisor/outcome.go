// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
)

// Kind classifies how a child ended.
type Kind int

const (
	// Running is the zero Kind: the child has not ended yet, or its end
	// was never observed.
	Running Kind = iota
	Success
	Failure
	Crashed
)

func (k Kind) String() string {
	switch k {
	case Running:
		return "running"
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Crashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Outcome is the classified end of a child process.
type Outcome struct {
	Kind Kind
	// Code is the exit code; -1 when the process was killed by a signal.
	Code int
	// Reason describes a crash: a signal name, an NTSTATUS value or the
	// fatal error log the JVM left behind.
	Reason string
	// Terminated is set when Terminate was called on the handle.
	Terminated bool
}

func (o Outcome) String() string {
	switch o.Kind {
	case Running:
		return "still running"
	case Success:
		return "exited successfully"
	case Failure:
		return fmt.Sprintf("exited with code %d", o.Code)
	default:
		return "crashed: " + o.Reason
	}
}

// classify turns a finished process into an Outcome.
func classify(state *os.ProcessState, dir string) Outcome {
	if state == nil {
		return Outcome{Kind: Crashed, Code: -1, Reason: "process state unavailable"}
	}

	code := state.ExitCode()
	if reason, crashed := crashReason(state); crashed {
		return Outcome{Kind: Crashed, Code: code, Reason: reason}
	}
	if code == 0 {
		return Outcome{Kind: Success}
	}
	if log := fatalErrorLog(dir, state.Pid()); log != "" {
		return Outcome{Kind: Crashed, Code: code, Reason: "jvm fatal error, see " + log}
	}
	return Outcome{Kind: Failure, Code: code}
}

// fatalErrorLog returns the path of the JVM crash log for pid in dir, if
// the JVM wrote one.
func fatalErrorLog(dir string, pid int) string {
	if dir == "" {
		return ""
	}
	path := filepath.Join(dir, fmt.Sprintf("hs_err_pid%d.log", pid))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
