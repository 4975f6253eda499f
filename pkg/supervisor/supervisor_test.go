// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/pkg/command"
)

type recordingSink struct {
	mu    sync.Mutex
	lines map[Stream][]string
}

func (r *recordingSink) Line(stream Stream, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lines == nil {
		r.lines = make(map[Stream][]string)
	}
	r.lines[stream] = append(r.lines[stream], line)
}

func (r *recordingSink) get(stream Stream) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines[stream]...)
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func shell(dir, script string) *command.Invocation {
	return &command.Invocation{
		Executable: "/bin/sh",
		Args:       []string{"-c", script},
		Env:        []string{"PATH=/usr/bin:/bin"},
		Dir:        dir,
	}
}

func testSupervisor(sink Sink) *Supervisor {
	logger := hclog.New(&hclog.LoggerOptions{Name: "supervisor_test", Level: hclog.Trace})
	return New(sink, WithLogger(logger), WithGracePeriod(2*time.Second))
}

func runToEnd(t *testing.T, s *Supervisor, inv *command.Invocation) Outcome {
	t.Helper()
	h, err := s.Launch(context.Background(), inv)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	outcome, err := s.Wait(ctx, h)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return outcome
}

func TestOutcomes(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name   string
		script string
		kind   Kind
		code   int
	}{
		{"success", "exit 0", Success, 0},
		{"failure", "exit 3", Failure, 3},
		{"signal", "kill -SEGV $$", Crashed, -1},
		{"jvm error log", "touch hs_err_pid$$.log; exit 134", Crashed, 134},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := runToEnd(t, testSupervisor(nil), shell(t.TempDir(), tt.script))
			if outcome.Kind != tt.kind || outcome.Code != tt.code {
				t.Errorf("outcome = %+v, want %s code %d", outcome, tt.kind, tt.code)
			}
			if tt.kind == Crashed && outcome.Reason == "" {
				t.Error("crash without reason")
			}
		})
	}
}

func TestOutputStreaming(t *testing.T) {
	requireShell(t)

	sink := &recordingSink{}
	outcome := runToEnd(t, testSupervisor(sink), shell(t.TempDir(), "echo one; echo two >&2; printf 'no newline'"))
	if outcome.Kind != Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	if got := sink.get(Stdout); len(got) != 2 || got[0] != "one" || got[1] != "no newline" {
		t.Errorf("stdout = %q", got)
	}
	if got := sink.get(Stderr); len(got) != 1 || got[0] != "two" {
		t.Errorf("stderr = %q", got)
	}
}

func TestLargeOutputDoesNotBlock(t *testing.T) {
	requireShell(t)

	var count int
	var mu sync.Mutex
	sink := SinkFunc(func(stream Stream, line string) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	outcome := runToEnd(t, testSupervisor(sink), shell(t.TempDir(), "i=0; while [ $i -lt 20000 ]; do echo line $i; i=$((i+1)); done"))
	if outcome.Kind != Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	mu.Lock()
	defer mu.Unlock()
	if count != 20000 {
		t.Errorf("lines = %d", count)
	}
}

func TestTerminate(t *testing.T) {
	requireShell(t)

	s := testSupervisor(nil)
	h, err := s.Launch(context.Background(), shell(t.TempDir(), "sleep 30"))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Live()) != 1 || !h.Running() {
		t.Fatal("child should be live")
	}

	start := time.Now()
	if err := s.Terminate(h); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("Terminate took %s", time.Since(start))
	}

	outcome := h.Outcome()
	if !outcome.Terminated || outcome.Kind != Crashed {
		t.Errorf("outcome = %+v", outcome)
	}
	if len(s.Live()) != 0 {
		t.Error("terminated child still tracked")
	}
	if err := s.Terminate(h); err != nil {
		t.Errorf("second Terminate: %v", err)
	}
}

func TestCancelledWaitLeavesChildRunning(t *testing.T) {
	requireShell(t)

	s := testSupervisor(nil)
	h, err := s.Launch(context.Background(), shell(t.TempDir(), "sleep 30"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.TerminateAll()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := s.Wait(ctx, h); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait err = %v", err)
	}
	if !h.Running() {
		t.Error("child stopped when only the wait was cancelled")
	}
}

func TestExitObservedWhileDescendantHoldsOutput(t *testing.T) {
	requireShell(t)

	sink := &recordingSink{}
	s := testSupervisor(sink)
	h, err := s.Launch(context.Background(), shell(t.TempDir(), "echo before; sleep 4 & exit 3"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = kill(h.PID) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outcome, err := s.Wait(ctx, h)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if outcome.Kind != Failure || outcome.Code != 3 {
		t.Errorf("outcome = %+v", outcome)
	}
	if got := sink.get(Stdout); len(got) != 1 || got[0] != "before" {
		t.Errorf("stdout = %q", got)
	}
	if len(s.Live()) != 0 {
		t.Error("exited child still tracked")
	}
}

func TestOutcomeWhileRunning(t *testing.T) {
	requireShell(t)

	s := testSupervisor(nil)
	h, err := s.Launch(context.Background(), shell(t.TempDir(), "sleep 30"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.TerminateAll()

	outcome := h.Outcome()
	if outcome.Kind != Running {
		t.Errorf("kind = %s, want running", outcome.Kind)
	}
	if got := outcome.String(); got == "exited successfully" {
		t.Errorf("live child described as %q", got)
	}
}

func TestLaunchErrors(t *testing.T) {
	s := testSupervisor(nil)
	if _, err := s.Launch(context.Background(), &command.Invocation{}); !errors.Is(err, ErrLaunch) {
		t.Errorf("empty invocation: %v", err)
	}
	missing := &command.Invocation{Executable: "/nonexistent/java", Dir: os.TempDir()}
	if _, err := s.Launch(context.Background(), missing); !errors.Is(err, ErrLaunch) {
		t.Errorf("missing executable: %v", err)
	}
}

func TestWriterSink(t *testing.T) {
	var out, errOut bytes.Buffer
	sink := NewWriterSink("[game] ", &out, &errOut)
	sink.Line(Stdout, "hello")
	sink.Line(Stderr, "oops")
	sink.Line(Stdout, "bye")

	if out.String() != "[game] hello\n[game] bye\n" {
		t.Errorf("stdout = %q", out.String())
	}
	if !strings.HasPrefix(errOut.String(), "[game] oops") {
		t.Errorf("stderr = %q", errOut.String())
	}
}
