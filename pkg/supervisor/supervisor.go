// SPDX-License-Identifier: Apache-2.0

// Package supervisor spawns launch invocations, streams their output to a
// sink and classifies how they end.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/pkg/command"
	"github.com/provide-io/blocklaunch/pkg/logging"
)

// ErrLaunch is returned when the child cannot be started.
var ErrLaunch = errors.New("launch failed")

const (
	// DefaultGracePeriod is how long Terminate waits before killing.
	DefaultGracePeriod = 10 * time.Second

	// DefaultDrainTimeout bounds how long output is still read after the
	// child exited.
	DefaultDrainTimeout = 500 * time.Millisecond
)

type (
	// Supervisor owns the children it launched until they exit.
	Supervisor struct {
		sink   Sink
		logger hclog.Logger
		grace  time.Duration
		drain  time.Duration

		mu      sync.Mutex
		handles map[string]*Handle
	}

	// Option configures a Supervisor during construction.
	Option func(*Supervisor)

	// Handle refers to one launched child.
	Handle struct {
		ID         string
		PID        int
		Invocation command.Invocation
		Started    time.Time

		cmd  *exec.Cmd
		done chan struct{}

		mu         sync.Mutex
		outcome    Outcome
		ended      time.Time
		terminated bool
	}
)

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// WithGracePeriod sets the delay between the polite stop request and the
// forced kill.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		s.grace = d
	}
}

// WithDrainTimeout sets how long output is still read once the child has
// exited while a descendant holds its stdout or stderr open.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		s.drain = d
	}
}

// New creates a Supervisor streaming output to sink. A nil sink discards
// output.
func New(sink Sink, opts ...Option) *Supervisor {
	if sink == nil {
		sink = discardSink{}
	}
	s := &Supervisor{
		sink:    sink,
		grace:   DefaultGracePeriod,
		drain:   DefaultDrainTimeout,
		handles: make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNull(s.logger)
	return s
}

// Launch starts inv. The context only bounds the start itself: cancelling
// it later does not stop the child; use Terminate for that.
func (s *Supervisor) Launch(ctx context.Context, inv *command.Invocation) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	if inv == nil || inv.Executable == "" {
		return nil, fmt.Errorf("%w: empty invocation", ErrLaunch)
	}

	cmd := exec.Command(inv.Executable, inv.Args...)
	cmd.Env = inv.Env
	cmd.Dir = inv.Dir
	configureCommand(cmd)

	// The read ends belong to the supervisor rather than to cmd, so reaping
	// the child never waits on descendants that inherited the write ends.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdout, stdoutW)
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	h := &Handle{
		ID:         uuid.NewString(),
		Invocation: *inv,
		cmd:        cmd,
		done:       make(chan struct{}),
	}

	s.logger.Info("🚀 Starting process", "id", h.ID, "executable", inv.Executable, "dir", inv.Dir)
	err = cmd.Start()
	closeAll(stdoutW, stderrW)
	if err != nil {
		closeAll(stdout, stderr)
		s.logger.Error("❌ Failed to start process", "executable", inv.Executable, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	h.PID = cmd.Process.Pid
	h.Started = time.Now()

	s.mu.Lock()
	s.handles[h.ID] = h
	s.mu.Unlock()

	var readers sync.WaitGroup
	readers.Add(2)
	go s.pump(&readers, Stdout, stdout)
	go s.pump(&readers, Stderr, stderr)
	drained := make(chan struct{})
	go func() {
		readers.Wait()
		closeAll(stdout, stderr)
		close(drained)
	}()

	// Waiter
	go func() {
		_ = cmd.Wait()

		// Output written just before exit is normally already in the pipe.
		// Descendants that keep the pipe open get a bounded window, after
		// which the read ends are closed under them.
		select {
		case <-drained:
		case <-time.After(s.drain):
			s.logger.Debug("⚠️ Output still open after exit, detaching", "id", h.ID, "pid", h.PID)
			closeAll(stdout, stderr)
		}

		outcome := classify(cmd.ProcessState, inv.Dir)

		h.mu.Lock()
		outcome.Terminated = h.terminated
		h.outcome = outcome
		h.ended = time.Now()
		h.mu.Unlock()

		s.mu.Lock()
		delete(s.handles, h.ID)
		s.mu.Unlock()

		s.logger.Info("🏁 Process finished", "id", h.ID, "pid", h.PID, "outcome", outcome.Kind.String(), "code", outcome.Code, "reason", outcome.Reason)
		close(h.done)
	}()

	s.logger.Debug("✅ Process started", "id", h.ID, "pid", h.PID)
	return h, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// pump reads r line by line until EOF, forwarding every line to the sink.
// It keeps reading regardless of line length so the child never blocks on
// a full pipe.
func (s *Supervisor) pump(wg *sync.WaitGroup, stream Stream, r io.Reader) {
	defer wg.Done()

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			s.sink.Line(stream, strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.logger.Debug("⚠️ Output stream closed", "stream", stream.String(), "error", err)
			}
			return
		}
	}
}

// Wait blocks until the child exits or ctx is done.
func (s *Supervisor) Wait(ctx context.Context, h *Handle) (Outcome, error) {
	select {
	case <-h.done:
		return h.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Terminate asks the child to stop and kills it if it is still running
// after the grace period. It returns once the child has exited.
func (s *Supervisor) Terminate(h *Handle) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	h.mu.Lock()
	h.terminated = true
	h.mu.Unlock()

	s.logger.Info("🛑 Terminating process", "id", h.ID, "pid", h.PID)
	if err := interrupt(h.PID); err != nil {
		s.logger.Debug("⚠️ Interrupt failed, killing", "pid", h.PID, "error", err)
	} else {
		select {
		case <-h.done:
			return nil
		case <-time.After(s.grace):
			s.logger.Warn("⏱️ Process ignored stop request, killing", "pid", h.PID, "grace", s.grace)
		}
	}

	if err := kill(h.PID); err != nil {
		select {
		case <-h.done:
			return nil
		default:
		}
		return fmt.Errorf("kill process %d: %w", h.PID, err)
	}
	<-h.done
	return nil
}

// TerminateAll terminates every live child concurrently.
func (s *Supervisor) TerminateAll() {
	var wg sync.WaitGroup
	for _, h := range s.Live() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Terminate(h); err != nil {
				s.logger.Warn("⚠️ Failed to terminate process", "id", h.ID, "error", err)
			}
		}()
	}
	wg.Wait()
}

// Live returns the handles of children that have not exited yet.
func (s *Supervisor) Live() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		out = append(out, h)
	}
	return out
}

// Done is closed when the child has exited and its outcome is known.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Running reports whether the child is still alive.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Outcome returns the final outcome; its Kind is Running until the child
// has exited.
func (h *Handle) Outcome() Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

// Duration returns how long the child ran, or has been running.
func (h *Handle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended.IsZero() {
		return time.Since(h.Started)
	}
	return h.ended.Sub(h.Started)
}
