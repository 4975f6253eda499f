// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/pkg/logging"
)

// Stream identifies which child output a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Sink receives child output one line at a time, without the trailing
// newline. Calls for one stream arrive in order; the two streams may
// interleave and may be delivered from different goroutines.
type Sink interface {
	Line(stream Stream, line string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(stream Stream, line string)

// Line implements Sink.
func (f SinkFunc) Line(stream Stream, line string) { f(stream, line) }

// WriterSink copies lines to writers, each line preceded by a prefix.
type WriterSink struct {
	stdout *logging.PrefixWriter
	stderr *logging.PrefixWriter
}

// NewWriterSink creates a WriterSink. Either writer may be nil to drop
// that stream.
func NewWriterSink(prefix string, stdout, stderr io.Writer) *WriterSink {
	s := &WriterSink{}
	if stdout != nil {
		s.stdout = logging.NewPrefixWriter(prefix, stdout)
	}
	if stderr != nil {
		s.stderr = logging.NewPrefixWriter(prefix, stderr)
	}
	return s
}

// Line implements Sink.
func (s *WriterSink) Line(stream Stream, line string) {
	w := s.stdout
	if stream == Stderr {
		w = s.stderr
	}
	if w != nil {
		_, _ = w.Write([]byte(line + "\n"))
	}
}

// LoggerSink forwards lines to a logger: stdout at info, stderr at warn.
type LoggerSink struct {
	Logger hclog.Logger
}

// Line implements Sink.
func (s LoggerSink) Line(stream Stream, line string) {
	if stream == Stderr {
		s.Logger.Warn(line, "stream", stream.String())
		return
	}
	s.Logger.Info(line, "stream", stream.String())
}

type discardSink struct{}

func (discardSink) Line(Stream, string) {}
