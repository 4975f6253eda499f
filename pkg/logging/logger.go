// SPDX-License-Identifier: Apache-2.0

// Package logging builds the hclog loggers shared by every blocklaunch component.
package logging

import (
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// EnvLogLevel overrides the configured log level.
	EnvLogLevel = "BLOCKLAUNCH_LOG_LEVEL"
	// EnvJSONLog switches output to JSON lines when set to "1".
	EnvJSONLog = "BLOCKLAUNCH_JSON_LOG"
	// EnvLogPath appends log output to a file instead of stderr.
	EnvLogPath = "BLOCKLAUNCH_LOG_PATH"

	defaultLevel = "warn"
)

// NewLogger creates an hclog logger with UTC ISO timestamps. Non-JSON output
// is prefixed line by line so launcher output stays distinguishable from the
// child process output it interleaves with.
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	jsonFormat := os.Getenv(EnvJSONLog) == "1"
	if strings.HasPrefix(level, "json:") {
		jsonFormat = true
		level = strings.TrimPrefix(level, "json:")
	}

	if !jsonFormat {
		output = NewPrefixWriter(linePrefix(), output)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// ResolveLevel picks the effective level: explicit flag, then environment,
// then the configured value, then warn.
func ResolveLevel(flagLevel, configLevel string) (level string, source string) {
	if flagLevel != "" {
		return flagLevel, "flag"
	}
	if env := os.Getenv(EnvLogLevel); env != "" {
		return env, EnvLogLevel
	}
	if configLevel != "" {
		return configLevel, "config"
	}
	return defaultLevel, "default"
}

// OpenOutput returns the log destination named by BLOCKLAUNCH_LOG_PATH, or
// stderr when unset or unopenable.
func OpenOutput() io.Writer {
	if logPath := os.Getenv(EnvLogPath); logPath != "" {
		if file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			return file
		}
	}
	return os.Stderr
}

// OrNull returns logger, or a discarding logger when it is nil.
func OrNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}

func linePrefix() string {
	if runtime.GOOS == "windows" {
		return "[BL] "
	}
	return "⛏️ "
}

// ⛏️📦🚀
