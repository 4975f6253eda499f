// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/pkg/platform"
)

// resolveJava picks the Java executable: the configured path, then
// $JAVA_HOME/bin/java, then java from PATH. The bare name is returned when
// nothing resolves so the spawn error names the missing program.
func resolveJava(configured string, env []string, target platform.Info, logger hclog.Logger) string {
	if configured != "" {
		logger.Debug("☕ Using configured Java", "path", configured)
		return configured
	}

	name := "java"
	if target.OS == platform.OSWindows {
		name = "java.exe"
	}

	if home := getenv(env, "JAVA_HOME", ""); home != "" {
		candidate := filepath.Join(home, "bin", name)
		logger.Debug("☕ Using Java from JAVA_HOME", "path", candidate)
		return candidate
	}

	if resolved, err := exec.LookPath(name); err == nil {
		logger.Debug("✅ Resolved Java via PATH", "resolved", resolved)
		return resolved
	}

	logger.Debug("⚠️ Could not resolve Java in PATH, using as-is", "executable", name)
	return name
}

// javaProbeTimeout bounds a single "java -version" run.
const javaProbeTimeout = 10 * time.Second

var javaVersionPattern = regexp.MustCompile(`version "([^"]+)"`)

// JavaMajorVersion runs java -version and returns the feature release the
// runtime reports: 8 for "1.8.0_392", 17 for "17.0.8".
func JavaMajorVersion(ctx context.Context, java string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, javaProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, java, "-version").CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("run %s -version: %w", java, err)
	}
	return parseJavaVersion(string(out))
}

func parseJavaVersion(output string) (int, error) {
	m := javaVersionPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, errors.New("no version in java -version output")
	}
	v := strings.TrimPrefix(m[1], "1.")
	if end := strings.IndexAny(v, ".-+_"); end >= 0 {
		v = v[:end]
	}
	major, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse java version %q: %w", m[1], err)
	}
	return major, nil
}
