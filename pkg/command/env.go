// SPDX-License-Identifier: Apache-2.0

package command

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Variables exported to the child process.
const (
	EnvVersion = "BLOCKLAUNCH_VERSION"
	EnvRoot    = "BLOCKLAUNCH_ROOT"
)

// buildEnv layers overrides on top of base, dropping malformed entries.
// Later duplicates of a key win. The result is sorted by key.
func buildEnv(base []string, overrides map[string]string) []string {
	vars := make(map[string]string, len(base)+len(overrides))
	for _, e := range base {
		key, value, ok := strings.Cut(e, "=")
		if !ok || key == "" {
			continue
		}
		vars[key] = value
	}
	for k, v := range overrides {
		vars[k] = v
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, len(keys))
	for i, k := range keys {
		env[i] = k + "=" + vars[k]
	}
	return env
}

// getenv retrieves an environment variable value from the environment list.
func getenv(env []string, key string, defaultVal string) string {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return strings.TrimPrefix(env[i], prefix)
		}
	}
	return defaultVal
}

// logEnvironmentTrace logs environment variables at trace level, redacting sensitive values.
func logEnvironmentTrace(env []string, logger hclog.Logger) {
	if !logger.IsTrace() {
		return
	}

	logger.Trace("🌍 Environment variables being passed to subprocess:")
	for _, e := range env {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if isSensitiveKey(key) {
			value = "***"
		}
		logger.Trace("  →", "key", key, "value", value)
	}
}

// isSensitiveKey checks if an environment variable key should be redacted in logs.
func isSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, marker := range []string{"TOKEN", "SECRET", "PASSWORD", "ACCESS_KEY", "SSH_AUTH_SOCK"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// redactArgs returns a copy of args with every secret value masked.
func redactArgs(args []string, secrets ...string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		for _, s := range secrets {
			if s != "" && len(s) > 1 {
				a = strings.ReplaceAll(a, s, "***")
			}
		}
		out[i] = a
	}
	return out
}
