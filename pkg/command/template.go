// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.]+)\}`)

// Values maps placeholder names to their substitution. Empty values are
// treated as absent.
type Values map[string]string

// Substitute replaces every ${name} in tpl. A placeholder without a
// non-empty value fails with ErrUnresolvedPlaceholder.
func Substitute(tpl string, values Values) (string, error) {
	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		name := match[2 : len(match)-1]
		v := values[name]
		if v == "" && missing == "" {
			missing = name
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("%w: ${%s} in %q", ErrUnresolvedPlaceholder, missing, tpl)
	}
	return out, nil
}

// References reports whether any template mentions ${name}.
func References(templates []string, name string) bool {
	token := "${" + name + "}"
	for _, t := range templates {
		if strings.Contains(t, token) {
			return true
		}
	}
	return false
}

// hasFlag reports whether any argument starts with prefix.
func hasFlag(args []string, prefix string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, prefix) {
			return true
		}
	}
	return false
}
