// SPDX-License-Identifier: Apache-2.0

package workenv

import (
	"path/filepath"
	"strings"
)

// Within reports whether target is dir or lies below it.
func Within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Contains reports whether path lies inside the installation root.
func (p *Paths) Contains(path string) bool {
	return Within(p.root, filepath.Clean(path))
}
