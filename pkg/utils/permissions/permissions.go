// SPDX-License-Identifier: Apache-2.0

// Package permissions normalises file modes for files written from archives.
package permissions

import "io/fs"

// Modes applied to extracted files.
const (
	DefaultFilePerms       fs.FileMode = 0o644
	DefaultExecutablePerms fs.FileMode = 0o755
)

// IsExecutable checks if the owner execute bit is set.
func IsExecutable(mode fs.FileMode) bool {
	return mode.Perm()&0o100 != 0
}

// ForExtracted maps an archive entry mode to the mode used on disk. Archive
// modes are not trusted beyond the owner execute bit: shared libraries that
// ship executable stay executable, everything else is plain readable.
func ForExtracted(mode fs.FileMode) fs.FileMode {
	if IsExecutable(mode) {
		return DefaultExecutablePerms
	}
	return DefaultFilePerms
}
