// SPDX-License-Identifier: Apache-2.0

package workenv

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/hashicorp/go-hclog"
)

// IsProcessRunning checks if a process with given PID is still running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, Signal(0) checks existence without delivering a signal.
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// CleanupStaleNatives removes natives directories of versionID whose owning
// launcher process is gone. The directory of the current process is kept.
// It returns the number of directories removed.
func (p *Paths) CleanupStaleNatives(versionID string, logger hclog.Logger) (int, error) {
	root := p.NativesRoot(versionID)

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	self := os.Getpid()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self || IsProcessRunning(pid) {
			continue
		}
		staleDir := filepath.Join(root, entry.Name())
		logger.Info("🧹 Removing stale natives directory from dead launcher", "pid", pid, "path", staleDir)
		if err := os.RemoveAll(staleDir); err != nil {
			logger.Debug("⚠️ Failed to remove stale natives directory", "path", staleDir, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
