// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"os"

	"github.com/provide-io/blocklaunch/pkg/resolve"
)

// checkDiskSpace warns when the declared size of missing artifacts exceeds
// the free space under the root. It never fails the run.
func (f *Fetcher) checkDiskSpace(artifacts []resolve.Artifact, unique []int) {
	var needed int64
	for _, i := range unique {
		if _, err := os.Stat(artifacts[i].Path); os.IsNotExist(err) {
			needed += artifacts[i].Size
		}
	}
	if needed == 0 {
		return
	}

	available, err := availableDiskSpace(f.paths.Root())
	if err != nil {
		f.logger.Debug("⚠️ Could not check disk space", "path", f.paths.Root(), "error", err)
		return
	}
	if available < needed {
		f.logger.Warn("💾 Insufficient disk space for pending downloads",
			"needed_bytes", needed,
			"available_bytes", available)
	}
}
