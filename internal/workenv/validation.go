// SPDX-License-Identifier: Apache-2.0

package workenv

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile is written into a derived tree once it is fully populated.
const MarkerFile = ".complete"

// CompletionMarker records which source produced a derived directory.
type CompletionMarker struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Checksum  string    `json:"checksum"`
}

// IsComplete reports whether dir carries a marker for source and checksum.
func IsComplete(dir, source, checksum string) bool {
	data, err := os.ReadFile(filepath.Join(dir, MarkerFile))
	if err != nil {
		return false
	}

	var marker CompletionMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return false
	}

	if marker.Source != source {
		return false
	}
	if checksum != "" && marker.Checksum != checksum {
		return false
	}
	return true
}

// MarkComplete writes the completion marker into dir.
func MarkComplete(dir, source, checksum string) error {
	marker := CompletionMarker{
		Timestamp: time.Now().UTC(),
		Source:    source,
		Checksum:  checksum,
	}

	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, MarkerFile), data, FilePerms)
}
