// SPDX-License-Identifier: Apache-2.0

package workenv

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// TempName returns a hidden, unique sibling path for target. Partial files
// live next to their destination so the final rename never crosses devices.
func TempName(target string) string {
	dir, base := filepath.Split(target)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.part", base, uuid.NewString()))
}

// WriteFileAtomic writes data to a temporary sibling of path, syncs it and
// renames it into place. Readers observe either the old file or the new one.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), DirPerms); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp := TempName(path)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, FilePerms)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
