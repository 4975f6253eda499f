// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/logging"
	"github.com/provide-io/blocklaunch/pkg/resolve"
	"github.com/provide-io/blocklaunch/pkg/utils/permissions"
)

// ExtractNatives unpacks every native jar of plan into dir, skipping entries
// under the artifact's exclude prefixes. Optional natives that are not on
// disk are skipped. Entries that would land outside dir are rejected.
func ExtractNatives(plan *resolve.Plan, dir string, logger hclog.Logger) error {
	logger = logging.OrNull(logger)

	if err := os.MkdirAll(dir, workenv.DirPerms); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	for _, a := range plan.Natives {
		if _, err := os.Stat(a.Path); err != nil {
			if os.IsNotExist(err) && !a.Required {
				logger.Debug("⏭️ Optional native not present", "artifact", a.Identity)
				continue
			}
			return fmt.Errorf("%w: native %s: %v", ErrIO, a.Identity, err)
		}
		n, err := extractJar(a, dir)
		if err != nil {
			return err
		}
		logger.Trace("🧩 Extracted native", "artifact", a.Identity, "files", n)
	}

	logger.Debug("🧩 Natives ready", "dir", dir, "jars", len(plan.Natives))
	return nil
}

func extractJar(a resolve.Artifact, dir string) (int, error) {
	zr, err := zip.OpenReader(a.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %v", ErrIO, a.Path, err)
	}
	defer zr.Close()

	count := 0
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || excluded(entry.Name, a.Exclude) {
			continue
		}

		target := filepath.Join(dir, filepath.FromSlash(entry.Name))
		if !workenv.Within(dir, target) {
			return count, fmt.Errorf("%w: %s: entry %q escapes extraction directory", ErrIO, a.Identity, entry.Name)
		}
		if err := writeEntry(entry, target); err != nil {
			return count, fmt.Errorf("%w: %s: %v", ErrIO, a.Identity, err)
		}
		count++
	}
	return count, nil
}

func writeEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), workenv.DirPerms); err != nil {
		return err
	}
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, permissions.ForExtracted(entry.Mode()))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func excluded(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
