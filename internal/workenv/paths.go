// SPDX-License-Identifier: Apache-2.0

// Package workenv describes the on-disk layout of an installation root:
// version manifests, maven-style libraries, assets and per-launch natives.
package workenv

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// EnvRoot overrides the default installation root.
const EnvRoot = "BLOCKLAUNCH_ROOT"

const (
	VersionsDir     = "versions"
	LibrariesDir    = "libraries"
	AssetsDir       = "assets"
	AssetIndexesDir = "indexes"
	AssetObjectsDir = "objects"
	AssetVirtualDir = "virtual"
	NativesDir      = "natives"
	CatalogFile     = "version_manifest_v2.json"
	DirPerms        = 0o755
	FilePerms       = 0o644
	defaultRootName = "blocklaunch"
	defaultRootHome = ".blocklaunch"
)

// Paths manages every path under one installation root.
type Paths struct {
	root string
}

// NewPaths creates Paths rooted at root. The root is made absolute so paths
// handed to the child process stay valid regardless of its working directory.
func NewPaths(root string) *Paths {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Paths{root: root}
}

// ==================== Roots ====================

// Root returns the installation root.
func (p *Paths) Root() string {
	return p.root
}

// Versions returns the manifest cache directory.
func (p *Paths) Versions() string {
	return filepath.Join(p.root, VersionsDir)
}

// Libraries returns the library artifact directory.
func (p *Paths) Libraries() string {
	return filepath.Join(p.root, LibrariesDir)
}

// Assets returns the assets root.
func (p *Paths) Assets() string {
	return filepath.Join(p.root, AssetsDir)
}

// ==================== Versions ====================

// VersionJSON returns the cached manifest path for id.
func (p *Paths) VersionJSON(id string) string {
	return filepath.Join(p.Versions(), id, id+".json")
}

// VersionJar returns the main jar path for id.
func (p *Paths) VersionJar(id string) string {
	return filepath.Join(p.Versions(), id, id+".jar")
}

// Catalog returns the cached version catalog path.
func (p *Paths) Catalog() string {
	return filepath.Join(p.Versions(), CatalogFile)
}

// ==================== Libraries ====================

// Library returns the absolute path of a library given its slash-separated
// path relative to the libraries directory.
func (p *Paths) Library(rel string) string {
	return filepath.Join(p.Libraries(), filepath.FromSlash(rel))
}

// ==================== Assets ====================

// AssetIndex returns the asset index path for an index id.
func (p *Paths) AssetIndex(id string) string {
	return filepath.Join(p.Assets(), AssetIndexesDir, id+".json")
}

// AssetObject returns the content-addressed path of an asset object.
func (p *Paths) AssetObject(hash string) string {
	prefix := hash
	if len(hash) >= 2 {
		prefix = hash[:2]
	}
	return filepath.Join(p.Assets(), AssetObjectsDir, prefix, hash)
}

// AssetVirtual returns the legacy virtual asset tree for an index id.
func (p *Paths) AssetVirtual(id string) string {
	return filepath.Join(p.Assets(), AssetVirtualDir, id)
}

// ==================== Natives ====================

// NativesRoot returns the scratch root for natives of one version.
func (p *Paths) NativesRoot(versionID string) string {
	return filepath.Join(p.root, NativesDir, versionID)
}

// Natives returns the natives directory owned by the launcher process pid.
// Each launcher extracts into its own directory so concurrent launches of
// the same version never clear each other's files.
func (p *Paths) Natives(versionID string, pid int) string {
	return filepath.Join(p.NativesRoot(versionID), strconv.Itoa(pid))
}

// EnsureDirs creates the fixed top-level directories.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.Versions(), p.Libraries(), p.Assets(), filepath.Join(p.root, NativesDir)} {
		if err := os.MkdirAll(dir, DirPerms); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultRoot returns the platform default installation root, honouring
// BLOCKLAUNCH_ROOT first.
func DefaultRoot() string {
	if root := os.Getenv(EnvRoot); root != "" {
		return root
	}

	switch runtime.GOOS {
	case "darwin":
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, "Library", "Application Support", defaultRootName)
		}
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, defaultRootHome)
		}
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, defaultRootName)
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, defaultRootHome)
		}
	}

	return filepath.Join(os.TempDir(), defaultRootName)
}
