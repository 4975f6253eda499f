// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/manifest"
	"github.com/provide-io/blocklaunch/pkg/resolve"
)

// DefaultResourcesURL hosts content-addressed asset objects.
const DefaultResourcesURL = "https://resources.download.minecraft.net"

// AssetIndex is the document an asset index artifact contains.
type AssetIndex struct {
	Objects        map[string]AssetObject `json:"objects"`
	Virtual        bool                   `json:"virtual,omitempty"`
	MapToResources bool                   `json:"map_to_resources,omitempty"`
}

// AssetObject is one entry of an asset index.
type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Legacy reports whether the index asks for the flat virtual layout.
func (i *AssetIndex) Legacy() bool {
	return i.Virtual || i.MapToResources
}

// ReadAssetIndex parses the asset index at path.
func ReadAssetIndex(path string) (*AssetIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	var index AssetIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("%w: asset index %s: %v", ErrIO, path, err)
	}
	for name, obj := range index.Objects {
		if !validHash(obj.Hash) {
			return nil, fmt.Errorf("%w: asset index %s: object %q has invalid hash %q",
				manifest.ErrManifestMalformed, path, name, obj.Hash)
		}
	}
	return &index, nil
}

// validHash reports whether h is a lowercase hex sha1 digest.
func validHash(h string) bool {
	if len(h) != 40 {
		return false
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// EnsureAssets ensures every object listed by the plan's asset index, which
// must already be verified. Objects are optional: their failures appear in
// the report but never make it fail. Legacy indexes additionally get a
// copy of the objects under their original names in the virtual tree.
func (f *Fetcher) EnsureAssets(ctx context.Context, plan *resolve.Plan) (*Report, error) {
	if plan.AssetIndex == nil {
		return &Report{}, nil
	}

	index, err := ReadAssetIndex(plan.AssetIndex.Path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(index.Objects))
	for name := range index.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	base := strings.TrimRight(f.resourcesURL, "/")
	artifacts := make([]resolve.Artifact, 0, len(names))
	for _, name := range names {
		obj := index.Objects[name]
		artifacts = append(artifacts, resolve.Artifact{
			Identity: "asset:" + name,
			Version:  obj.Hash,
			Kind:     resolve.KindAsset,
			Path:     f.paths.AssetObject(obj.Hash),
			URL:      base + "/" + obj.Hash[:2] + "/" + obj.Hash,
			Checksum: "sha1:" + obj.Hash,
			Size:     obj.Size,
		})
	}

	f.logger.Debug("🎨 Ensuring asset objects", "index", plan.AssetsID, "objects", len(artifacts))
	report := f.EnsureArtifacts(ctx, artifacts)

	if index.Legacy() {
		if err := f.populateVirtual(plan, index, report); err != nil {
			f.logger.Warn("⚠️ Failed to populate legacy asset tree", "index", plan.AssetsID, "error", err)
		}
	}
	return report, nil
}

// populateVirtual copies objects into assets/virtual/<id>/<name>. A
// completion marker keyed by the index checksum skips the copy when the
// tree is already current.
func (f *Fetcher) populateVirtual(plan *resolve.Plan, index *AssetIndex, report *Report) error {
	dir := f.paths.AssetVirtual(plan.AssetsID)
	checksum := plan.AssetIndex.Checksum
	if workenv.IsComplete(dir, plan.AssetsID, checksum) {
		f.logger.Trace("✅ Legacy asset tree current", "dir", dir)
		return nil
	}

	complete := true
	for _, res := range report.Results {
		if res.Outcome == Failed {
			complete = false
			continue
		}
		name := strings.TrimPrefix(res.Artifact.Identity, "asset:")
		target := filepath.Join(dir, filepath.FromSlash(name))
		if !workenv.Within(dir, target) {
			return fmt.Errorf("%w: asset name %q escapes %s", ErrIO, name, dir)
		}
		if err := copyFile(res.Artifact.Path, target); err != nil {
			return err
		}
	}

	if complete {
		return workenv.MarkComplete(dir, plan.AssetsID, checksum)
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), workenv.DirPerms); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}
