// SPDX-License-Identifier: Apache-2.0

// Package resolve turns an effective descriptor into a materialization plan:
// platform rules are applied, libraries are deduplicated by identity and
// every artifact gets a deterministic install path.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/logging"
	"github.com/provide-io/blocklaunch/pkg/manifest"
	"github.com/provide-io/blocklaunch/pkg/platform"
)

// ErrUnsupportedPlatform is returned when a required component has nothing
// to offer for the target platform.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

const nativesClassifierPrefix = "natives-"

// Resolver builds plans against one installation root. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	paths  *workenv.Paths
	logger hclog.Logger
}

// New creates a Resolver. A nil logger discards output.
func New(paths *workenv.Paths, logger hclog.Logger) *Resolver {
	return &Resolver{paths: paths, logger: logging.OrNull(logger)}
}

// Materialize resolves desc for info.
//
// Libraries are visited in declaration order. When an identity repeats, the
// higher version wins and takes the position of the first occurrence; equal
// versions with different checksums make the descriptor malformed.
func (r *Resolver) Materialize(desc *manifest.EffectiveDescriptor, info platform.Info) (*Plan, error) {
	if err := checkNames(desc); err != nil {
		return nil, err
	}

	var (
		ordered []Artifact
		index   = make(map[string]int)
	)

	add := func(a Artifact) error {
		i, seen := index[a.Identity]
		if !seen {
			index[a.Identity] = len(ordered)
			ordered = append(ordered, a)
			return nil
		}
		existing := ordered[i]
		switch c := CompareVersions(a.Version, existing.Version); {
		case c > 0:
			r.logger.Trace("⬆️ Newer library version replaces earlier declaration",
				"identity", a.Identity, "from", existing.Version, "to", a.Version)
			ordered[i] = a
		case c == 0 && a.Checksum != "" && existing.Checksum != "" && !strings.EqualFold(a.Checksum, existing.Checksum):
			return fmt.Errorf("%w: %s %s declared with checksums %s and %s",
				manifest.ErrManifestMalformed, a.Identity, a.Version, existing.Checksum, a.Checksum)
		default:
			r.logger.Trace("⏭️ Skipping duplicate library declaration",
				"identity", a.Identity, "kept", existing.Version, "skipped", a.Version)
		}
		return nil
	}

	for _, lib := range desc.Libraries {
		if !platform.Allowed(lib.Rules, info, nil) {
			r.logger.Trace("🚫 Library excluded by rules", "library", lib.Name, "os", info.OS, "arch", info.Arch)
			continue
		}

		artifacts, err := r.libraryArtifacts(lib, info)
		if err != nil {
			return nil, err
		}
		for _, a := range artifacts {
			if err := add(a); err != nil {
				return nil, err
			}
		}
	}

	plan := &Plan{
		VersionID: desc.ID,
		Platform:  info,
		AssetsID:  desc.Assets,
	}
	for _, a := range ordered {
		if a.Kind == KindNative {
			plan.Natives = append(plan.Natives, a)
		} else {
			plan.Libraries = append(plan.Libraries, a)
		}
	}

	plan.MainJar = Artifact{
		Identity: "client:" + string(desc.Jar),
		Version:  string(desc.Jar),
		Kind:     KindClient,
		Path:     r.paths.VersionJar(string(desc.Jar)),
		Required: true,
	}
	if desc.Client != nil {
		plan.MainJar.URL = desc.Client.URL
		plan.MainJar.Checksum = sha1Checksum(desc.Client.SHA1)
		plan.MainJar.Size = desc.Client.Size
	}

	if desc.AssetIndex != nil {
		plan.AssetIndex = &Artifact{
			Identity: "asset-index:" + desc.AssetIndex.ID,
			Version:  desc.AssetIndex.ID,
			Kind:     KindAssetIndex,
			Path:     r.paths.AssetIndex(desc.AssetIndex.ID),
			URL:      desc.AssetIndex.URL,
			Checksum: sha1Checksum(desc.AssetIndex.SHA1),
			Size:     desc.AssetIndex.Size,
			Required: true,
		}
		if plan.AssetsID == "" {
			plan.AssetsID = desc.AssetIndex.ID
		}
	}

	for _, a := range plan.Artifacts() {
		if !r.paths.Contains(a.Path) {
			return nil, fmt.Errorf("%w: %s resolves outside the installation root: %s",
				manifest.ErrManifestMalformed, a.Identity, a.Path)
		}
	}

	r.logger.Debug("📋 Materialization plan ready",
		"version", desc.ID,
		"libraries", len(plan.Libraries),
		"natives", len(plan.Natives),
		"platform", info.OS+"/"+info.Arch)
	return plan, nil
}

// libraryArtifacts expands one applicable library into its classpath jar
// and/or native jar.
func (r *Resolver) libraryArtifacts(lib manifest.Library, info platform.Info) ([]Artifact, error) {
	coord, err := ParseCoordinate(lib.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", manifest.ErrManifestMalformed, err)
	}

	var out []Artifact

	// Legacy form: a natives map selects a classifier per OS.
	if len(lib.Natives) > 0 {
		if lib.Downloads != nil && lib.Downloads.Artifact != nil {
			out = append(out, r.artifact(coord, lib, lib.Downloads.Artifact, KindLibrary))
		}

		template, ok := lib.Natives[info.OS]
		if !ok {
			if lib.Optional {
				r.logger.Debug("⚠️ Optional native library has no build for platform", "library", lib.Name, "os", info.OS)
				return out, nil
			}
			return nil, fmt.Errorf("%w: %s has no natives for %s", ErrUnsupportedPlatform, lib.Name, info.OS)
		}
		classifier := strings.ReplaceAll(template, "${arch}", info.Bitness())
		if !manifest.ValidName(classifier) {
			return nil, fmt.Errorf("%w: %s has invalid natives classifier %q", manifest.ErrManifestMalformed, lib.Name, classifier)
		}
		nativeCoord := coord.WithClassifier(classifier)

		var dl *manifest.Download
		if lib.Downloads != nil {
			if d, ok := lib.Downloads.Classifiers[classifier]; ok {
				dl = &d
			}
		}
		if dl == nil && lib.Downloads != nil && lib.URL == "" {
			if lib.Optional {
				return out, nil
			}
			return nil, fmt.Errorf("%w: %s has no %s download", ErrUnsupportedPlatform, lib.Name, classifier)
		}
		return append(out, r.artifact(nativeCoord, lib, dl, KindNative)), nil
	}

	kind := KindLibrary
	if strings.HasPrefix(coord.Classifier, nativesClassifierPrefix) {
		kind = KindNative
	}
	var dl *manifest.Download
	if lib.Downloads != nil {
		dl = lib.Downloads.Artifact
		if dl == nil && lib.URL == "" {
			// Downloads block without an artifact: nothing for the classpath.
			return out, nil
		}
	}
	return append(out, r.artifact(coord, lib, dl, kind)), nil
}

func (r *Resolver) artifact(coord Coordinate, lib manifest.Library, dl *manifest.Download, kind Kind) Artifact {
	a := Artifact{
		Identity: coord.Identity(),
		Version:  coord.Version,
		Kind:     kind,
		Path:     r.paths.Library(coord.Path()),
		URL:      coord.URL(lib.URL),
		Required: !lib.Optional,
	}
	if dl != nil {
		if dl.URL != "" {
			a.URL = dl.URL
		}
		a.Checksum = sha1Checksum(dl.SHA1)
		a.Size = dl.Size
	}
	if kind == KindNative && lib.Extract != nil {
		a.Exclude = append([]string(nil), lib.Extract.Exclude...)
	}
	return a
}

// checkNames rejects descriptor fields that would name files outside their
// directory. Descriptors from the store are already checked; this covers
// values built in memory.
func checkNames(desc *manifest.EffectiveDescriptor) error {
	fields := []struct {
		name, value string
	}{
		{"id", string(desc.ID)},
		{"jar", string(desc.Jar)},
		{"assets", desc.Assets},
	}
	if desc.AssetIndex != nil {
		fields = append(fields, struct{ name, value string }{"assetIndex.id", desc.AssetIndex.ID})
	}
	for _, f := range fields {
		if f.value != "" && !manifest.ValidName(f.value) {
			return fmt.Errorf("%w: %s %q is not a valid name", manifest.ErrManifestMalformed, f.name, f.value)
		}
	}
	return nil
}

func sha1Checksum(hex string) string {
	if hex == "" {
		return ""
	}
	return "sha1:" + strings.ToLower(hex)
}
